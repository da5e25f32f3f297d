package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/transcribe"
)

const service = "segmentation"

// systemPrompt instructs the model to group transcript segments into titled
// chunks and return them as a JSON object under a "chunks" key.
const systemPrompt = `You are an intelligent assistant that processes audio transcripts.
I will provide a list of transcript segments with timestamps.
Your task is to:
1. Group these segments into logical chunks based on context and topic shifts.
2. Generate a concise and descriptive title for each chunk.
3. Combine the text of the segments to form the 'transcript' for the chunk.
4. Determine the 'start_time' (start of the first segment in the chunk) and 'end_time' (end of the last segment in the chunk).

Return the result as a JSON object with a single key "chunks", which is a list of objects.
Each object must have the following keys: "title", "start_time", "end_time", "transcript".`

// OpenAI calls the chat completions endpoint in JSON mode.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAI creates a chat-completion-backed segmentation client.
// baseURL defaults to the public OpenAI API when empty.
func NewOpenAI(apiKey, model, baseURL string, timeout time.Duration) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAI{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat responseFmt   `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFmt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chunksEnvelope struct {
	Chunks []Proposal `json:"chunks"`
}

// Segment sends the simplified timestamped segments to the model and decodes
// the proposed chunks from its JSON reply.
func (o *OpenAI) Segment(ctx context.Context, t *transcribe.Transcript) ([]Proposal, error) {
	user, err := json.Marshal(t.Segments)
	if err != nil {
		return nil, permanent(fmt.Errorf("encode segments: %w", err))
	}

	payload, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(user)},
		},
		ResponseFormat: responseFmt{Type: "json_object"},
	})
	if err != nil {
		return nil, permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, transient(err)
		}
		return nil, permanent(err)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, transient(fmt.Errorf("decode response: %w", err))
	}
	if len(cr.Choices) == 0 {
		return nil, permanent(fmt.Errorf("response carries no choices"))
	}

	// The model is instructed to emit JSON, but treat its output defensively.
	var env chunksEnvelope
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &env); err != nil {
		return nil, permanent(fmt.Errorf("model reply is not valid JSON: %w", err))
	}
	if len(env.Chunks) == 0 {
		return nil, ErrEmpty
	}
	return env.Chunks, nil
}

func transient(err error) error {
	return &apperr.ExternalError{Service: service, Transient: true, Err: err}
}

func permanent(err error) error {
	return &apperr.ExternalError{Service: service, Transient: false, Err: err}
}
