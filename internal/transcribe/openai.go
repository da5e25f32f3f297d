package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

const service = "transcription"

// OpenAI calls the OpenAI audio transcriptions endpoint with
// response_format=verbose_json to obtain segment-level timestamps.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAI creates a Whisper-backed transcription client.
// baseURL defaults to the public OpenAI API when empty.
func NewOpenAI(apiKey, model, baseURL string, timeout time.Duration) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "whisper-1"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &OpenAI{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type verboseResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

// Transcribe uploads the audio file and decodes the verbose JSON transcript.
func (o *OpenAI) Transcribe(ctx context.Context, audioPath string) (*Transcript, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, permanent(fmt.Errorf("open audio: %w", err))
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", o.model); err != nil {
		return nil, permanent(err)
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return nil, permanent(err)
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, permanent(err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, permanent(fmt.Errorf("read audio: %w", err))
	}
	if err := mw.Close(); err != nil {
		return nil, permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
		if retryableStatus(resp.StatusCode) {
			return nil, transient(err)
		}
		return nil, permanent(err)
	}

	var vr verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, transient(fmt.Errorf("decode response: %w", err))
	}

	t := &Transcript{Text: vr.Text, Duration: vr.Duration}
	for _, s := range vr.Segments {
		t.Segments = append(t.Segments, Segment{Text: s.Text, Start: s.Start, End: s.End})
	}
	if t.Duration == 0 && len(t.Segments) > 0 {
		t.Duration = t.Segments[len(t.Segments)-1].End
	}
	if len(t.Segments) == 0 {
		return nil, permanent(fmt.Errorf("response carries no timestamped segments"))
	}
	return t, nil
}

// retryableStatus reports whether an HTTP status indicates a transient failure.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func transient(err error) error {
	return &apperr.ExternalError{Service: service, Transient: true, Err: err}
}

func permanent(err error) error {
	return &apperr.ExternalError{Service: service, Transient: false, Err: err}
}
