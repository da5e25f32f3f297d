package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Media    MediaConfig       `yaml:"media"`
	Inbox    InboxConfig       `yaml:"inbox"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	OpenAI   OpenAIConfig      `yaml:"openai"`
	FFmpeg   FFmpegConfig      `yaml:"ffmpeg"`
	Pipeline PipelineConfig    `yaml:"pipeline"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Media.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.OpenAI.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// MediaConfig holds the path to the media artifacts directory.
type MediaConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the media configuration.
func (c *MediaConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// InboxConfig holds the drop-directory ingest configuration.
// An empty Path disables the inbox watcher.
type InboxConfig struct {
	Path          string `yaml:"path"`
	SettleSeconds int    `yaml:"settle_seconds"`
}

// Enabled returns true when the inbox watcher should run.
func (c *InboxConfig) Enabled() bool {
	return c.Path != ""
}

// Settle returns how long a dropped file must be quiet before ingest.
func (c *InboxConfig) Settle() time.Duration {
	return time.Duration(c.SettleSeconds) * time.Second
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// OpenAIConfig holds the credentials and model choices for the
// transcription and segmentation services.
type OpenAIConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	TranscribeModel string `yaml:"transcribe_model"`
	SegmentModel    string `yaml:"segment_model"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	SplitMB         int    `yaml:"split_mb"`
}

// Timeout returns the per-request timeout for OpenAI calls.
func (c *OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SplitThreshold returns the source size in bytes above which a recording
// is split before transcription. Zero means the transcriber's default.
func (c *OpenAIConfig) SplitThreshold() int64 {
	return int64(c.SplitMB) << 20
}

// Validate validates the OpenAI configuration.
func (c *OpenAIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.TimeoutSeconds, validation.Min(0)),
		validation.Field(&c.SplitMB, validation.Min(0)),
	)
}

// FFmpegConfig holds the ffmpeg binary location. An empty Bin resolves
// "ffmpeg" from PATH.
type FFmpegConfig struct {
	Bin string `yaml:"bin"`
}

// PipelineConfig holds retry tuning for the processing pipeline.
type PipelineConfig struct {
	MaxAttempts    int `yaml:"max_attempts"`
	BackoffSeconds int `yaml:"backoff_seconds"`
}

// Backoff returns the initial retry backoff.
func (c *PipelineConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSeconds) * time.Second
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxAttempts, validation.Min(0)),
		validation.Field(&c.BackoffSeconds, validation.Min(0)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Media: MediaConfig{
			Path: "./media",
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		OpenAI: OpenAIConfig{
			TranscribeModel: "whisper-1",
			SegmentModel:    "gpt-4o-mini",
			TimeoutSeconds:  600,
			SplitMB:         20,
		},
		Pipeline: PipelineConfig{
			MaxAttempts:    3,
			BackoffSeconds: 2,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
