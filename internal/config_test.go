package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestOpenAIConfig_RequiresAPIKey(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without api key should fail validation")
	}
	cfg.OpenAI.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config with api key should pass: %v", err)
	}
}

func TestOpenAIConfig_SplitThreshold(t *testing.T) {
	cfg := NewDefaultConfig()
	if got := cfg.OpenAI.SplitThreshold(); got != 20<<20 {
		t.Errorf("default threshold = %d, want 20 MB", got)
	}

	cfg.OpenAI.SplitMB = 0
	if got := cfg.OpenAI.SplitThreshold(); got != 0 {
		t.Errorf("zero split_mb = %d, want 0 (transcriber default)", got)
	}

	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.SplitMB = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative split_mb should fail validation")
	}
}

func TestInboxConfig_DisabledByDefault(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Inbox.Enabled() {
		t.Error("inbox should be disabled when path is empty")
	}
	cfg.Inbox.Path = "./inbox"
	cfg.Inbox.SettleSeconds = 3
	if !cfg.Inbox.Enabled() {
		t.Error("inbox with path should be enabled")
	}
	if cfg.Inbox.Settle() != 3*time.Second {
		t.Errorf("settle = %v", cfg.Inbox.Settle())
	}
}

func TestPipelineConfig_Backoff(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Pipeline.Backoff() != 2*time.Second {
		t.Errorf("backoff = %v, want 2s", cfg.Pipeline.Backoff())
	}
	cfg.Pipeline.BackoffSeconds = -1
	if err := cfg.Pipeline.Validate(); err == nil {
		t.Error("negative backoff should fail validation")
	}
}
