package config

import (
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	// Clear relevant env vars to test defaults
	envVars := []string{
		"LLM_MAX_TOKENS", "LLM_TEMPERATURE",
		"LOOP_MAX_CYCLES", "LOOP_STEP_TIMEOUT_SECS", "LOOP_TOOL_TIMEOUT_SECS",
		"TERN_DB_PATH", "SEARX_URL",
		"OPENAI_MODEL", "ANTHROPIC_MODEL", "DEEPSEEK_MODEL", "GEMINI_MODEL",
	}
	for _, v := range envVars {
		t.Setenv(v, "")
	}

	settings, err := New("openai")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if settings.LLM.Provider != "openai" {
		t.Errorf("Provider = %q, want %q", settings.LLM.Provider, "openai")
	}
	if settings.LLM.Model != "gpt-5.2" {
		t.Errorf("Model = %q, want %q", settings.LLM.Model, "gpt-5.2")
	}
	if settings.LLM.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", settings.LLM.MaxTokens)
	}
	if settings.LLM.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", settings.LLM.Temperature)
	}
	if settings.Loop.MaxCycles != 5 {
		t.Errorf("MaxCycles = %d, want 5", settings.Loop.MaxCycles)
	}
	if settings.Loop.StepTimeoutSecs != 120 {
		t.Errorf("StepTimeoutSecs = %d, want 120", settings.Loop.StepTimeoutSecs)
	}
	if settings.Loop.ToolTimeoutSecs != 60 {
		t.Errorf("ToolTimeoutSecs = %d, want 60", settings.Loop.ToolTimeoutSecs)
	}
	if settings.Storage.DBPath != "tern.db" {
		t.Errorf("DBPath = %q, want %q", settings.Storage.DBPath, "tern.db")
	}
	if settings.Search.SearxURL != "" {
		t.Errorf("SearxURL = %q, want empty", settings.Search.SearxURL)
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("LLM_MAX_TOKENS", "8192")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("LOOP_MAX_CYCLES", "3")
	t.Setenv("TERN_DB_PATH", "/tmp/test.db")
	t.Setenv("SEARX_URL", "http://localhost:8080")
	t.Setenv("ANTHROPIC_MODEL", "claude-test-model")

	settings, err := New("anthropic")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if settings.LLM.Model != "claude-test-model" {
		t.Errorf("Model = %q, want %q", settings.LLM.Model, "claude-test-model")
	}
	if settings.LLM.MaxTokens != 8192 {
		t.Errorf("MaxTokens = %d, want 8192", settings.LLM.MaxTokens)
	}
	if settings.LLM.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", settings.LLM.Temperature)
	}
	if settings.Loop.MaxCycles != 3 {
		t.Errorf("MaxCycles = %d, want 3", settings.Loop.MaxCycles)
	}
	if settings.Storage.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", settings.Storage.DBPath, "/tmp/test.db")
	}
	if settings.Search.SearxURL != "http://localhost:8080" {
		t.Errorf("SearxURL = %q, want %q", settings.Search.SearxURL, "http://localhost:8080")
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New("mystery")
	if err == nil {
		t.Fatal("New(mystery) expected error, got nil")
	}
}

func TestNew_InvalidEnvValue(t *testing.T) {
	t.Setenv("LLM_MAX_TOKENS", "not-a-number")

	_, err := New("openai")
	if err == nil {
		t.Fatal("expected error for invalid LLM_MAX_TOKENS")
	}
}

func TestNormalizeProvider_Aliases(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"claude", "anthropic"},
		{"google", "gemini"},
		{"gpt", "openai"},
		{"OpenAI", "openai"},
		{"deepseek", "deepseek"},
	}
	for _, tt := range tests {
		if got := normalizeProvider(tt.in); got != tt.want {
			t.Errorf("normalizeProvider(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestModelFor(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "")

	model, err := ModelFor("gemini")
	if err != nil {
		t.Fatalf("ModelFor() error = %v", err)
	}
	if model != "gemini-3-flash" {
		t.Errorf("ModelFor(gemini) = %q, want %q", model, "gemini-3-flash")
	}

	t.Setenv("GEMINI_MODEL", "gemini-custom")
	model, err = ModelFor("gemini")
	if err != nil {
		t.Fatalf("ModelFor() error = %v", err)
	}
	if model != "gemini-custom" {
		t.Errorf("ModelFor(gemini) = %q, want %q", model, "gemini-custom")
	}
}

func TestAPIKeyFor_Missing(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")

	_, err := APIKeyFor("deepseek")
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestSupportedProviders(t *testing.T) {
	got := SupportedProviders()
	if len(got) != 4 {
		t.Errorf("SupportedProviders() returned %d providers, want 4", len(got))
	}
}
