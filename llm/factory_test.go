package llm

import "testing"

func TestParseProviderType(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderType
		wantErr bool
	}{
		{in: "openai", want: ProviderOpenAI},
		{in: "GPT", want: ProviderOpenAI},
		{in: "claude", want: ProviderAnthropic},
		{in: "Anthropic", want: ProviderAnthropic},
		{in: "deepseek", want: ProviderDeepSeek},
		{in: "google", want: ProviderGemini},
		{in: "gemini", want: ProviderGemini},
		{in: "mistral", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseProviderType(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseProviderType(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseProviderType(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProviderType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestProviderTypeMetadata(t *testing.T) {
	for _, p := range []ProviderType{ProviderOpenAI, ProviderAnthropic, ProviderDeepSeek, ProviderGemini} {
		if p.String() == "unknown" {
			t.Errorf("provider %d has no name", p)
		}
		if p.EnvVar() == "" {
			t.Errorf("provider %s has no API key env var", p)
		}
		if p.DefaultModel() == "" {
			t.Errorf("provider %s has no default model", p)
		}
	}
	if ProviderType(99).String() != "unknown" {
		t.Errorf("out-of-range provider String() = %q, want unknown", ProviderType(99).String())
	}
}
