// Provider construction.
//
// The CLI resolves a provider name from its --provider flag and builds
// the configured provider in one chain:
//
//	providerType, err := llm.ParseProviderType("anthropic")
//	provider, err := providerType.
//	    Model("claude-opus-4-5-20251101").
//	    MaxTokens(4096).
//	    Temperature(0.7).
//	    APIKey(key)
//
// Unset knobs fall back to per-provider defaults, so the short forms
// work too:
//
//	provider, err := llm.ProviderOpenAI.FromEnv()

package llm

import (
	"fmt"
	"os"
	"strings"
)

// ProviderType identifies a supported LLM provider.
type ProviderType int

const (
	ProviderOpenAI ProviderType = iota
	ProviderAnthropic
	ProviderDeepSeek
	ProviderGemini
)

// providerMeta carries the static facts about one provider.
type providerMeta struct {
	name         string
	envVar       string
	defaultModel string
}

var providerMetas = map[ProviderType]providerMeta{
	ProviderOpenAI:    {name: "openai", envVar: "OPENAI_API_KEY", defaultModel: ModelOpenAIGPT52},
	ProviderAnthropic: {name: "anthropic", envVar: "ANTHROPIC_API_KEY", defaultModel: ModelAnthropicClaudeOpus45},
	ProviderDeepSeek:  {name: "deepseek", envVar: "DEEPSEEK_API_KEY", defaultModel: ModelDeepSeekV32},
	ProviderGemini:    {name: "gemini", envVar: "GEMINI_API_KEY", defaultModel: ModelGeminiFlash3},
}

func (p ProviderType) String() string {
	if meta, ok := providerMetas[p]; ok {
		return meta.name
	}
	return "unknown"
}

// EnvVar returns the environment variable holding this provider's API key.
func (p ProviderType) EnvVar() string {
	return providerMetas[p].envVar
}

// DefaultModel returns the model used when none is configured.
func (p ProviderType) DefaultModel() string {
	return providerMetas[p].defaultModel
}

// ParseProviderType resolves a provider from its name or a common alias,
// case-insensitively.
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(s) {
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "deepseek":
		return ProviderDeepSeek, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// FromEnv builds the provider with defaults, reading the API key from
// the environment.
func (p ProviderType) FromEnv() (Provider, error) {
	return NewProviderBuilder(p).FromEnv()
}

// Model starts configuring this provider with a specific model.
func (p ProviderType) Model(model string) *ProviderBuilder {
	return NewProviderBuilder(p).Model(model)
}

// APIKey builds the provider with an explicit key and defaults for
// everything else.
func (p ProviderType) APIKey(key string) (Provider, error) {
	return NewProviderBuilder(p).APIKey(key)
}

// ProviderBuilder accumulates provider configuration before construction.
type ProviderBuilder struct {
	providerType ProviderType
	model        string
	maxTokens    uint32
	temperature  *float32
}

// NewProviderBuilder creates a builder for the given provider.
func NewProviderBuilder(providerType ProviderType) *ProviderBuilder {
	return &ProviderBuilder{
		providerType: providerType,
	}
}

// Model sets the model to use.
func (b *ProviderBuilder) Model(model string) *ProviderBuilder {
	b.model = model
	return b
}

// MaxTokens sets the response token cap.
func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

// Temperature sets the sampling temperature.
func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// FromEnv builds the provider, reading the API key from the environment.
func (b *ProviderBuilder) FromEnv() (Provider, error) {
	envVar := b.providerType.EnvVar()
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", b.providerType, envVar)
	}
	return b.build(apiKey)
}

// APIKey builds the provider with an explicit API key.
func (b *ProviderBuilder) APIKey(key string) (Provider, error) {
	return b.build(key)
}

func (b *ProviderBuilder) build(apiKey string) (Provider, error) {
	model := b.model
	if model == "" {
		model = b.providerType.DefaultModel()
	}

	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	temperature := float32(0.7)
	if b.temperature != nil {
		temperature = *b.temperature
	}

	switch b.providerType {
	case ProviderOpenAI:
		return NewOpenAIProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderDeepSeek:
		return NewDeepSeekProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderGemini:
		return NewGeminiProvider(apiKey, model, maxTokens, temperature), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", b.providerType)
	}
}
