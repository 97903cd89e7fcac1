// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - System instruction handling via config
// - Pull-based SDK iterator pumped onto a goroutine to fit the Stream shape

package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	initErr     error // Stores client initialization error for deferred reporting
}

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(apiKey, model string, maxTokens uint32, temperature float32) *GeminiProvider {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &GeminiProvider{
			client:      nil,
			model:       model,
			maxTokens:   int32(maxTokens),
			temperature: temperature,
			initErr:     fmt.Errorf("failed to initialize Gemini client: %w", err),
		}
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the current model.
func (p *GeminiProvider) Model() string {
	return p.model
}

// Config returns the model configuration.
func (p *GeminiProvider) Config() ModelConfig {
	return ModelConfig{
		Provider:       "gemini",
		Model:          p.model,
		MaxInputTokens: MaxInputTokensFor(p.model),
	}
}

// Stream starts a streaming chat completion with tool support.
//
// Gemini surfaces function calls as whole parts rather than incremental
// deltas, so each one becomes a single complete ToolCallDelta. The SDK does
// not assign call ids; a fresh uuid stands in so downstream bookkeeping has
// a stable key.
func (p *GeminiProvider) Stream(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, toolChoice ToolChoice) (Stream, error) {
	if p.initErr != nil {
		return nil, p.initErr
	}
	if p.client == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}

	contents, systemInstruction := convertToGeminiMessages(messages)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: p.maxTokens,
	}

	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	if len(tools) > 0 && toolChoice != ToolChoiceNone {
		config.Tools = convertToGeminiTools(tools)
		mode := genai.FunctionCallingConfigModeAuto
		if toolChoice == ToolChoiceRequired {
			mode = genai.FunctionCallingConfigModeAny
		}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode},
		}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	packets := make(chan StreamPacket)
	errc := make(chan error, 1)

	go func() {
		defer close(packets)
		errc <- p.pump(streamCtx, contents, config, packets)
	}()

	return &packetStream{packets: packets, errc: errc, cancel: cancel}, nil
}

// pump consumes the SDK iterator and forwards translated packets. Returns
// nil on normal exhaustion so the reader sees io.EOF.
func (p *GeminiProvider) pump(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig, packets chan<- StreamPacket) error {
	var usage *TokenUsage
	finishReason := ""
	toolCallIndex := 0

	send := func(packet StreamPacket) bool {
		select {
		case packets <- packet:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for response, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, config) {
		if err != nil {
			return fmt.Errorf("stream error: %w", err)
		}

		if response.UsageMetadata != nil {
			usage = &TokenUsage{
				PromptTokens:     uint32(response.UsageMetadata.PromptTokenCount),
				CompletionTokens: uint32(response.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      uint32(response.UsageMetadata.TotalTokenCount),
			}
		}

		if len(response.Candidates) == 0 {
			continue
		}
		candidate := response.Candidates[0]
		if candidate.FinishReason != "" {
			finishReason = translateGeminiFinishReason(candidate.FinishReason)
		}
		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			var delta StreamDelta
			switch {
			case part.FunctionCall != nil:
				argsJSON, _ := json.Marshal(part.FunctionCall.Args)
				delta.ToolCalls = []ToolCallDelta{{
					Index:             toolCallIndex,
					ID:                uuid.New().String(),
					Name:              part.FunctionCall.Name,
					ArgumentsFragment: string(argsJSON),
				}}
				toolCallIndex++
				finishReason = "tool_calls"
			case part.Thought && part.Text != "":
				delta.ReasoningContent = part.Text
			case part.Text != "":
				delta.Content = part.Text
			default:
				continue
			}
			if !send(StreamPacket{Delta: delta}) {
				return ctx.Err()
			}
		}
	}

	if finishReason == "" {
		finishReason = "stop"
	}
	if !send(StreamPacket{FinishReason: finishReason, Usage: usage}) {
		return ctx.Err()
	}
	return nil
}

// translateGeminiFinishReason maps Gemini finish reasons onto the chat
// completions vocabulary the executor expects.
func translateGeminiFinishReason(reason genai.FinishReason) string {
	switch reason {
	case genai.FinishReasonMaxTokens:
		return "length"
	default:
		return "stop"
	}
}

// convertToGeminiMessages converts wire messages to Gemini format.
// Extracts the system message and returns it separately.
func convertToGeminiMessages(messages []ChatMessage) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemInstruction string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemInstruction = msg.Content

		case "user":
			if len(msg.Parts) > 0 {
				content := &genai.Content{Role: genai.RoleUser}
				for _, part := range msg.Parts {
					switch part.Type {
					case PartTypeImageURL:
						mediaType, b64, ok := parseDataURI(part.ImageURL)
						if !ok {
							continue
						}
						raw, err := base64.StdEncoding.DecodeString(b64)
						if err != nil {
							continue
						}
						content.Parts = append(content.Parts, &genai.Part{
							InlineData: &genai.Blob{MIMEType: mediaType, Data: raw},
						})
					default:
						content.Parts = append(content.Parts, &genai.Part{Text: part.Text})
					}
				}
				contents = append(contents, content)
			} else {
				contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
			}

		case "assistant":
			if len(msg.ToolCalls) > 0 {
				content := &genai.Content{Role: genai.RoleModel}
				if msg.Content != "" {
					content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
				}
				for _, tc := range msg.ToolCalls {
					var args map[string]any
					_ = json.Unmarshal([]byte(tc.Arguments), &args)
					content.Parts = append(content.Parts, &genai.Part{
						FunctionCall: &genai.FunctionCall{
							Name: tc.Name,
							Args: args,
						},
					})
				}
				contents = append(contents, content)
			} else if msg.Content != "" {
				contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
			}

		case "tool":
			var result map[string]any
			_ = json.Unmarshal([]byte(msg.Content), &result)
			if result == nil {
				result = map[string]any{"result": msg.Content}
			}
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser, // Gemini expects tool results as user
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     msg.ToolCallID,
						Response: result,
					},
				}},
			})
		}
	}

	return contents, systemInstruction
}

// convertToGeminiTools converts tool definitions to Gemini format.
func convertToGeminiTools(tools []ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	var declarations []*genai.FunctionDeclaration
	for _, t := range tools {
		schema := convertToGeminiSchema(t.Parameters)
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertToGeminiSchema recursively converts a parameter schema to Gemini format.
// Handles arrays by adding required 'items' field.
func convertToGeminiSchema(params map[string]any) *genai.Schema {
	schema := &genai.Schema{
		Type: genai.TypeObject,
	}

	if t, ok := params["type"].(string); ok {
		schema.Type = mapToGeminiType(t)
	}

	if req, ok := params["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	// Also handle []string
	if req, ok := params["required"].([]string); ok {
		schema.Required = req
	}

	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			propMap, ok := prop.(map[string]any)
			if !ok {
				continue
			}
			schema.Properties[name] = convertPropertyToGeminiSchema(propMap)
		}
	}

	return schema
}

// convertPropertyToGeminiSchema converts a single property to Gemini schema.
func convertPropertyToGeminiSchema(prop map[string]any) *genai.Schema {
	schema := &genai.Schema{}

	if t, ok := prop["type"].(string); ok {
		schema.Type = mapToGeminiType(t)
	}

	if d, ok := prop["description"].(string); ok {
		schema.Description = d
	}

	// Gemini requires 'items' for arrays
	if schema.Type == genai.TypeArray {
		if items, ok := prop["items"].(map[string]any); ok {
			schema.Items = convertPropertyToGeminiSchema(items)
		} else {
			schema.Items = &genai.Schema{Type: genai.TypeString}
		}
	}

	// Handle nested object properties
	if schema.Type == genai.TypeObject {
		if props, ok := prop["properties"].(map[string]any); ok {
			schema.Properties = make(map[string]*genai.Schema)
			for name, p := range props {
				if pMap, ok := p.(map[string]any); ok {
					schema.Properties[name] = convertPropertyToGeminiSchema(pMap)
				}
			}
		}
	}

	return schema
}

// mapToGeminiType maps JSON schema type to Gemini type.
func mapToGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer", "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
