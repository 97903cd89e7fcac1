// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Streaming via go-openai library

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Config returns the model configuration.
func (p *OpenAIProvider) Config() ModelConfig {
	return ModelConfig{
		Provider:       "openai",
		Model:          p.model,
		MaxInputTokens: MaxInputTokensFor(p.model),
	}
}

// Stream starts a streaming chat completion with tool support.
func (p *OpenAIProvider) Stream(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, toolChoice ToolChoice) (Stream, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}

	if len(tools) > 0 {
		req.Tools = convertToOpenAITools(tools)
		req.ToolChoice = string(toolChoice)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("stream creation failed: %w", err)
	}

	return &openAIStream{stream: stream}, nil
}

// openAIStream translates go-openai stream responses into StreamPackets.
type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (StreamPacket, error) {
	for {
		response, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return StreamPacket{}, io.EOF
		}
		if err != nil {
			return StreamPacket{}, fmt.Errorf("stream recv failed: %w", err)
		}

		var packet StreamPacket
		if response.Usage != nil {
			packet.Usage = &TokenUsage{
				PromptTokens:     uint32(response.Usage.PromptTokens),
				CompletionTokens: uint32(response.Usage.CompletionTokens),
				TotalTokens:      uint32(response.Usage.TotalTokens),
			}
		}

		// The usage-only trailer has no choices; surface it as its own packet.
		if len(response.Choices) == 0 {
			if packet.Usage != nil {
				return packet, nil
			}
			continue
		}

		choice := response.Choices[0]
		packet.FinishReason = string(choice.FinishReason)
		packet.Delta.Content = choice.Delta.Content
		packet.Delta.ReasoningContent = choice.Delta.ReasoningContent
		for _, tc := range choice.Delta.ToolCalls {
			delta := ToolCallDelta{
				ID:                tc.ID,
				Name:              tc.Function.Name,
				ArgumentsFragment: tc.Function.Arguments,
			}
			if tc.Index != nil {
				delta.Index = *tc.Index
			}
			packet.Delta.ToolCalls = append(packet.Delta.ToolCalls, delta)
		}

		return packet, nil
	}
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}

// convertToOpenAIMessages converts wire messages to openai.ChatCompletionMessage,
// reconstructing multimodal parts, tool calls and tool results.
func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}

		if len(msg.Parts) > 0 {
			oaiMsg.Content = ""
			for _, part := range msg.Parts {
				switch part.Type {
				case PartTypeImageURL:
					oaiMsg.MultiContent = append(oaiMsg.MultiContent, openai.ChatMessagePart{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: part.ImageURL},
					})
				default:
					oaiMsg.MultiContent = append(oaiMsg.MultiContent, openai.ChatMessagePart{
						Type: openai.ChatMessagePartTypeText,
						Text: part.Text,
					})
				}
			}
		}

		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}

		if msg.ToolCallID != "" {
			oaiMsg.ToolCallID = msg.ToolCallID
		}

		result[i] = oaiMsg
	}
	return result
}

// convertToOpenAITools converts tool definitions to OpenAI format.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
