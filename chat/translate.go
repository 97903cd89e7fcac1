// Wire-format translation from the simplified internal history to the
// provider-facing chat message shape.
//
// Information Hiding:
// - Role mapping, including the tool-call reconstruction format
// - Image encoding into data URIs with content sniffing

package chat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	internaljson "github.com/mwielandt/tern/internal/json"
	"github.com/mwielandt/tern/internal/log"
	"github.com/mwielandt/tern/llm"
	"github.com/mwielandt/tern/model"
)

// Keys of the JSON body a tool-call history message carries.
const (
	toolCallFuncNameKey  = "function_name"
	toolCallArgumentsKey = "arguments"
)

// unknownToolName is the fallback when a tool-call body cannot be parsed.
const unknownToolName = "unknown"

// toolCallBody is the JSON-encodable payload stored in a tool-call
// history message.
type toolCallBody struct {
	FunctionName string         `json:"function_name"`
	Arguments    map[string]any `json:"arguments"`
}

// EncodeToolCallMessage serializes a tool invocation into the body format
// the translator reconstructs calls from.
func EncodeToolCallMessage(toolName string, args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}
	encoded, err := json.Marshal(toolCallBody{
		FunctionName: toolName,
		Arguments:    args,
	})
	if err != nil {
		encoded, _ = json.Marshal(toolCallBody{FunctionName: toolName, Arguments: map[string]any{}})
	}
	return string(encoded)
}

// TranslateHistory converts the assembled history into provider-facing
// messages. Pure and stateless: translating the same input twice yields
// identical output.
//
// One bad element never sinks the whole translation. Unknown roles are
// skipped with a warning, undecodable images are dropped from their
// message, and malformed tool-call bodies degrade to an "unknown" call.
// The single hard failure is a tool response without a call id, which is
// a caller bug rather than recoverable input.
func TranslateHistory(history []model.ConversationMessage, logger log.Logger) ([]llm.ChatMessage, error) {
	out := make([]llm.ChatMessage, 0, len(history))

	for _, msg := range history {
		switch msg.Role {
		case model.RoleSystem:
			out = append(out, llm.SystemMessage(msg.Text))

		case model.RoleUser:
			if len(msg.Images) == 0 {
				out = append(out, llm.UserMessage(msg.Text))
				continue
			}
			parts := []llm.ContentPart{{Type: llm.PartTypeText, Text: msg.Text}}
			for _, img := range msg.Images {
				uri, ok := imageDataURI(img)
				if !ok {
					logger.Warn("dropping undecodable image attachment", "image_id", img.ID)
					continue
				}
				parts = append(parts, llm.ContentPart{Type: llm.PartTypeImageURL, ImageURL: uri})
			}
			out = append(out, llm.ChatMessage{Role: "user", Parts: parts})

		case model.RoleAssistant:
			out = append(out, llm.AssistantMessage(msg.Text))

		case model.RoleToolCall:
			name, args := decodeToolCallBody(msg.Text, logger)
			out = append(out, llm.ChatMessage{
				Role: "assistant",
				ToolCalls: []llm.ToolCall{{
					ID:        msg.ToolCallID,
					Name:      name,
					Arguments: args,
				}},
			})

		case model.RoleToolCallResponse:
			if msg.ToolCallID == "" {
				return nil, fmt.Errorf("%w: response text %q", ErrMissingToolCallID, truncateForLog(msg.Text))
			}
			out = append(out, llm.ChatMessage{
				Role:       "tool",
				Content:    msg.Text,
				ToolCallID: msg.ToolCallID,
			})

		default:
			logger.Warn("skipping message with unrecognized role", "role", string(msg.Role))
		}
	}

	return out, nil
}

// decodeToolCallBody parses a stored tool-call body, salvaging JSON
// embedded in surrounding text before degrading to an unknown call with
// best-effort arguments.
func decodeToolCallBody(body string, logger log.Logger) (name string, argsJSON string) {
	raw := body
	if salvaged, err := internaljson.ExtractJSON(body); err == nil {
		raw = salvaged
	}

	var decoded toolCallBody
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil || decoded.FunctionName == "" {
		logger.Warn("malformed tool call body, degrading", "body", truncateForLog(body))
		if decoded.FunctionName == "" {
			decoded.FunctionName = unknownToolName
		}
	}
	if decoded.Arguments == nil {
		decoded.Arguments = map[string]any{}
	}

	encodedArgs, err := json.Marshal(decoded.Arguments)
	if err != nil {
		encodedArgs = []byte("{}")
	}
	return decoded.FunctionName, string(encodedArgs)
}

// imageDataURI encodes an image attachment as a base64 data URI, sniffing
// the content type from the bytes. Non-image content fails.
func imageDataURI(img model.ImageFile) (string, bool) {
	if len(img.Data) == 0 {
		return "", false
	}
	contentType := http.DetectContentType(img.Data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", false
	}
	return "data:" + contentType + ";base64," + img.ToBase64(), true
}

// truncateForLog shortens a string for log output, cutting on a rune
// boundary so the result stays valid UTF-8.
func truncateForLog(s string) string {
	const max = 100
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
