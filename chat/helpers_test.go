package chat

import (
	"context"
	"io"
	"sync"

	"github.com/mwielandt/tern/llm"
	"github.com/mwielandt/tern/model"
	"github.com/mwielandt/tern/tools"
)

// fakeStream replays a scripted packet sequence.
type fakeStream struct {
	packets []llm.StreamPacket
	pos     int
}

func (s *fakeStream) Recv() (llm.StreamPacket, error) {
	if s.pos >= len(s.packets) {
		return llm.StreamPacket{}, io.EOF
	}
	packet := s.packets[s.pos]
	s.pos++
	return packet, nil
}

func (s *fakeStream) Close() error { return nil }

// providerCall records what one Stream invocation received.
type providerCall struct {
	messages   []llm.ChatMessage
	tools      []llm.ToolDefinition
	toolChoice llm.ToolChoice
}

// fakeProvider returns one scripted packet sequence per Stream call.
type fakeProvider struct {
	scripts [][]llm.StreamPacket
	calls   []providerCall
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-model" }

func (p *fakeProvider) Config() llm.ModelConfig {
	return llm.ModelConfig{Provider: "fake", Model: "fake-model", MaxInputTokens: 100000}
}

func (p *fakeProvider) Stream(ctx context.Context, messages []llm.ChatMessage, toolDefs []llm.ToolDefinition, toolChoice llm.ToolChoice) (llm.Stream, error) {
	call := len(p.calls)
	p.calls = append(p.calls, providerCall{
		messages:   messages,
		tools:      toolDefs,
		toolChoice: toolChoice,
	})
	if call >= len(p.scripts) {
		return &fakeStream{}, nil
	}
	return &fakeStream{packets: p.scripts[call]}, nil
}

// captureEmitter records every emitted packet.
type captureEmitter struct {
	mu      sync.Mutex
	packets []Packet
}

func (e *captureEmitter) Emit(turnIndex int, event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.packets = append(e.packets, Packet{TurnIndex: turnIndex, Event: event})
}

func (e *captureEmitter) events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, 0, len(e.packets))
	for _, pkt := range e.packets {
		out = append(out, pkt.Event)
	}
	return out
}

// fakeTurnStore records saved turns and tracks save ordering.
type fakeTurnStore struct {
	basePrompt string
	saved      []TurnRecord
	saveErr    error
}

func (s *fakeTurnStore) SaveTurn(ctx context.Context, record TurnRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, record)
	return nil
}

func (s *fakeTurnStore) DefaultBasePrompt(ctx context.Context) (string, error) {
	return s.basePrompt, nil
}

// scriptTool returns a fixed response.
type scriptTool struct {
	name     string
	id       int
	response tools.Response
	err      error
	calls    int
	lastArgs map[string]any
}

func (t *scriptTool) Name() string { return t.name }
func (t *scriptTool) ID() int      { return t.id }

func (t *scriptTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.name,
		Description: "scripted test tool",
		Parameters:  map[string]any{"type": "object"},
	}
}

func (t *scriptTool) Run(ctx context.Context, args map[string]any) (tools.Response, error) {
	t.calls++
	t.lastArgs = args
	if t.err != nil {
		return tools.Response{}, t.err
	}
	return t.response, nil
}

func userMsg(text string, tokenCount int) model.ConversationMessage {
	return model.ConversationMessage{Text: text, TokenCount: tokenCount, Role: model.RoleUser}
}

func assistantMsg(text string, tokenCount int) model.ConversationMessage {
	return model.ConversationMessage{Text: text, TokenCount: tokenCount, Role: model.RoleAssistant}
}

func textPacket(content string) llm.StreamPacket {
	return llm.StreamPacket{Delta: llm.StreamDelta{Content: content}}
}

func reasoningPacket(content string) llm.StreamPacket {
	return llm.StreamPacket{Delta: llm.StreamDelta{ReasoningContent: content}}
}

func finishPacket(reason string) llm.StreamPacket {
	return llm.StreamPacket{FinishReason: reason}
}

func toolCallPacket(index int, id, name, argsFragment string) llm.StreamPacket {
	return llm.StreamPacket{Delta: llm.StreamDelta{ToolCalls: []llm.ToolCallDelta{{
		Index:             index,
		ID:                id,
		Name:              name,
		ArgumentsFragment: argsFragment,
	}}}}
}
