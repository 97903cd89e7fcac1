// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific streaming event translation

package llm

import (
	"context"
	"io"
)

// Provider defines the abstract interface for streaming LLM providers.
// Implementations translate their SDK's native streaming events into the
// common StreamPacket shape.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Config returns the model configuration, including the input
	// token budget the caller must stay within.
	Config() ModelConfig

	// Stream starts a streaming chat completion. The returned Stream
	// yields packets until a packet with a finish reason, then io.EOF.
	// Callers must Close the stream.
	Stream(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, toolChoice ToolChoice) (Stream, error)
}

// Stream is a sequence of model output packets. Recv blocks until the next
// packet is available and returns io.EOF after the terminal packet.
type Stream interface {
	Recv() (StreamPacket, error)
	Close() error
}

// packetStream adapts a pre-built packet slice to the Stream interface.
// Used by providers whose SDKs surface pull-based iterators consumed on a
// goroutine, and by tests.
type packetStream struct {
	packets <-chan StreamPacket
	errc    <-chan error
	cancel  context.CancelFunc
}

func (s *packetStream) Recv() (StreamPacket, error) {
	packet, ok := <-s.packets
	if !ok {
		if err := <-s.errc; err != nil {
			return StreamPacket{}, err
		}
		return StreamPacket{}, io.EOF
	}
	return packet, nil
}

func (s *packetStream) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
