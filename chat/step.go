// Streaming turn executor - drives one model invocation and demultiplexes
// its stream into reasoning text, answer text, and tool-call deltas.
//
// Information Hiding:
// - Stream state machine (reasoning open/closed, answer started)
// - Partial tool-call accumulation across fragmented deltas
// - Citation processor interleaving and end-of-stream flush

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mwielandt/tern/internal/log"
	"github.com/mwielandt/tern/llm"
	"github.com/mwielandt/tern/model"
)

// StepResult is the outcome of one model invocation.
type StepResult struct {
	Reasoning string
	Answer    string
	ToolCalls []model.ToolCallKickoff
}

// partialToolCall accumulates one tool call from fragmented deltas. The
// id and name are set once known; argument fragments are concatenated in
// arrival order.
type partialToolCall struct {
	id   string
	name string
	args strings.Builder
}

// RunStep performs one streaming model call and returns the step result
// plus the advanced turn index.
//
// Event ordering is a client contract: an optional reasoning block
// (start, deltas, done), then an optional answer block (start carrying
// the known-documents snapshot, then deltas with citations interleaved as
// the processor yields them). Reasoning always closes, and the turn index
// advances, before the first answer delta or tool-call delta; a stream
// that ends mid-reasoning still closes the block.
func RunStep(
	ctx context.Context,
	provider llm.Provider,
	messages []llm.ChatMessage,
	toolDefs []llm.ToolDefinition,
	toolChoice llm.ToolChoice,
	emitter Emitter,
	turnIndex int,
	citations *CitationProcessor,
	knownDocuments []model.SearchDoc,
	logger log.Logger,
) (StepResult, int, error) {
	stream, err := provider.Stream(ctx, messages, toolDefs, toolChoice)
	if err != nil {
		return StepResult{}, turnIndex, fmt.Errorf("starting model stream: %w", err)
	}
	defer stream.Close()

	var (
		reasoning     strings.Builder
		answer        strings.Builder
		reasoningOpen bool
		answerStarted bool
		partials      = make(map[int]*partialToolCall)
	)

	closeReasoning := func() {
		if !reasoningOpen {
			return
		}
		emitter.Emit(turnIndex, ReasoningDone{})
		reasoningOpen = false
		turnIndex++
	}

	forwardSegments := func(segments []Segment) {
		for _, segment := range segments {
			if segment.Citation != nil {
				emitter.Emit(turnIndex, *segment.Citation)
				continue
			}
			if segment.Text == "" {
				continue
			}
			if !answerStarted {
				emitter.Emit(turnIndex, AgentResponseStart{FinalDocuments: knownDocuments})
				answerStarted = true
			}
			emitter.Emit(turnIndex, AgentResponseDelta{Answer: segment.Text})
			answer.WriteString(segment.Text)
		}
	}

	for {
		packet, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return StepResult{}, turnIndex, fmt.Errorf("reading model stream: %w", err)
		}

		if packet.Delta.ReasoningContent != "" {
			if !reasoningOpen {
				emitter.Emit(turnIndex, ReasoningStart{})
				reasoningOpen = true
			}
			emitter.Emit(turnIndex, ReasoningDelta{Reasoning: packet.Delta.ReasoningContent})
			reasoning.WriteString(packet.Delta.ReasoningContent)
		}

		if packet.Delta.Content != "" {
			closeReasoning()
			if !answerStarted {
				emitter.Emit(turnIndex, AgentResponseStart{FinalDocuments: knownDocuments})
				answerStarted = true
			}
			token := packet.Delta.Content
			forwardSegments(citations.ProcessToken(&token))
		}

		if len(packet.Delta.ToolCalls) > 0 {
			// Tool calls never interleave with an open reasoning block.
			closeReasoning()
			for _, delta := range packet.Delta.ToolCalls {
				partial, ok := partials[delta.Index]
				if !ok {
					partial = &partialToolCall{}
					partials[delta.Index] = partial
				}
				if delta.ID != "" {
					partial.id = delta.ID
				}
				if delta.Name != "" {
					partial.name = delta.Name
				}
				partial.args.WriteString(delta.ArgumentsFragment)
			}
		}

		if packet.FinishReason != "" {
			break
		}
	}

	// The model can end mid-reasoning with no trailing answer.
	closeReasoning()

	forwardSegments(citations.ProcessToken(nil))

	result := StepResult{
		Reasoning: reasoning.String(),
		Answer:    answer.String(),
		ToolCalls: finalizeToolCalls(partials, logger),
	}
	return result, turnIndex, nil
}

// finalizeToolCalls turns accumulated partials into kickoffs, in delta
// index order. A partial missing its id or name is dropped; malformed
// argument JSON degrades to an empty argument map.
func finalizeToolCalls(partials map[int]*partialToolCall, logger log.Logger) []model.ToolCallKickoff {
	if len(partials) == 0 {
		return nil
	}

	indexes := make([]int, 0, len(partials))
	for index := range partials {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	var kickoffs []model.ToolCallKickoff
	for _, index := range indexes {
		partial := partials[index]
		if partial.id == "" || partial.name == "" {
			logger.Warn("dropping incomplete tool call",
				"index", index, "id", partial.id, "name", partial.name)
			continue
		}

		args := map[string]any{}
		if raw := partial.args.String(); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				logger.Error("tool call arguments failed to parse, using empty args",
					"tool", partial.name, "error", err)
				args = map[string]any{}
			}
		}

		kickoffs = append(kickoffs, model.ToolCallKickoff{
			ToolCallID: partial.id,
			ToolName:   partial.name,
			ToolArgs:   args,
		})
	}
	return kickoffs
}
