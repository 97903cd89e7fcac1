// Turn loop controller - the top-level state machine for one chat turn.
//
// Information Hiding:
// - Cycle bookkeeping (tool selection, sticky flags, turn indexes)
// - Citation mapping threading between dispatcher and processor
// - Persist-then-stop finalization ordering

package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/mwielandt/tern/internal/log"
	"github.com/mwielandt/tern/llm"
	"github.com/mwielandt/tern/model"
	"github.com/mwielandt/tern/tools"
)

// DefaultMaxCycles bounds the number of model invocations per turn. The
// final cycle is always offered no tools, forcing a terminal answer.
const DefaultMaxCycles = 5

// TurnRecord is the durable outcome of one completed turn.
type TurnRecord struct {
	AssistantMessageID string
	Answer             string
	Reasoning          string
	CitationDocs       []model.CitationDocInfo
	ToolCalls          []model.ToolCallInfo
}

// TurnStore is the persistence collaborator. SaveTurn must complete
// before the terminal stop event is emitted.
type TurnStore interface {
	SaveTurn(ctx context.Context, record TurnRecord) error

	// DefaultBasePrompt returns the configured base system prompt, or
	// "" to use the built-in default.
	DefaultBasePrompt(ctx context.Context) (string, error)
}

// TurnRequest carries everything needed to run one turn.
type TurnRequest struct {
	// History is the prior conversation in chronological order. The loop
	// appends tool call records to its own copy.
	History []model.ConversationMessage

	// Tools available to the model this turn.
	Tools []tools.Tool

	// CustomAgentPrompt, when set, rides as an extra user-role message
	// directly before the project file context.
	CustomAgentPrompt string

	// ProjectFiles is extracted project file content; its images are
	// attached to the most recent user message.
	ProjectFiles model.ProjectFiles

	// Persona configures prompt behavior. Nil means the default
	// assistant with datetime awareness.
	Persona *Persona

	// Memories are snippets about the user included in the system prompt.
	Memories []string

	// ForceToolName, when set, restricts the first cycle to that single
	// tool with required tool choice. Consumed after one use.
	ForceToolName string

	// AssistantMessageID is the handle of the assistant message row the
	// persisted turn attaches to.
	AssistantMessageID string
}

// Loop runs complete chat turns. One Loop value is safe to reuse across
// turns; all per-turn state lives in Run.
type Loop struct {
	provider    llm.Provider
	store       TurnStore
	emitter     Emitter
	count       CountTokens
	logger      log.Logger
	maxCycles   int
	stepTimeout time.Duration
	toolTimeout time.Duration
	now         func() time.Time
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithCountTokens replaces the default token estimator.
func WithCountTokens(count CountTokens) LoopOption {
	return func(l *Loop) { l.count = count }
}

// WithLogger sets the loop's logger.
func WithLogger(logger log.Logger) LoopOption {
	return func(l *Loop) { l.logger = logger }
}

// WithMaxCycles overrides the cycle bound.
func WithMaxCycles(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxCycles = n
		}
	}
}

// WithStepTimeout bounds each model stream invocation. Zero means no
// per-step deadline beyond the request context.
func WithStepTimeout(d time.Duration) LoopOption {
	return func(l *Loop) { l.stepTimeout = d }
}

// WithToolTimeout bounds each tool execution. Zero means no per-tool
// deadline beyond the request context.
func WithToolTimeout(d time.Duration) LoopOption {
	return func(l *Loop) { l.toolTimeout = d }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) LoopOption {
	return func(l *Loop) { l.now = now }
}

// NewLoop creates a turn loop over the given collaborators.
func NewLoop(provider llm.Provider, store TurnStore, emitter Emitter, opts ...LoopOption) *Loop {
	l := &Loop{
		provider:  provider,
		store:     store,
		emitter:   emitter,
		count:     EstimateTokens,
		logger:    log.NewNop(),
		maxCycles: DefaultMaxCycles,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes one complete turn: repeated model invocations with tool
// execution folded back into history, ending with a persisted answer and
// a terminal stop event. Any fatal error aborts the stream without a stop
// event; the client interprets the missing close as failure.
func (l *Loop) Run(ctx context.Context, req TurnRequest) error {
	citations := NewCitationProcessor()
	availableTokens := l.provider.Config().MaxInputTokens

	history := append([]model.ConversationMessage(nil), req.History...)
	forceToolName := req.ForceToolName
	citationMapping := make(map[int]string)

	var (
		lastStep         *StepResult
		collected        []model.ToolCallInfo
		gathered         []model.SearchDoc
		shouldCite       bool
		ranTerminalTool  bool
		justRanWebSearch bool
		turnIndex        int
	)

	for cycle := 0; cycle < l.maxCycles; cycle++ {
		var cycleTools []tools.Tool
		choice := llm.ToolChoiceAuto
		switch {
		case forceToolName != "":
			tool, ok := tools.FindByName(req.Tools, forceToolName)
			if !ok {
				return fmt.Errorf("%w: forced tool %q", ErrToolNotFound, forceToolName)
			}
			cycleTools = []tools.Tool{tool}
			choice = llm.ToolChoiceRequired
			forceToolName = "" // single use per turn
		case cycle == l.maxCycles-1 || ranTerminalTool:
			choice = llm.ToolChoiceNone
		default:
			cycleTools = req.Tools
		}

		system, customAgent, err := l.buildSystemMessages(ctx, req, shouldCite)
		if err != nil {
			return err
		}
		reminder := l.buildReminder(req.Persona, ranTerminalTool, justRanWebSearch, shouldCite)

		assembled, err := AssembleHistory(
			system, customAgent, history, reminder,
			req.ProjectFiles, availableTokens, l.count, l.logger,
		)
		if err != nil {
			return err
		}

		translated, err := TranslateHistory(assembled, l.logger)
		if err != nil {
			return err
		}

		toolDefs := make([]llm.ToolDefinition, 0, len(cycleTools))
		for _, tool := range cycleTools {
			toolDefs = append(toolDefs, tool.Definition())
		}

		stepCtx := ctx
		cancel := context.CancelFunc(func() {})
		if l.stepTimeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, l.stepTimeout)
		}
		step, nextIndex, err := RunStep(
			stepCtx, l.provider, translated, toolDefs, choice,
			l.emitter, turnIndex, citations, gathered, l.logger,
		)
		cancel()
		if err != nil {
			return err
		}
		turnIndex = nextIndex
		lastStep = &step

		justRanWebSearch = false
		for _, kickoff := range step.ToolCalls {
			var err error
			turnIndex, gathered, justRanWebSearch, err = l.runToolCall(
				ctx, kickoff, cycleTools, turnIndex, gathered,
				justRanWebSearch, step.Reasoning,
				citations, citationMapping, &history, &collected,
			)
			if err != nil {
				return err
			}
		}

		// No tool calls means the model gave its final answer.
		if len(step.ToolCalls) == 0 {
			break
		}

		for _, kickoff := range step.ToolCalls {
			if tools.IsStopping(kickoff.ToolName) {
				ranTerminalTool = true
			}
			if tools.IsCiteable(kickoff.ToolName) {
				shouldCite = true
			}
		}
	}

	if lastStep == nil || lastStep.Answer == "" {
		return ErrNoAnswer
	}

	record := TurnRecord{
		AssistantMessageID: req.AssistantMessageID,
		Answer:             lastStep.Answer,
		Reasoning:          lastStep.Reasoning,
		CitationDocs:       dedupCitations(citations.CitationToDoc()),
		ToolCalls:          collected,
	}
	if err := l.store.SaveTurn(ctx, record); err != nil {
		return fmt.Errorf("saving turn: %w", err)
	}

	// Only after durable persistence; a stop before a failed save would
	// let the client believe in a turn that was rolled back.
	l.emitter.Emit(turnIndex, OverallStop{})
	return nil
}

// buildSystemMessages constructs the system message and optional custom
// agent message for one cycle. A persona replacing the base system prompt
// gets its text verbatim with no tool or citation sections; otherwise its
// text is folded in as a custom instructions section.
func (l *Loop) buildSystemMessages(ctx context.Context, req TurnRequest, shouldCite bool) (model.ConversationMessage, *model.ConversationMessage, error) {
	persona := req.Persona
	if persona != nil && persona.ReplaceBaseSystemPrompt && persona.SystemPrompt != "" {
		return l.userOrSystemMessage(persona.SystemPrompt, model.RoleSystem), nil, nil
	}

	basePrompt, err := l.store.DefaultBasePrompt(ctx)
	if err != nil {
		return model.ConversationMessage{}, nil, fmt.Errorf("loading base system prompt: %w", err)
	}

	datetimeAware := true
	customInstructions := ""
	if persona != nil {
		datetimeAware = persona.DatetimeAware
		customInstructions = persona.SystemPrompt
	}

	text := BuildSystemPrompt(basePrompt, customInstructions, datetimeAware, req.Memories, req.Tools, shouldCite, l.now())
	system := l.userOrSystemMessage(text, model.RoleSystem)

	var customAgent *model.ConversationMessage
	if req.CustomAgentPrompt != "" {
		msg := l.userOrSystemMessage(req.CustomAgentPrompt, model.RoleUser)
		customAgent = &msg
	}
	return system, customAgent, nil
}

// buildReminder selects and materializes the cycle's reminder message.
func (l *Loop) buildReminder(persona *Persona, ranTerminalTool, justRanWebSearch, shouldCite bool) *model.ConversationMessage {
	taskPrompt := ""
	if persona != nil {
		taskPrompt = persona.TaskPrompt
	}
	text := SelectReminderText(ranTerminalTool, justRanWebSearch, taskPrompt, shouldCite)
	if text == "" {
		return nil
	}
	msg := l.userOrSystemMessage(text, model.RoleUser)
	return &msg
}

func (l *Loop) userOrSystemMessage(text string, role model.Role) model.ConversationMessage {
	return model.ConversationMessage{
		Text:       text,
		TokenCount: l.count(text),
		Role:       role,
	}
}

// runToolCall dispatches one kickoff, folds the response into history and
// the collected records, feeds citeable results into the citation
// processor, and advances the turn index.
func (l *Loop) runToolCall(
	ctx context.Context,
	kickoff model.ToolCallKickoff,
	cycleTools []tools.Tool,
	turnIndex int,
	gathered []model.SearchDoc,
	justRanWebSearch bool,
	reasoning string,
	citations *CitationProcessor,
	citationMapping map[int]string,
	history *[]model.ConversationMessage,
	collected *[]model.ToolCallInfo,
) (int, []model.SearchDoc, bool, error) {
	tool, ok := tools.FindByName(cycleTools, kickoff.ToolName)
	if !ok {
		// The model called a tool outside the registry it was given; a
		// contract violation, not a soft failure.
		return turnIndex, gathered, justRanWebSearch,
			fmt.Errorf("%w: model requested %q", ErrToolNotFound, kickoff.ToolName)
	}

	l.emitter.Emit(turnIndex, ToolCallStart{
		ToolCallID: kickoff.ToolCallID,
		ToolName:   kickoff.ToolName,
		ToolArgs:   kickoff.ToolArgs,
	})

	toolCtx := ctx
	cancel := context.CancelFunc(func() {})
	if l.toolTimeout > 0 {
		toolCtx, cancel = context.WithTimeout(ctx, l.toolTimeout)
	}
	responses, updatedMapping, err := tools.RunToolCalls(
		toolCtx, []model.ToolCallKickoff{kickoff}, cycleTools, citationMapping,
	)
	cancel()
	if err != nil {
		return turnIndex, gathered, justRanWebSearch, err
	}
	for num, docID := range updatedMapping {
		citationMapping[num] = docID
	}
	response := responses[0]

	var searchDocs []model.SearchDoc
	var generatedImages []model.GeneratedImage
	switch rich := response.Rich.(type) {
	case tools.SearchDocsResponse:
		searchDocs = rich.SearchDocs
		gathered = append(gathered, searchDocs...)

		// The open-URL reminder only fires when the web search tool
		// actually yielded results.
		if len(searchDocs) > 0 && kickoff.ToolName == tools.NameWebSearch {
			justRanWebSearch = true
		}

		if tools.IsCiteable(kickoff.ToolName) {
			toDoc := make(map[int]model.SearchDoc, len(rich.CitationMapping))
			for num, docID := range rich.CitationMapping {
				for _, doc := range rich.SearchDocs {
					if doc.DocumentID == docID {
						toDoc[num] = doc
						break
					}
				}
			}
			citations.UpdateCitationMapping(toDoc)
		}
	case tools.GeneratedImagesResponse:
		generatedImages = rich.GeneratedImages
	}

	// All tool calls from the same cycle share that cycle's reasoning.
	*collected = append(*collected, model.ToolCallInfo{
		TurnIndex:       turnIndex,
		ToolName:        kickoff.ToolName,
		ToolCallID:      kickoff.ToolCallID,
		ToolID:          tool.ID(),
		ReasoningTokens: reasoning,
		Arguments:       kickoff.ToolArgs,
		Response:        response.LLMFacingResponse,
		SearchDocs:      searchDocs,
		GeneratedImages: generatedImages,
	})

	callBody := EncodeToolCallMessage(kickoff.ToolName, kickoff.ToolArgs)
	*history = append(*history,
		model.ConversationMessage{
			Text:       callBody,
			TokenCount: l.count(callBody),
			Role:       model.RoleToolCall,
			ToolCallID: kickoff.ToolCallID,
		},
		model.ConversationMessage{
			Text:       response.LLMFacingResponse,
			TokenCount: l.count(response.LLMFacingResponse),
			Role:       model.RoleToolCallResponse,
			ToolCallID: kickoff.ToolCallID,
		},
	)

	l.emitter.Emit(turnIndex, ToolCallDone{
		ToolCallID:      kickoff.ToolCallID,
		ToolName:        kickoff.ToolName,
		SearchDocs:      searchDocs,
		GeneratedImages: generatedImages,
	})
	turnIndex++

	return turnIndex, gathered, justRanWebSearch, nil
}

// dedupCitations suppresses repeated citation numbers, first occurrence
// wins, preserving insertion order.
func dedupCitations(pairs []model.CitationDocInfo) []model.CitationDocInfo {
	seen := make(map[int]bool, len(pairs))
	out := make([]model.CitationDocInfo, 0, len(pairs))
	for _, pair := range pairs {
		if seen[pair.CitationNumber] {
			continue
		}
		seen[pair.CitationNumber] = true
		out = append(out, pair)
	}
	return out
}
