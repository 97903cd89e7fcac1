// Command execution for CLI commands.
//
// Information Hiding:
// - Provider and storage setup hidden
// - Event stream rendering hidden
// - Session bookkeeping hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mwielandt/tern/chat"
	"github.com/mwielandt/tern/config"
	"github.com/mwielandt/tern/internal/log"
	"github.com/mwielandt/tern/llm"
	"github.com/mwielandt/tern/model"
	"github.com/mwielandt/tern/storage"
	"github.com/mwielandt/tern/tools"
)

// Options holds CLI execution options.
type Options struct {
	Provider  string
	Persona   string
	ForceTool string
	Verbose   bool
}

// Chat starts an interactive chat session.
func Chat(ctx context.Context, sessionID, dbPath string, opts Options) error {
	settings, provider, err := setup(opts)
	if err != nil {
		return err
	}

	store, err := storage.OpenSqlite(resolveDBPath(dbPath, settings))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	persona, err := CreatePersona(opts.Persona)
	if err != nil {
		return err
	}

	session := sessionID
	if session == "" {
		session = "default"
	}

	history, err := store.LoadHistory(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(history) > 0 {
		fmt.Printf("Resuming session '%s' (%d messages)\n\n", session, len(history))
	}

	memories, err := store.Memories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load memories: %w", err)
	}

	available := buildTools(store, settings)

	fmt.Printf("Chat with %s. Type 'exit' to quit.\n\n", settings.LLM.Model)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		userMsg := model.ConversationMessage{
			Text:       input,
			TokenCount: chat.EstimateTokens(input),
			Role:       model.RoleUser,
		}

		answer, err := runTurn(ctx, provider, store, settings, chat.TurnRequest{
			History:            append(history, userMsg),
			Tools:              available,
			Persona:            persona,
			Memories:           memories,
			ForceToolName:      opts.ForceTool,
			AssistantMessageID: uuid.New().String(),
		}, opts.Verbose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
			continue
		}

		history = append(history,
			userMsg,
			model.ConversationMessage{
				Text:       answer,
				TokenCount: chat.EstimateTokens(answer),
				Role:       model.RoleAssistant,
			},
		)

		if err := store.SaveHistory(ctx, session, history); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save history: %v\n", err)
		}
	}

	return scanner.Err()
}

// Ask runs a single question as one turn without session persistence.
func Ask(ctx context.Context, question, dbPath string, opts Options) error {
	settings, provider, err := setup(opts)
	if err != nil {
		return err
	}

	store, err := storage.OpenSqlite(resolveDBPath(dbPath, settings))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	persona, err := CreatePersona(opts.Persona)
	if err != nil {
		return err
	}

	memories, err := store.Memories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load memories: %w", err)
	}

	_, err = runTurn(ctx, provider, store, settings, chat.TurnRequest{
		History: []model.ConversationMessage{{
			Text:       question,
			TokenCount: chat.EstimateTokens(question),
			Role:       model.RoleUser,
		}},
		Tools:              buildTools(store, settings),
		Persona:            persona,
		Memories:           memories,
		ForceToolName:      opts.ForceTool,
		AssistantMessageID: uuid.New().String(),
	}, opts.Verbose)
	return err
}

// runTurn executes one turn and renders its event stream to stdout.
// Returns the final answer text.
func runTurn(
	ctx context.Context,
	provider llm.Provider,
	store *storage.SqliteStorage,
	settings config.Settings,
	req chat.TurnRequest,
	verbose bool,
) (string, error) {
	emitter := chat.NewChannelEmitter(64)

	logger := log.NewNop()
	if verbose {
		logger = log.NewWithWriter(os.Stderr, log.Config{Level: slog.LevelDebug})
	}

	loop := chat.NewLoop(provider, store, emitter,
		chat.WithLogger(logger),
		chat.WithMaxCycles(settings.Loop.MaxCycles),
		chat.WithStepTimeout(time.Duration(settings.Loop.StepTimeoutSecs)*time.Second),
		chat.WithToolTimeout(time.Duration(settings.Loop.ToolTimeoutSecs)*time.Second),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- loop.Run(ctx, req)
		emitter.Close()
	}()

	answer := renderPackets(emitter.Packets(), verbose)
	if err := <-errCh; err != nil {
		return "", err
	}
	return answer, nil
}

// renderPackets consumes the turn's event stream and prints it.
// Returns the accumulated answer text.
func renderPackets(packets <-chan chat.Packet, verbose bool) string {
	var answer strings.Builder
	var citations []chat.CitationInfo
	inReasoning := false

	for pkt := range packets {
		switch ev := pkt.Event.(type) {
		case chat.ReasoningStart:
			if verbose {
				fmt.Print("\n[reasoning] ")
				inReasoning = true
			}
		case chat.ReasoningDelta:
			if verbose {
				fmt.Print(ev.Reasoning)
			}
		case chat.ReasoningDone:
			if inReasoning {
				fmt.Println()
				inReasoning = false
			}
		case chat.AgentResponseStart:
			fmt.Println()
		case chat.AgentResponseDelta:
			fmt.Print(ev.Answer)
			answer.WriteString(ev.Answer)
		case chat.CitationInfo:
			citations = append(citations, ev)
		case chat.ToolCallStart:
			fmt.Printf("\n[tool] %s %v\n", ev.ToolName, ev.ToolArgs)
		case chat.ToolCallDone:
			if len(ev.SearchDocs) > 0 {
				fmt.Printf("[tool] %s returned %d documents\n", ev.ToolName, len(ev.SearchDocs))
			}
			for _, img := range ev.GeneratedImages {
				fmt.Printf("[image] %s\n", img.URL)
			}
		case chat.OverallStop:
			fmt.Println()
		}
	}

	if len(citations) > 0 {
		fmt.Println("\nSources:")
		seen := make(map[int]bool)
		for _, c := range citations {
			if seen[c.CitationNumber] {
				continue
			}
			seen[c.CitationNumber] = true
			fmt.Printf("  [%d] %s\n", c.CitationNumber, c.Link)
		}
	}

	return answer.String()
}

// ListSessions prints all stored session IDs.
func ListSessions(ctx context.Context, dbPath string) error {
	store, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}
	for _, s := range sessions {
		fmt.Println(s)
	}
	return nil
}

// DeleteSession removes a session and its messages.
func DeleteSession(ctx context.Context, sessionID, dbPath string) error {
	store, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	if err := store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	fmt.Printf("Deleted session '%s'\n", sessionID)
	return nil
}

// AddMemory stores a memory snippet for inclusion in future system prompts.
func AddMemory(ctx context.Context, content, dbPath string) error {
	store, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	return store.AddMemory(ctx, content)
}

// ListMemories prints all stored memory snippets.
func ListMemories(ctx context.Context, dbPath string) error {
	store, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	memories, err := store.Memories(ctx)
	if err != nil {
		return err
	}
	if len(memories) == 0 {
		fmt.Println("No memories.")
		return nil
	}
	for _, m := range memories {
		fmt.Printf("- %s\n", m)
	}
	return nil
}

// AddDocument indexes a local file for the internal search tool.
func AddDocument(ctx context.Context, path, title, link, dbPath string) error {
	store, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if title == "" {
		title = path
	}

	doc := model.SearchDoc{
		DocumentID: uuid.New().String(),
		Title:      title,
		Link:       link,
		Blurb:      documentBlurb(string(content)),
		SourceType: "file",
	}
	if err := store.AddDocument(ctx, doc, string(content)); err != nil {
		return err
	}
	fmt.Printf("Indexed %s as %s\n", path, doc.DocumentID)
	return nil
}

// ListTools prints the tools a turn can use.
func ListTools(verbose bool) {
	settings := config.Settings{Search: config.SearchConfig{SearxURL: "http://localhost"}}
	available := buildTools(nil, settings)

	fmt.Println("Available tools:")
	fmt.Println()

	for _, t := range available {
		def := t.Definition()
		fmt.Printf("  %s\n", def.Name)
		fmt.Printf("    %s\n", def.Description)
		if verbose {
			if props, ok := def.Parameters["properties"].(map[string]any); ok {
				fmt.Println("    Parameters:")
				for name, raw := range props {
					if p, ok := raw.(map[string]any); ok {
						fmt.Printf("      %s: %v - %v\n", name, p["type"], p["description"])
					}
				}
			}
		}
		fmt.Println()
	}
}

// Helper functions

// documentBlurb trims the indexed file's preview, cutting on a rune
// boundary so multi-byte characters are never split.
func documentBlurb(content string) string {
	const max = 200
	if len(content) <= max {
		return content
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

func resolveDBPath(dbPath string, settings config.Settings) string {
	if dbPath != "" {
		return dbPath
	}
	return settings.Storage.DBPath
}

func setup(opts Options) (config.Settings, llm.Provider, error) {
	if opts.Provider == "" {
		return config.Settings{}, nil, fmt.Errorf("--provider is required for this command")
	}

	providerType, err := llm.ParseProviderType(opts.Provider)
	if err != nil {
		return config.Settings{}, nil, err
	}

	settings, err := config.New(opts.Provider)
	if err != nil {
		return config.Settings{}, nil, err
	}

	apiKey, err := config.APIKeyFor(opts.Provider)
	if err != nil {
		return config.Settings{}, nil, err
	}

	provider, err := providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
	if err != nil {
		return config.Settings{}, nil, err
	}
	return settings, provider, nil
}

// buildTools assembles the tool set for a turn. The search tool needs the
// document index; web search needs a SearXNG URL; image generation needs
// an OpenAI key. Tools whose backing service is unconfigured are omitted.
func buildTools(index tools.DocumentIndex, settings config.Settings) []tools.Tool {
	var available []tools.Tool
	id := 1

	if index != nil {
		available = append(available, tools.NewSearchTool(id, index))
		id++
	}

	if settings.Search.SearxURL != "" {
		searx := tools.NewSearxProvider(settings.Search.SearxURL, 15*time.Second)
		available = append(available, tools.NewWebSearchTool(id, searx))
		id++
	}

	available = append(available, tools.NewOpenURLTool(id, 15*time.Second))
	id++

	if key, err := config.APIKeyFor("openai"); err == nil {
		available = append(available, tools.NewImageGenTool(id, key))
	}

	return available
}
