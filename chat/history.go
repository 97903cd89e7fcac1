// Token budget and history assembly.
//
// Information Hiding:
// - Truncation strategy (oldest-first, atomic messages)
// - Fixed prompt component ordering
// - Project file context message construction

package chat

import (
	"encoding/json"
	"fmt"

	"github.com/mwielandt/tern/internal/log"
	"github.com/mwielandt/tern/model"
)

// projectFilesPrefix introduces the project file context message.
const projectFilesPrefix = "Here are some documents provided for context, they may not all be relevant:\n"

type projectDocument struct {
	CitationID int    `json:"citation_id"`
	Contents   string `json:"contents"`
}

type projectDocuments struct {
	Documents []projectDocument `json:"documents"`
}

// BuildProjectFilesMessage wraps each project file's extracted text as a
// numbered document inside a JSON object, prefixed with a fixed
// instruction sentence, as a user-role message. Returns nil if there is no
// text content. The extractor's precomputed token count is charged for
// the message when present; only an unset count falls back to the
// estimator.
func BuildProjectFilesMessage(projectFiles model.ProjectFiles, count CountTokens) *model.ConversationMessage {
	if len(projectFiles.FileTexts) == 0 {
		return nil
	}

	docs := projectDocuments{
		Documents: make([]projectDocument, 0, len(projectFiles.FileTexts)),
	}
	for i, text := range projectFiles.FileTexts {
		docs.Documents = append(docs.Documents, projectDocument{
			CitationID: i + 1,
			Contents:   text,
		})
	}

	encoded, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		// Only unmarshalable types can fail here; plain strings never do.
		return nil
	}

	text := projectFilesPrefix + string(encoded)
	tokenCount := projectFiles.TotalTokenCount
	if tokenCount == 0 {
		tokenCount = count(text)
	}
	return &model.ConversationMessage{
		Text:       text,
		TokenCount: tokenCount,
		Role:       model.RoleUser,
	}
}

// AssembleHistory produces the ordered message list for one model call,
// truncating old context to fit inside availableTokens.
//
// The fixed component costs (system, custom agent, project files,
// reminder) are charged first; if they alone exceed the budget the call
// fails with ErrBudgetExceeded. The most recent user message and
// everything chronologically after it are never truncated away; only
// older context is sacrificed, oldest first, each message atomic.
//
// Output ordering is a contract the translator and the model depend on:
// [system, truncated before-context, custom agent?, project files?,
// last user message (+project images), after-context, reminder?].
func AssembleHistory(
	system model.ConversationMessage,
	customAgent *model.ConversationMessage,
	history []model.ConversationMessage,
	reminder *model.ConversationMessage,
	projectFiles model.ProjectFiles,
	availableTokens int,
	count CountTokens,
	logger log.Logger,
) ([]model.ConversationMessage, error) {
	projectFilesMsg := BuildProjectFilesMessage(projectFiles, count)

	budget := availableTokens - system.TokenCount
	if customAgent != nil {
		budget -= customAgent.TokenCount
	}
	if projectFilesMsg != nil {
		budget -= projectFilesMsg.TokenCount
	}
	if reminder != nil {
		budget -= reminder.TokenCount
	}
	if budget < 0 {
		return nil, fmt.Errorf("%w: fixed prompt components need %d tokens more than the %d available",
			ErrBudgetExceeded, -budget, availableTokens)
	}

	if len(history) == 0 {
		out := []model.ConversationMessage{system}
		if customAgent != nil {
			out = append(out, *customAgent)
		}
		if projectFilesMsg != nil {
			out = append(out, *projectFilesMsg)
		}
		if reminder != nil {
			out = append(out, *reminder)
		}
		return out, nil
	}

	lastUserIdx := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleUser {
			lastUserIdx = i
			break
		}
	}
	if lastUserIdx < 0 {
		return nil, ErrNoUserMessage
	}

	before := history[:lastUserIdx]
	lastUser := history[lastUserIdx]
	after := history[lastUserIdx+1:]

	required := lastUser.TokenCount
	for _, msg := range after {
		required += msg.TokenCount
	}
	if required > budget {
		return nil, fmt.Errorf("%w: last user message and subsequent context need %d tokens, only %d available",
			ErrBudgetExceeded, required, budget)
	}

	// Walk backward from the most recent before-context entry, greedily
	// keeping whole messages while they fit. The first overflow stops the
	// walk; everything older is dropped.
	remaining := budget - required
	keepFrom := len(before)
	for i := len(before) - 1; i >= 0; i-- {
		if before[i].TokenCount > remaining {
			break
		}
		remaining -= before[i].TokenCount
		keepFrom = i
	}
	truncatedBefore := before[keepFrom:]
	if keepFrom > 0 {
		logger.Debug("truncated history",
			"dropped_messages", keepFrom,
			"kept_messages", len(truncatedBefore))
	}

	if len(projectFiles.ImageFiles) > 0 {
		lastUser = lastUser.WithImages(projectFiles.ImageFiles)
	}

	out := make([]model.ConversationMessage, 0, len(truncatedBefore)+len(after)+5)
	out = append(out, system)
	out = append(out, truncatedBefore...)
	if customAgent != nil {
		out = append(out, *customAgent)
	}
	if projectFilesMsg != nil {
		out = append(out, *projectFilesMsg)
	}
	out = append(out, lastUser)
	out = append(out, after...)
	if reminder != nil {
		out = append(out, *reminder)
	}
	return out, nil
}
