// System prompt and reminder construction for each loop cycle.
//
// Information Hiding:
// - Prompt template text and section layout
// - Reminder priority selection

package chat

import (
	"strings"
	"time"

	"github.com/mwielandt/tern/tools"
)

// DefaultBaseSystemPrompt is used when the persistence layer has no
// configured base prompt.
const DefaultBaseSystemPrompt = `You are a helpful AI assistant for question answering and task completion. ` +
	`Be concise, accurate, and direct. If you do not know something, say so rather than guessing. ` +
	`Format responses in Markdown where it improves readability.`

// ImageGenReminder discourages the model from emitting raw links or
// attachment markup for images it just generated; the client renders
// generated images itself.
const ImageGenReminder = `The requested image has been generated and is already displayed to the user. ` +
	`Do not include links, attachment references, or markdown image syntax for the generated image in your response. ` +
	`Briefly describe what was generated instead.`

// OpenURLReminder nudges the model to open promising links surfaced by
// the previous web search before answering.
const OpenURLReminder = `You just received web search results. If any of the result URLs look relevant, ` +
	`use the open_url tool to read their full contents before answering. Search snippets alone are often ` +
	`insufficient for a complete and accurate answer.`

// citationReminder is appended to the default reminder once citeable
// results exist.
const citationReminder = `Remember to cite relevant documents inline using bracketed numbers like [1] that ` +
	`refer to the provided sources. Cite only documents that directly support your statements.`

// toolUseInstruction heads the tools section of the system prompt.
const toolUseInstruction = `You have access to the following tools. Use them when they would improve your answer, ` +
	`and keep calling tools until you have what you need before responding.`

// customInstructionsIntro heads the custom instructions section carrying a
// persona's system text when it augments rather than replaces the base.
const customInstructionsIntro = `The user has provided the following instructions, ` +
	`these are very important and must be adhered to at all times:`

// Persona configures per-assistant prompt behavior.
type Persona struct {
	Name string

	// SystemPrompt is the persona's custom system text. When
	// ReplaceBaseSystemPrompt is set it is used verbatim as the entire
	// system message, with no tool or citation sections injected.
	// Otherwise it rides inside the built prompt as a custom
	// instructions section.
	SystemPrompt            string
	ReplaceBaseSystemPrompt bool

	// TaskPrompt, when set, becomes the default cycle reminder text.
	TaskPrompt string

	// DatetimeAware adds the current date and time to the system prompt.
	DatetimeAware bool
}

// BuildSystemPrompt combines the base template with datetime awareness,
// memory snippets, custom instructions, tool descriptions, and the
// citation instruction.
func BuildSystemPrompt(
	basePrompt string,
	customInstructions string,
	datetimeAware bool,
	memories []string,
	available []tools.Tool,
	shouldCiteDocuments bool,
	now time.Time,
) string {
	var b strings.Builder
	if basePrompt == "" {
		basePrompt = DefaultBaseSystemPrompt
	}
	b.WriteString(basePrompt)

	if datetimeAware {
		b.WriteString("\n\nThe current date and time is ")
		b.WriteString(now.Format("Monday, January 2, 2006 at 15:04 MST"))
		b.WriteString(".")
	}

	if len(memories) > 0 {
		b.WriteString("\n\n# Memories\n")
		b.WriteString("You remember the following about the user from previous conversations:\n")
		for _, memory := range memories {
			b.WriteString("- ")
			b.WriteString(memory)
			b.WriteString("\n")
		}
	}

	if customInstructions != "" {
		b.WriteString("\n\n# Custom Instructions\n")
		b.WriteString(customInstructionsIntro)
		b.WriteString("\n")
		b.WriteString(customInstructions)
	}

	if len(available) > 0 {
		b.WriteString("\n\n# Tools\n")
		b.WriteString(toolUseInstruction)
		for _, tool := range available {
			def := tool.Definition()
			b.WriteString("\n\n### ")
			b.WriteString(def.Name)
			b.WriteString("\n")
			b.WriteString(def.Description)
		}
	}

	if shouldCiteDocuments {
		b.WriteString("\n\n# Citations\n")
		b.WriteString(citationReminder)
	}

	return b.String()
}

// BuildReminderMessage assembles the default-case reminder: the persona's
// task prompt (if any) plus the citation reminder once citeable tools
// have run. Returns "" when there is nothing to remind about.
func BuildReminderMessage(taskPrompt string, includeCitationReminder bool) string {
	var parts []string
	if taskPrompt != "" {
		parts = append(parts, taskPrompt)
	}
	if includeCitationReminder {
		parts = append(parts, citationReminder)
	}
	return strings.Join(parts, "\n\n")
}

// SelectReminderText picks the reminder for the next cycle in priority
// order: terminal-tool reminder, then open-URL reminder after a
// successful web search, then the default reminder.
func SelectReminderText(ranTerminalTool, justRanWebSearch bool, taskPrompt string, shouldCiteDocuments bool) string {
	if ranTerminalTool {
		return ImageGenReminder
	}
	if justRanWebSearch {
		return OpenURLReminder
	}
	return BuildReminderMessage(taskPrompt, shouldCiteDocuments)
}
