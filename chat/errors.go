package chat

import "errors"

// Precondition violations that abort a whole turn. These indicate a caller
// or configuration bug, never a transient condition, and are not retried.
var (
	// ErrBudgetExceeded means the fixed prompt components alone, or the
	// untruncatable tail of the history, exceed the model's input budget.
	ErrBudgetExceeded = errors.New("token budget exceeded")

	// ErrNoUserMessage means a non-empty history contains no user message.
	ErrNoUserMessage = errors.New("no user message in history")

	// ErrMissingToolCallID means a tool response message has no call id
	// to answer.
	ErrMissingToolCallID = errors.New("tool response missing tool_call_id")

	// ErrToolNotFound means a forced or model-requested tool name is not
	// in the registry the model was given.
	ErrToolNotFound = errors.New("tool not found")

	// ErrNoAnswer means the loop exhausted its cycles without the model
	// ever producing answer text.
	ErrNoAnswer = errors.New("model did not return an answer")
)
