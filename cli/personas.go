// Pre-built persona configurations for CLI commands.
//
// Information Hiding:
// - Persona prompt text hidden
// - Persona lookup hidden

package cli

import (
	"fmt"
	"strings"

	"github.com/mwielandt/tern/chat"
)

// PersonaType represents available persona presets.
type PersonaType string

const (
	PersonaDefault    PersonaType = "default"
	PersonaResearcher PersonaType = "researcher"
	PersonaConcise    PersonaType = "concise"
	PersonaTutor      PersonaType = "tutor"
)

// CreatePersona returns the persona preset by name. An empty name or
// "default" returns nil, which selects the built-in assistant behavior.
func CreatePersona(name string) (*chat.Persona, error) {
	switch PersonaType(strings.ToLower(name)) {
	case "", PersonaDefault:
		return nil, nil

	case PersonaResearcher:
		return &chat.Persona{
			Name:          "researcher",
			SystemPrompt:  "You are a meticulous research assistant. Ground every claim in retrieved documents and cite them.",
			TaskPrompt:    "Prefer searching for information over answering from memory. Cite every factual claim.",
			DatetimeAware: true,
		}, nil

	case PersonaConcise:
		return &chat.Persona{
			Name:          "concise",
			SystemPrompt:  "You are a helpful assistant who values the reader's time.",
			TaskPrompt:    "Answer in at most three sentences.",
			DatetimeAware: false,
		}, nil

	case PersonaTutor:
		return &chat.Persona{
			Name:          "tutor",
			SystemPrompt:  "You are a patient tutor. Explain concepts step by step and check understanding with short questions.",
			DatetimeAware: true,
		}, nil

	default:
		return nil, fmt.Errorf("unknown persona: %q (available: default, researcher, concise, tutor)", name)
	}
}

// PersonaNames returns the available persona preset names.
func PersonaNames() []string {
	return []string{
		string(PersonaDefault),
		string(PersonaResearcher),
		string(PersonaConcise),
		string(PersonaTutor),
	}
}
