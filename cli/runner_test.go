package cli

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDocumentBlurb_RuneBoundary(t *testing.T) {
	// The 200-byte cut point lands inside the two-byte "é".
	long := strings.Repeat("a", 199) + "éllo contents"
	got := documentBlurb(long)
	if len(got) > 200 {
		t.Errorf("blurb length = %d, want at most 200", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("blurb is invalid UTF-8: %q", got)
	}

	if got := documentBlurb("short"); got != "short" {
		t.Errorf("documentBlurb(short) = %q, want unchanged", got)
	}
}

func TestCreatePersona(t *testing.T) {
	if p, err := CreatePersona(""); err != nil || p != nil {
		t.Errorf("CreatePersona(\"\") = %v, %v; want nil persona for default behavior", p, err)
	}

	p, err := CreatePersona("researcher")
	if err != nil {
		t.Fatalf("CreatePersona(researcher) error = %v", err)
	}
	if p.SystemPrompt == "" || p.TaskPrompt == "" {
		t.Errorf("researcher persona incomplete: %+v", p)
	}

	if _, err := CreatePersona("pirate"); err == nil {
		t.Error("expected error for unknown persona")
	}
}
