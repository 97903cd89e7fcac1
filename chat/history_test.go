package chat

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mwielandt/tern/internal/log"
	"github.com/mwielandt/tern/model"
)

// countChars makes token accounting transparent in tests: one token per byte.
func countChars(s string) int { return len(s) }

func TestBuildProjectFilesMessage_Empty(t *testing.T) {
	if msg := BuildProjectFilesMessage(model.ProjectFiles{}, countChars); msg != nil {
		t.Errorf("expected nil message for empty project files, got %+v", msg)
	}
	// Image-only project files carry no text message either.
	files := model.ProjectFiles{ImageFiles: []model.ImageFile{{ID: "img"}}}
	if msg := BuildProjectFilesMessage(files, countChars); msg != nil {
		t.Errorf("expected nil message for image-only project files, got %+v", msg)
	}
}

func TestBuildProjectFilesMessage_Structure(t *testing.T) {
	files := model.ProjectFiles{FileTexts: []string{"first file", "second file"}}

	msg := BuildProjectFilesMessage(files, countChars)
	if msg == nil {
		t.Fatal("expected a message")
	}
	if msg.Role != model.RoleUser {
		t.Errorf("Role = %q, want user", msg.Role)
	}
	if !strings.HasPrefix(msg.Text, "Here are some documents provided for context") {
		t.Errorf("message missing instruction prefix: %q", msg.Text)
	}
	if msg.TokenCount != len(msg.Text) {
		t.Errorf("TokenCount = %d, want %d", msg.TokenCount, len(msg.Text))
	}

	jsonPart := strings.TrimPrefix(msg.Text, projectFilesPrefix)
	var decoded struct {
		Documents []struct {
			CitationID int    `json:"citation_id"`
			Contents   string `json:"contents"`
		} `json:"documents"`
	}
	if err := json.Unmarshal([]byte(jsonPart), &decoded); err != nil {
		t.Fatalf("message body is not valid JSON: %v", err)
	}
	if len(decoded.Documents) != 2 {
		t.Fatalf("len(documents) = %d, want 2", len(decoded.Documents))
	}
	if decoded.Documents[0].CitationID != 1 || decoded.Documents[1].CitationID != 2 {
		t.Errorf("citation ids = [%d %d], want sequential from 1",
			decoded.Documents[0].CitationID, decoded.Documents[1].CitationID)
	}
	if decoded.Documents[0].Contents != "first file" {
		t.Errorf("first document contents = %q", decoded.Documents[0].Contents)
	}
}

func TestBuildProjectFilesMessage_PrecomputedTokenCount(t *testing.T) {
	files := model.ProjectFiles{
		FileTexts:       []string{"contents"},
		TotalTokenCount: 42,
	}

	msg := BuildProjectFilesMessage(files, countChars)
	if msg == nil {
		t.Fatal("expected a message")
	}
	if msg.TokenCount != 42 {
		t.Errorf("TokenCount = %d, want the extractor's precomputed 42", msg.TokenCount)
	}
}

func TestAssembleHistory_Ordering(t *testing.T) {
	system := model.ConversationMessage{Text: "system", TokenCount: 10, Role: model.RoleSystem}
	customAgent := &model.ConversationMessage{Text: "custom", TokenCount: 10, Role: model.RoleUser}
	reminder := &model.ConversationMessage{Text: "reminder", TokenCount: 10, Role: model.RoleUser}
	history := []model.ConversationMessage{
		userMsg("old question", 10),
		assistantMsg("old answer", 10),
		userMsg("new question", 10),
		{Text: "tool body", TokenCount: 10, Role: model.RoleToolCall, ToolCallID: "call-1"},
	}
	files := model.ProjectFiles{FileTexts: []string{"doc"}}

	out, err := AssembleHistory(system, customAgent, history, reminder, files, 10000, countChars, log.NewNop())
	if err != nil {
		t.Fatalf("AssembleHistory() error = %v", err)
	}

	wantTexts := []string{
		"system",
		"old question",
		"old answer",
		"custom",
		out[4].Text, // project files message, checked by prefix below
		"new question",
		"tool body",
		"reminder",
	}
	if len(out) != len(wantTexts) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(wantTexts))
	}
	for i, want := range wantTexts {
		if out[i].Text != want {
			t.Errorf("out[%d].Text = %q, want %q", i, out[i].Text, want)
		}
	}
	if !strings.HasPrefix(out[4].Text, projectFilesPrefix) {
		t.Errorf("out[4] is not the project files message: %q", out[4].Text)
	}
}

func TestAssembleHistory_TruncatesOldestFirst(t *testing.T) {
	system := model.ConversationMessage{Text: "system", TokenCount: 10, Role: model.RoleSystem}
	history := []model.ConversationMessage{
		userMsg("oldest", 50),
		assistantMsg("middle", 30),
		userMsg("latest", 20),
	}

	// Budget fits system + latest + middle but not oldest.
	out, err := AssembleHistory(system, nil, history, nil, model.ProjectFiles{}, 70, countChars, log.NewNop())
	if err != nil {
		t.Fatalf("AssembleHistory() error = %v", err)
	}

	for _, msg := range out {
		if msg.Text == "oldest" {
			t.Error("oldest message should have been truncated away")
		}
	}
	if out[1].Text != "middle" || out[2].Text != "latest" {
		t.Errorf("kept messages = %q, %q; want middle, latest", out[1].Text, out[2].Text)
	}
}

func TestAssembleHistory_TruncationStopsAtFirstOverflow(t *testing.T) {
	system := model.ConversationMessage{Text: "system", TokenCount: 0, Role: model.RoleSystem}
	history := []model.ConversationMessage{
		userMsg("tiny but older", 1),
		assistantMsg("huge", 100),
		userMsg("latest", 10),
	}

	// The huge message blocks the walk even though the tiny one would fit.
	out, err := AssembleHistory(system, nil, history, nil, model.ProjectFiles{}, 20, countChars, log.NewNop())
	if err != nil {
		t.Fatalf("AssembleHistory() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (system + latest)", len(out))
	}
	if out[1].Text != "latest" {
		t.Errorf("out[1].Text = %q, want latest", out[1].Text)
	}
}

func TestAssembleHistory_LastUserNeverTruncated(t *testing.T) {
	system := model.ConversationMessage{Text: "system", TokenCount: 10, Role: model.RoleSystem}
	history := []model.ConversationMessage{
		userMsg("question", 100),
		{Text: "tool result", TokenCount: 100, Role: model.RoleToolCallResponse, ToolCallID: "c1"},
	}

	_, err := AssembleHistory(system, nil, history, nil, model.ProjectFiles{}, 50, countChars, log.NewNop())
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("error = %v, want ErrBudgetExceeded when required context cannot fit", err)
	}
}

func TestAssembleHistory_FixedComponentsExceedBudget(t *testing.T) {
	system := model.ConversationMessage{Text: "system", TokenCount: 200, Role: model.RoleSystem}

	_, err := AssembleHistory(system, nil, []model.ConversationMessage{userMsg("q", 1)}, nil,
		model.ProjectFiles{}, 100, countChars, log.NewNop())
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("error = %v, want ErrBudgetExceeded", err)
	}
}

func TestAssembleHistory_NoUserMessage(t *testing.T) {
	system := model.ConversationMessage{Text: "system", TokenCount: 10, Role: model.RoleSystem}
	history := []model.ConversationMessage{assistantMsg("hello", 10)}

	_, err := AssembleHistory(system, nil, history, nil, model.ProjectFiles{}, 1000, countChars, log.NewNop())
	if !errors.Is(err, ErrNoUserMessage) {
		t.Errorf("error = %v, want ErrNoUserMessage", err)
	}
}

func TestAssembleHistory_EmptyHistory(t *testing.T) {
	system := model.ConversationMessage{Text: "system", TokenCount: 10, Role: model.RoleSystem}
	reminder := &model.ConversationMessage{Text: "reminder", TokenCount: 5, Role: model.RoleUser}

	out, err := AssembleHistory(system, nil, nil, reminder, model.ProjectFiles{}, 100, countChars, log.NewNop())
	if err != nil {
		t.Fatalf("AssembleHistory() error = %v", err)
	}
	if len(out) != 2 || out[0].Text != "system" || out[1].Text != "reminder" {
		t.Errorf("out = %+v, want [system, reminder]", out)
	}
}

func TestAssembleHistory_ProjectImagesAttachToLastUser(t *testing.T) {
	system := model.ConversationMessage{Text: "system", TokenCount: 10, Role: model.RoleSystem}
	history := []model.ConversationMessage{
		userMsg("describe the image", 10),
	}
	files := model.ProjectFiles{
		ImageFiles: []model.ImageFile{{ID: "img-1", Data: []byte{1, 2, 3}}},
	}

	out, err := AssembleHistory(system, nil, history, nil, files, 1000, countChars, log.NewNop())
	if err != nil {
		t.Fatalf("AssembleHistory() error = %v", err)
	}

	var lastUser *model.ConversationMessage
	for i := range out {
		if out[i].Role == model.RoleUser {
			lastUser = &out[i]
		}
	}
	if lastUser == nil {
		t.Fatal("no user message in output")
	}
	if len(lastUser.Images) != 1 || lastUser.Images[0].ID != "img-1" {
		t.Errorf("last user images = %+v, want the project image attached", lastUser.Images)
	}
	// The original history message is untouched.
	if len(history[0].Images) != 0 {
		t.Error("input history message was mutated")
	}
}
