package template

import (
	"reflect"
	"testing"
	"time"

	"github.com/connorbell133/agentflow/internal/domain"
)

func testVars() Variables {
	return Variables{
		Messages: []domain.ChatMessage{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi there"},
		},
		Content:        "hello",
		ConversationID: "conv-1",
		Time:           time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		User:           "user-42",
	}
}

func TestBuild_WholeValuePreservesType(t *testing.T) {
	tmpl := map[string]any{
		"msgs":  "{{messages}}",
		"query": "{{content}}",
	}

	got := Build(tmpl, testVars()).(map[string]any)

	msgs, ok := got["msgs"].([]any)
	if !ok {
		t.Fatalf("messages placeholder lost its native type: %T", got["msgs"])
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "user" || first["content"] != "hello" {
		t.Errorf("unexpected first message: %v", first)
	}
	if got["query"] != "hello" {
		t.Errorf("got query %v, want hello", got["query"])
	}
}

func TestBuild_EmbeddedPlaceholderConcatenates(t *testing.T) {
	tmpl := map[string]any{"prompt": "User {{user}} says: {{content}}"}

	got := Build(tmpl, testVars()).(map[string]any)
	if got["prompt"] != "User user-42 says: hello" {
		t.Errorf("got %v", got["prompt"])
	}
}

func TestBuild_EmbeddedComplexValueStringifies(t *testing.T) {
	tmpl := map[string]any{"ctx": "history={{messages[0]}}"}

	got := Build(tmpl, testVars()).(map[string]any)
	if got["ctx"] != `history={"content":"hello","role":"user"}` {
		t.Errorf("got %v", got["ctx"])
	}
}

func TestBuild_UnknownVariableIsNil(t *testing.T) {
	tmpl := map[string]any{"opt": "{{no.such.thing}}"}

	got := Build(tmpl, testVars()).(map[string]any)
	if got["opt"] != nil {
		t.Errorf("expected nil for unknown variable, got %v", got["opt"])
	}
}

func TestBuild_NonPlaceholderPassthrough(t *testing.T) {
	tmpl := map[string]any{
		"model":       "gpt-x",
		"temperature": 0.7,
		"stream":      true,
		"nested":      map[string]any{"n": 1},
	}

	got := Build(tmpl, testVars())
	if !reflect.DeepEqual(got, tmpl) {
		t.Errorf("passthrough changed tree: got %v, want %v", got, tmpl)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	tmpl := map[string]any{
		"messages": "{{messages}}",
		"meta":     map[string]any{"conversation": "{{conversation_id}}", "at": "{{time}}"},
	}
	vars := testVars()

	once := Build(tmpl, vars)
	twice := Build(once, vars)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("builder not idempotent:\nonce:  %v\ntwice: %v", once, twice)
	}
}

func TestBuild_TimeIsRFC3339(t *testing.T) {
	tmpl := map[string]any{"at": "{{time}}"}

	got := Build(tmpl, testVars()).(map[string]any)
	if got["at"] != "2025-06-01T12:00:00Z" {
		t.Errorf("got %v", got["at"])
	}
}

func TestVariables_DefaultSyntheticMessage(t *testing.T) {
	vars := Variables{Content: "lone question", Time: time.Now()}

	tree := vars.Tree()
	msgs := tree["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 synthetic turn", len(msgs))
	}
	m := msgs[0].(map[string]any)
	if m["role"] != domain.RoleUser || m["content"] != "lone question" {
		t.Errorf("unexpected synthetic message: %v", m)
	}
}
