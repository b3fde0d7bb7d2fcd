package extract

import "testing"

func TestAnswer_ResponsePath(t *testing.T) {
	raw := []byte(`{"choices":[{"message":{"content":"hi"}}]}`)

	res := Answer(raw, "choices[0].message.content")
	if !res.Found {
		t.Fatal("expected path to resolve")
	}
	if res.Answer != "hi" {
		t.Errorf("got %q, want %q", res.Answer, "hi")
	}
}

func TestAnswer_MissingPathFallsBackToWholeBody(t *testing.T) {
	raw := []byte(`{"data":{"text":"elsewhere"}}`)

	res := Answer(raw, "choices[0].message.content")
	if res.Found {
		t.Error("missed path must report not found")
	}
	if res.Answer != string(raw) {
		t.Errorf("got %q, want whole body", res.Answer)
	}
}

func TestAnswer_EmptyStringAtPathIsFound(t *testing.T) {
	raw := []byte(`{"result":""}`)

	res := Answer(raw, "result")
	if !res.Found {
		t.Error("legitimately empty answer must still count as found")
	}
	if res.Answer != "" {
		t.Errorf("got %q, want empty", res.Answer)
	}
}

func TestAnswer_ResponseFieldFallback(t *testing.T) {
	raw := []byte(`{"response":"the answer"}`)

	res := Answer(raw, "")
	if !res.Found || res.Answer != "the answer" {
		t.Errorf("got %+v", res)
	}
}

func TestAnswer_NonObjectBodySerialized(t *testing.T) {
	raw := []byte(`["a","b"]`)

	res := Answer(raw, "")
	if res.Answer != `["a","b"]` {
		t.Errorf("got %q", res.Answer)
	}
}

func TestAnswer_InvalidJSONReturnedVerbatim(t *testing.T) {
	raw := []byte("plain text, not json")

	res := Answer(raw, "any.path")
	if res.Answer != "plain text, not json" {
		t.Errorf("got %q", res.Answer)
	}
	if res.Found {
		t.Error("verbatim fallback is not a path hit")
	}
}

func TestAnswer_ComplexValueAtPath(t *testing.T) {
	raw := []byte(`{"result":{"nested":true}}`)

	res := Answer(raw, "result")
	if !res.Found {
		t.Fatal("expected path to resolve")
	}
	if res.Answer != `{"nested":true}` {
		t.Errorf("got %q", res.Answer)
	}
}
