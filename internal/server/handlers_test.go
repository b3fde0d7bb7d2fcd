package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/connorbell133/agentflow/internal/storage"
)

func newTestRouter(t *testing.T) (*chi.Mux, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(store, logger, nil)
	r := chi.NewRouter()
	h.Register(r)
	return r, store
}

func putAdapter(t *testing.T, r http.Handler, modelID string, config map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]any{"name": modelID, "config": config})
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	req := httptest.NewRequest(http.MethodPut, "/v1/models/"+modelID+"/adapter", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func webhookConfigMap(endpoint string) map[string]any {
	return map[string]any{
		"endpoint":      endpoint,
		"method":        "POST",
		"endpoint_type": "webhook",
		"body_config":   map[string]any{"prompt": "{{content}}"},
		"response_path": "output.text",
	}
}

func TestAdapterCRUD(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := putAdapter(t, r, "gpt-test", webhookConfigMap("https://example.com/chat"))
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/models/gpt-test/adapter", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got storage.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if got.Config.Endpoint != "https://example.com/chat" {
		t.Errorf("endpoint = %q", got.Config.Endpoint)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var list []*storage.Record
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list length = %d, want 1", len(list))
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/models/gpt-test/adapter", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/models/gpt-test/adapter", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestPutAdapterRejectsInvalidConfig(t *testing.T) {
	r, _ := newTestRouter(t)

	cfg := webhookConfigMap("https://example.com/chat")
	cfg["method"] = "PATCH"
	rec := putAdapter(t, r, "bad", cfg)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestChatWithoutAdapter(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/models/unknown/chat", strings.NewReader(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestChatWebhook(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Errorf("decode upstream body: %v", err)
		}
		if body["prompt"] != "what is Go?" {
			t.Errorf("prompt = %v", body["prompt"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{"text": "a programming language"},
		})
	}))
	defer upstream.Close()

	r, _ := newTestRouter(t)
	if rec := putAdapter(t, r, "m1", webhookConfigMap(upstream.URL)); rec.Code != http.StatusOK {
		t.Fatalf("put status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/models/m1/chat", strings.NewReader(`{"content":"what is Go?"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Answer string `json:"answer"`
		Found  bool   `json:"found"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Found || resp.Answer != "a programming language" {
		t.Errorf("answer = %q, found = %v", resp.Answer, resp.Found)
	}
}

func TestChatWebhookUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer upstream.Close()

	r, _ := newTestRouter(t)
	putAdapter(t, r, "m1", webhookConfigMap(upstream.URL))

	req := httptest.NewRequest(http.MethodPost, "/v1/models/m1/chat", strings.NewReader(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	var resp struct {
		UpstreamStatus int    `json:"upstream_status"`
		UpstreamBody   string `json:"upstream_body"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UpstreamStatus != http.StatusTooManyRequests {
		t.Errorf("upstream_status = %d", resp.UpstreamStatus)
	}
	if !strings.Contains(resp.UpstreamBody, "rate limited") {
		t.Errorf("upstream_body = %q", resp.UpstreamBody)
	}
}

func TestChatStream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_delta\ndata: {\"delta\":{\"text\":\"Hel\"}}\n\n")
		fmt.Fprint(w, "event: message_delta\ndata: {\"delta\":{\"text\":\"lo\"}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()

	r, _ := newTestRouter(t)
	cfg := map[string]any{
		"endpoint":      upstream.URL,
		"method":        "POST",
		"endpoint_type": "stream",
		"body_config":   map[string]any{"prompt": "{{content}}"},
		"stream_config": map[string]any{
			"event_mappings": []map[string]any{
				{
					"source_event_type": "message_delta",
					"target_ui_event":   "text-delta",
					"field_mappings":    map[string]string{"delta": "delta.text"},
				},
			},
		},
	}
	if rec := putAdapter(t, r, "m1", cfg); rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/models/m1/chat", strings.NewReader(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	body := rec.Body.String()
	var text strings.Builder
	finishes := 0
	for _, block := range strings.Split(body, "\n\n") {
		var event, data string
		for _, line := range strings.Split(block, "\n") {
			if after, ok := strings.CutPrefix(line, "event: "); ok {
				event = after
			}
			if after, ok := strings.CutPrefix(line, "data: "); ok {
				data = after
			}
		}
		switch event {
		case "text-delta":
			var td struct {
				Delta string `json:"delta"`
			}
			if err := json.Unmarshal([]byte(data), &td); err != nil {
				t.Fatalf("unmarshal delta: %v", err)
			}
			text.WriteString(td.Delta)
		case "finish":
			finishes++
		}
	}
	if text.String() != "Hello" {
		t.Errorf("assembled text = %q, want %q", text.String(), "Hello")
	}
	if finishes != 1 {
		t.Errorf("finish events = %d, want 1", finishes)
	}
}

func TestExportImportEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)
	putAdapter(t, r, "m1", webhookConfigMap("https://example.com/chat"))

	req := httptest.NewRequest(http.MethodGet, "/v1/models/m1/adapter/export", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	doc := rec.Body.Bytes()

	req = httptest.NewRequest(http.MethodPost, "/v1/models/m2/adapter/import", bytes.NewReader(doc))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/models/m2/adapter/export", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if !bytes.Equal(doc, rec.Body.Bytes()) {
		t.Errorf("re-exported document differs from the original")
	}
}
