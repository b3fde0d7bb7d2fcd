package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/connorbell133/agentflow/internal/adapter"
	"github.com/connorbell133/agentflow/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "adapters.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(modelID string) *storage.Record {
	return &storage.Record{
		ModelID: modelID,
		Name:    "Custom Provider",
		Config: adapter.Config{
			Endpoint:     "https://api.example.com/chat",
			Method:       "POST",
			EndpointType: adapter.EndpointTypeWebhook,
			BodyConfig:   map[string]any{"messages": "{{messages}}"},
			ResponsePath: "choices[0].message.content",
		},
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, sampleRecord("model-1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rec, err := store.Get(ctx, "model-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Name != "Custom Provider" {
		t.Errorf("got name %q", rec.Name)
	}
	if rec.Config.ResponsePath != "choices[0].message.content" {
		t.Errorf("config did not round trip: %+v", rec.Config)
	}
	if rec.Config.BodyConfig.(map[string]any)["messages"] != "{{messages}}" {
		t.Errorf("body config did not round trip: %v", rec.Config.BodyConfig)
	}
}

func TestStore_PutReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, sampleRecord("model-1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	updated := sampleRecord("model-1")
	updated.Config.Method = "PUT"
	if err := store.Put(ctx, updated); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	rec, err := store.Get(ctx, "model-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Config.Method != "PUT" {
		t.Errorf("got method %q, want PUT", rec.Config.Method)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestStore_ListOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"model-b", "model-a", "model-c"} {
		if err := store.Put(ctx, sampleRecord(id)); err != nil {
			t.Fatalf("Put(%s) failed: %v", id, err)
		}
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records", len(records))
	}
	for i, want := range []string{"model-a", "model-b", "model-c"} {
		if records[i].ModelID != want {
			t.Errorf("records[%d] = %q, want %q", i, records[i].ModelID, want)
		}
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, sampleRecord("model-1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "model-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "model-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected record gone, got %v", err)
	}
	if err := store.Delete(ctx, "model-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}
