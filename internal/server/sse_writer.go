package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/connorbell133/agentflow/internal/domain"
)

// writeEventStream re-emits canonical UI events as an SSE stream. Each event
// is flushed immediately so the consumer sees deltas as they arrive.
func writeEventStream(w http.ResponseWriter, logger *slog.Logger, events <-chan domain.UIEvent) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Error("failed to marshal event", slog.String("type", string(ev.Type())))
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), data)
		if flusher != nil {
			flusher.Flush()
		}
	}
}
