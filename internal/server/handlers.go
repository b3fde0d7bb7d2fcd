package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/connorbell133/agentflow/internal/adapter"
	"github.com/connorbell133/agentflow/internal/domain"
	"github.com/connorbell133/agentflow/internal/observability"
	"github.com/connorbell133/agentflow/internal/storage"
	"github.com/connorbell133/agentflow/internal/template"
)

// Handler serves the chat invocation endpoint and the adapter configuration
// management surface.
type Handler struct {
	store          storage.Store
	invoker        *adapter.Invoker
	logger         *slog.Logger
	defaultHeaders map[string]string
}

// NewHandler creates a handler over the given store. The invoker reports
// stream diagnostics to the Prometheus observer; extra invoker options let
// the caller swap the outbound client.
func NewHandler(store storage.Store, logger *slog.Logger, defaultHeaders map[string]string, invokerOpts ...adapter.InvokerOption) *Handler {
	opts := append([]adapter.InvokerOption{
		adapter.WithLogger(logger),
		adapter.WithObserver(observability.StreamObserver{}),
	}, invokerOpts...)
	return &Handler{
		store:          store,
		invoker:        adapter.NewInvoker(opts...),
		logger:         logger,
		defaultHeaders: defaultHeaders,
	}
}

// Register mounts all routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/models", func(r chi.Router) {
		r.Get("/", h.ListAdapters)
		r.Route("/{modelID}", func(r chi.Router) {
			r.Post("/chat", h.Chat)
			r.With(TimeoutMiddleware(30*time.Second)).Group(func(r chi.Router) {
				r.Get("/adapter", h.GetAdapter)
				r.Put("/adapter", h.PutAdapter)
				r.Delete("/adapter", h.DeleteAdapter)
				r.Get("/adapter/export", h.ExportAdapter)
				r.Post("/adapter/import", h.ImportAdapter)
			})
		})
	})
}

// chatRequest is one inbound chat turn.
type chatRequest struct {
	Messages       []domain.ChatMessage `json:"messages"`
	Content        string               `json:"content"`
	ConversationID string               `json:"conversation_id"`
	User           string               `json:"user"`
}

// Chat executes one adapter invocation for the model in the URL. Webhook
// endpoints answer with a single JSON body; stream endpoints re-emit the
// canonical event sequence as an SSE stream.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelID")

	rec, err := h.store.Get(r.Context(), modelID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	cfg := rec.Config

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeStatus(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Content == "" && len(req.Messages) > 0 {
		req.Content = req.Messages[len(req.Messages)-1].Content
	}

	vars := template.Variables{
		Messages:       req.Messages,
		Content:        req.Content,
		ConversationID: req.ConversationID,
		Time:           time.Now().UTC(),
		User:           req.User,
	}
	if vars.ConversationID == "" {
		vars.ConversationID = uuid.NewString()
	}

	cfg.Headers = mergeHeaders(h.defaultHeaders, cfg.Headers)

	switch cfg.EndpointType {
	case adapter.EndpointTypeWebhook:
		h.chatWebhook(w, r, cfg, vars)
	case adapter.EndpointTypeStream:
		h.chatStream(w, r, cfg, vars)
	default:
		h.writeError(w, domain.NewConfigError("endpoint_type", fmt.Sprintf("unknown endpoint type %q", cfg.EndpointType)))
	}
}

func (h *Handler) chatWebhook(w http.ResponseWriter, r *http.Request, cfg adapter.Config, vars template.Variables) {
	result, err := h.invoker.CallWebhook(r.Context(), cfg, vars)
	if err != nil {
		observability.UpstreamRequestsTotal.WithLabelValues(cfg.EndpointType, "error").Inc()
		h.writeError(w, err)
		return
	}
	observability.UpstreamRequestsTotal.WithLabelValues(cfg.EndpointType, "ok").Inc()

	h.writeJSON(w, http.StatusOK, map[string]any{
		"answer":          result.Answer,
		"found":           result.Found,
		"conversation_id": vars.ConversationID,
	})
}

func (h *Handler) chatStream(w http.ResponseWriter, r *http.Request, cfg adapter.Config, vars template.Variables) {
	events, err := h.invoker.OpenStream(r.Context(), cfg, vars)
	if err != nil {
		observability.UpstreamRequestsTotal.WithLabelValues(cfg.EndpointType, "error").Inc()
		h.writeError(w, err)
		return
	}
	observability.UpstreamRequestsTotal.WithLabelValues(cfg.EndpointType, "ok").Inc()

	writeEventStream(w, h.logger, events)
}

// PutAdapter stores (or replaces) the adapter configuration for a model.
// Validation warnings are returned to the operator without blocking.
func (h *Handler) PutAdapter(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelID")

	var body struct {
		Name   string         `json:"name"`
		Config adapter.Config `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeStatus(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	warnings, err := adapter.Validate(body.Config)
	if err != nil {
		h.writeError(w, err)
		return
	}
	for range warnings {
		observability.ValidationWarningsTotal.Inc()
	}

	rec := &storage.Record{ModelID: modelID, Name: body.Name, Config: body.Config}
	if err := h.store.Put(r.Context(), rec); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"model_id": modelID,
		"warnings": warnings,
	})
}

// GetAdapter returns the stored adapter configuration for a model.
func (h *Handler) GetAdapter(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), chi.URLParam(r, "modelID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// ListAdapters returns every stored adapter configuration.
func (h *Handler) ListAdapters(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if records == nil {
		records = []*storage.Record{}
	}
	h.writeJSON(w, http.StatusOK, records)
}

// DeleteAdapter removes the adapter configuration for a model.
func (h *Handler) DeleteAdapter(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "modelID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportAdapter serves the human-editable configuration document.
func (h *Handler) ExportAdapter(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), chi.URLParam(r, "modelID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	doc, err := adapter.Export(rec.Config)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.ModelID+"-adapter.json"))
	w.Write(doc)
}

// ImportAdapter accepts a configuration document and stores it for the model.
func (h *Handler) ImportAdapter(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelID")

	doc, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeStatus(w, http.StatusBadRequest, "failed to read document")
		return
	}

	cfg, warnings, err := adapter.Import(doc)
	if err != nil {
		h.writeError(w, err)
		return
	}
	for range warnings {
		observability.ValidationWarningsTotal.Inc()
	}

	rec := &storage.Record{ModelID: modelID, Name: modelID, Config: cfg}
	if err := h.store.Put(r.Context(), rec); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"model_id": modelID,
		"warnings": warnings,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *Handler) writeStatus(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"error": message})
}

// writeError maps the engine's error taxonomy to HTTP responses. Upstream
// failures keep the upstream status and raw body visible for diagnostics.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		h.writeJSON(w, upstream.HTTPStatusCode(), map[string]any{
			"error":           "upstream call failed",
			"upstream_status": upstream.StatusCode,
			"upstream_body":   upstream.Body,
		})
		return
	}

	var configErr *domain.ConfigValidationError
	if errors.As(err, &configErr) {
		h.writeStatus(w, http.StatusUnprocessableEntity, configErr.Error())
		return
	}

	if errors.Is(err, storage.ErrNotFound) {
		h.writeStatus(w, http.StatusNotFound, "no adapter configured for this model")
		return
	}

	h.logger.Error("request failed", slog.String("error", err.Error()))
	h.writeStatus(w, http.StatusInternalServerError, "internal error")
}

// mergeHeaders overlays cfg headers on the service defaults; the adapter
// config wins on conflicts.
func mergeHeaders(defaults, overrides map[string]string) map[string]string {
	if len(defaults) == 0 {
		return overrides
	}
	merged := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
