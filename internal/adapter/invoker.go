package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/connorbell133/agentflow/internal/domain"
	"github.com/connorbell133/agentflow/internal/extract"
	"github.com/connorbell133/agentflow/internal/sse"
	"github.com/connorbell133/agentflow/internal/template"
	"github.com/connorbell133/agentflow/internal/transform"
)

const defaultTimeout = 120 * time.Second

// InvokerOption configures the invoker.
type InvokerOption func(*Invoker)

// WithHTTPClient sets a custom HTTP client for outbound calls.
func WithHTTPClient(client *http.Client) InvokerOption {
	return func(inv *Invoker) {
		inv.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) InvokerOption {
	return func(inv *Invoker) {
		inv.logger = logger
	}
}

// WithObserver sets the stream diagnostics observer.
func WithObserver(obs sse.Observer) InvokerOption {
	return func(inv *Invoker) {
		inv.obs = obs
	}
}

// Invoker executes one chat turn against the endpoint an adapter config
// describes. It holds no per-invocation state: one Invoker serves any number
// of concurrent invocations, and the config passed to each call is read-only.
type Invoker struct {
	client *http.Client
	logger *slog.Logger
	obs    sse.Observer
}

// NewInvoker creates an invoker. The default client is instrumented with
// OpenTelemetry HTTP tracing; streaming calls rely on context cancellation
// rather than the client timeout, which only bounds webhook calls.
func NewInvoker(opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.client == nil {
		inv.client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return inv
}

// WebhookResult is the outcome of a webhook invocation.
type WebhookResult struct {
	// Answer is the extracted user-visible answer.
	Answer string

	// Found reports whether the configured response path resolved.
	Found bool

	// StatusCode is the upstream HTTP status.
	StatusCode int
}

// CallWebhook builds the outbound request from cfg and vars, executes it,
// and extracts the answer from the buffered JSON response. A non-success
// status is returned as an UpstreamError with the raw body preserved; the
// call is never retried.
func (inv *Invoker) CallWebhook(ctx context.Context, cfg Config, vars template.Variables) (*WebhookResult, error) {
	if cfg.EndpointType != EndpointTypeWebhook {
		return nil, domain.NewConfigError("endpoint_type", "CallWebhook requires a webhook endpoint")
	}

	req, err := inv.buildRequest(ctx, cfg, vars)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := inv.client.Do(req.WithContext(callCtx))
	if err != nil {
		return nil, &domain.UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.UpstreamError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	result := extract.Answer(body, cfg.ResponsePath)
	if !result.Found && cfg.ResponsePath != "" {
		inv.logger.Debug("response path did not resolve, serving whole body",
			slog.String("response_path", cfg.ResponsePath),
		)
	}
	return &WebhookResult{Answer: result.Answer, Found: result.Found, StatusCode: resp.StatusCode}, nil
}

// OpenStream builds and executes the outbound request for a stream endpoint
// and returns the canonical event sequence. The upstream body is released
// when the stream reaches a terminal state or ctx is cancelled. A failure
// before any bytes stream back is returned as an UpstreamError; failures
// mid-stream end the event sequence with a final Error event instead.
func (inv *Invoker) OpenStream(ctx context.Context, cfg Config, vars template.Variables) (<-chan domain.UIEvent, error) {
	if cfg.EndpointType != EndpointTypeStream {
		return nil, domain.NewConfigError("endpoint_type", "OpenStream requires a stream endpoint")
	}
	if cfg.StreamConfig == nil {
		return nil, domain.NewConfigError("stream_config", "stream endpoints require a stream_config")
	}

	mapper, err := sse.NewMapper(*cfg.StreamConfig, sse.WithLogger(inv.logger), withObserver(inv.obs))
	if err != nil {
		return nil, err
	}

	req, err := inv.buildRequest(ctx, cfg, vars)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := inv.client.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return mapper.Map(ctx, resp.Body), nil
}

// buildRequest renders the body template and assembles the HTTP request.
// The body is omitted entirely for GET and HEAD.
func (inv *Invoker) buildRequest(ctx context.Context, cfg Config, vars template.Variables) (*http.Request, error) {
	if _, err := Validate(cfg); err != nil {
		return nil, err
	}

	if cfg.MessageFormat != nil && vars.RenderedMessages == nil {
		msgs := vars.Messages
		if len(msgs) == 0 {
			msgs = []domain.ChatMessage{{Role: domain.RoleUser, Content: vars.Content}}
		}
		external, err := transform.Transform(msgs, *cfg.MessageFormat)
		if err != nil {
			return nil, err
		}
		rendered := make([]any, len(external))
		for i, m := range external {
			rendered[i] = m
		}
		vars.RenderedMessages = rendered
	}

	var body io.Reader
	if cfg.Method != http.MethodGet && cfg.Method != http.MethodHead && cfg.BodyConfig != nil {
		built := template.Build(cfg.BodyConfig, vars)
		encoded, err := json.Marshal(built)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}

	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// withObserver skips the option when no observer is configured.
func withObserver(obs sse.Observer) sse.MapperOption {
	if obs == nil {
		return func(*sse.Mapper) {}
	}
	return sse.WithObserver(obs)
}
