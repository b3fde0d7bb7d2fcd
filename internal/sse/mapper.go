package sse

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/connorbell133/agentflow/internal/domain"
	"github.com/connorbell133/agentflow/internal/pathexpr"
)

// Observer receives non-fatal stream diagnostics. Unmapped and dropped
// frames are observable for debugging but never fatal to the caller.
type Observer interface {
	UnmappedFrame(eventType string)
	DroppedFrame(reason string)
}

type nopObserver struct{}

func (nopObserver) UnmappedFrame(string) {}
func (nopObserver) DroppedFrame(string)  {}

// state of the mapper over one stream. DONE and ERROR are terminal.
type state int

const (
	stateStreaming state = iota
	stateDone
	stateError
)

// MapperOption configures a Mapper.
type MapperOption func(*Mapper)

// WithLogger sets the logger used for frame diagnostics.
func WithLogger(logger *slog.Logger) MapperOption {
	return func(m *Mapper) {
		m.logger = logger
	}
}

// WithObserver sets the diagnostics observer.
func WithObserver(obs Observer) MapperOption {
	return func(m *Mapper) {
		m.obs = obs
	}
}

// Mapper re-interprets an SSE byte stream into canonical UI events using an
// ordered rule list. It holds no per-stream state: the configuration is
// read-only and one Mapper may serve concurrent streams.
type Mapper struct {
	cfg    StreamConfig
	logger *slog.Logger
	obs    Observer
}

// NewMapper validates cfg and builds a mapper for it. A config failing the
// required-field checks for any declared mapping is refused here so that
// stream time never sees an invalid rule.
func NewMapper(cfg StreamConfig, opts ...MapperOption) (*Mapper, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	m := &Mapper{
		cfg:    cfg,
		logger: slog.Default(),
		obs:    nopObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Map consumes the SSE byte stream from r and returns the canonical event
// sequence. The channel is unbuffered so the mapper never reads ahead of
// the consumer; upstream backpressure propagates downstream. Cancelling ctx
// is treated as receiving the done signal: no further events are emitted.
// If r implements io.Closer it is closed when the stream ends, so a network
// body handed to Map is released as soon as a terminal state is reached.
func (m *Mapper) Map(ctx context.Context, r io.Reader) <-chan domain.UIEvent {
	out := make(chan domain.UIEvent)
	go m.run(ctx, r, out)
	return out
}

func (m *Mapper) run(ctx context.Context, r io.Reader, out chan<- domain.UIEvent) {
	defer close(out)
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	scanner := NewScanner(r)
	st := stateStreaming
	// Deltas without an explicit id mapping share one generated message id
	// so the front end can append them to a single bubble.
	messageID := uuid.NewString()

	for st == stateStreaming {
		frame, err := scanner.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			// Transport failure mid-stream: end the sequence with a final
			// Error event so a partially rendered response stays visible.
			m.emit(ctx, out, domain.ErrorEvent{Err: err.Error()})
			return
		}

		event, next := m.handleFrame(frame, messageID)
		st = next
		if event != nil {
			if !m.emit(ctx, out, event) {
				return
			}
		}
	}
}

// emit delivers one event, honoring cancellation. Reports false when the
// consumer went away.
func (m *Mapper) emit(ctx context.Context, out chan<- domain.UIEvent, event domain.UIEvent) bool {
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// handleFrame classifies one frame and returns the event to emit (possibly
// nil) and the next state. Frames after a terminal state are never seen:
// run stops pulling.
func (m *Mapper) handleFrame(frame Frame, messageID string) (domain.UIEvent, state) {
	done := m.cfg.doneSignal()

	// The raw payload form of the completion signal is checked before any
	// JSON parsing so "[DONE]" never counts as a malformed frame.
	if frame.Data == done {
		return domain.Finish{}, stateDone
	}

	fd := &frameData{raw: frame.Data}

	eventType := frame.EventType()
	if m.cfg.EventTypePath != "" {
		data, err := fd.json()
		if err != nil {
			m.dropFrame(frame, "event_type_path", err)
			return nil, stateStreaming
		}
		if val, ok, err := pathexpr.Get(data, m.cfg.EventTypePath); err == nil && ok {
			if s, isStr := val.(string); isStr {
				eventType = s
			}
		}
	}

	if eventType == done {
		return domain.Finish{}, stateDone
	}

	if m.cfg.ErrorPath != "" {
		data, err := fd.json()
		if err != nil {
			m.dropFrame(frame, "error_path", err)
			return nil, stateStreaming
		}
		if val, ok, err := pathexpr.Get(data, m.cfg.ErrorPath); err == nil && ok && !isEmpty(val) {
			return domain.ErrorEvent{Err: val}, stateError
		}
	}

	for _, rule := range m.cfg.EventMappings {
		if rule.SourceEventType != eventType {
			continue
		}
		if rule.When != "" {
			cond, err := parseCondition(rule.When)
			if err != nil {
				// Rejected at validation time; skip defensively.
				continue
			}
			data, err := fd.json()
			if err != nil {
				m.dropFrame(frame, "when", err)
				return nil, stateStreaming
			}
			if !cond.eval(data) {
				continue
			}
		}

		// Re-checked defensively: a rule missing required fields is treated
		// as unmapped rather than crashing the stream.
		if !IsValidEventMapping(rule) {
			break
		}

		var data map[string]any
		if len(rule.FieldMappings) > 0 {
			var err error
			data, err = fd.json()
			if err != nil {
				m.dropFrame(frame, "field_mappings", err)
				return nil, stateStreaming
			}
		}

		id := messageIDFromFrame(fd, rule)
		if id == "" {
			id = messageID
		}
		event := m.assemble(rule, data, id)
		if event == nil {
			break
		}
		next := stateStreaming
		if _, isErr := event.(domain.ErrorEvent); isErr {
			next = stateError
		}
		return event, next
	}

	m.obs.UnmappedFrame(eventType)
	m.logger.Debug("unmapped stream frame", slog.String("event_type", eventType))
	return nil, stateStreaming
}

// assemble builds the canonical event for the matched rule from the frame's
// parsed data. Absent field paths resolve to zero values.
func (m *Mapper) assemble(rule EventMapping, data map[string]any, messageID string) domain.UIEvent {
	field := func(name string) any {
		path, ok := rule.FieldMappings[name]
		if !ok {
			return nil
		}
		val, found, err := pathexpr.Get(data, path)
		if err != nil || !found {
			return nil
		}
		return val
	}

	switch rule.TargetUIEvent {
	case domain.UIEventTextDelta:
		return domain.TextDelta{
			ID:    messageID,
			Delta: asString(field("delta")),
		}
	case domain.UIEventToolInvocation:
		inv := domain.ToolInvocation{
			ToolCallID: asString(field("toolCallId")),
			ToolName:   asString(field("toolName")),
			Args:       field("args"),
			State:      asString(field("state")),
		}
		if inv.State == "" {
			inv.State = "call"
		}
		return inv
	case domain.UIEventToolResult:
		return domain.ToolResult{
			ToolCallID: asString(field("toolCallId")),
			Result:     field("result"),
		}
	case domain.UIEventFinish:
		return domain.Finish{FinishReason: asString(field("finishReason"))}
	case domain.UIEventError:
		return domain.ErrorEvent{Err: field("error")}
	}
	return nil
}

func (m *Mapper) dropFrame(frame Frame, stage string, err error) {
	parseErr := &domain.FrameParseError{Frame: truncate(frame.Data, 120), Err: err}
	m.obs.DroppedFrame(stage)
	m.logger.Warn("dropped malformed stream frame",
		slog.String("stage", stage),
		slog.String("error", parseErr.Error()),
	)
}

// frameData lazily parses a frame's payload as JSON at most once, however
// many steps need it.
type frameData struct {
	raw      string
	parsed   map[string]any
	parseErr error
	done     bool
}

func (fd *frameData) json() (map[string]any, error) {
	if fd.done {
		return fd.parsed, fd.parseErr
	}
	fd.done = true

	var obj map[string]any
	if err := json.Unmarshal([]byte(fd.raw), &obj); err != nil {
		fd.parseErr = err
		return nil, err
	}
	fd.parsed = obj
	return obj, nil
}

// messageIDFromFrame prefers an explicit id field mapping over the shared
// generated message id.
func messageIDFromFrame(fd *frameData, rule EventMapping) string {
	path, ok := rule.FieldMappings["id"]
	if !ok {
		return ""
	}
	data, err := fd.json()
	if err != nil {
		return ""
	}
	val, found, err := pathexpr.Get(data, path)
	if err != nil || !found {
		return ""
	}
	return asString(val)
}

func asString(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func isEmpty(val any) bool {
	switch v := val.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
