package sse

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/connorbell133/agentflow/internal/domain"
	"github.com/connorbell133/agentflow/internal/pathexpr"
)

// DefaultDoneSignal marks normal stream completion when the configuration
// does not override it.
const DefaultDoneSignal = "[DONE]"

// EventMapping classifies one upstream frame shape into a canonical UI event.
type EventMapping struct {
	// SourceEventType is the upstream event type this rule matches.
	SourceEventType string `json:"source_event_type"`

	// TargetUIEvent is the canonical event this rule emits.
	TargetUIEvent domain.UIEventType `json:"target_ui_event"`

	// When is an optional path-equality condition ("<path> == <literal>")
	// evaluated against the frame's parsed data.
	When string `json:"when,omitempty"`

	// FieldMappings resolve each canonical field from a path in the frame's
	// parsed data.
	FieldMappings map[string]string `json:"field_mappings"`
}

// StreamConfig is the stream section of an adapter configuration.
type StreamConfig struct {
	EventMappings []EventMapping `json:"event_mappings"`
	DoneSignal    string         `json:"done_signal,omitempty"`
	ErrorPath     string         `json:"error_path,omitempty"`
	EventTypePath string         `json:"event_type_path,omitempty"`
}

// doneSignal returns the configured completion sentinel or the default.
func (c StreamConfig) doneSignal() string {
	if c.DoneSignal != "" {
		return c.DoneSignal
	}
	return DefaultDoneSignal
}

// requiredFields lists the field_mappings keys each canonical event target
// must provide. finish has none; finishReason is optional.
var requiredFields = map[domain.UIEventType][]string{
	domain.UIEventTextDelta:      {"delta"},
	domain.UIEventToolInvocation: {"toolCallId", "toolName", "args"},
	domain.UIEventToolResult:     {"toolCallId", "result"},
	domain.UIEventFinish:         nil,
	domain.UIEventError:          {"error"},
}

// IsValidEventMapping reports whether m declares a known target and carries
// every field mapping that target requires. Invalid mappings are rejected at
// configuration-validation time, never at stream time.
func IsValidEventMapping(m EventMapping) bool {
	required, known := requiredFields[m.TargetUIEvent]
	if !known {
		return false
	}
	for _, field := range required {
		if m.FieldMappings[field] == "" {
			return false
		}
	}
	return true
}

// ValidateConfig checks every declared mapping and the condition grammar.
// The engine refuses to run a stream with a config that fails these checks.
func ValidateConfig(c StreamConfig) error {
	for i, m := range c.EventMappings {
		field := fmt.Sprintf("stream_config.event_mappings[%d]", i)
		if m.SourceEventType == "" {
			return domain.NewConfigError(field, "source_event_type must not be empty")
		}
		if !IsValidEventMapping(m) {
			return domain.NewConfigError(field, fmt.Sprintf("mapping for %q is missing required fields for target %q", m.SourceEventType, m.TargetUIEvent))
		}
		if m.When != "" {
			if _, err := parseCondition(m.When); err != nil {
				return domain.NewConfigError(field+".when", err.Error())
			}
		}
	}
	return nil
}

// condition is a parsed path-equality check. This is the entire expression
// grammar: a path, "==", and one literal. Nothing else is ever evaluated.
type condition struct {
	path    string
	literal any
}

func parseCondition(expr string) (condition, error) {
	parts := strings.SplitN(expr, "==", 2)
	if len(parts) != 2 {
		return condition{}, fmt.Errorf("condition %q must have the form <path> == <literal>", expr)
	}

	path := strings.TrimSpace(parts[0])
	if path == "" {
		return condition{}, fmt.Errorf("condition %q has an empty path", expr)
	}

	lit, err := parseLiteral(strings.TrimSpace(parts[1]))
	if err != nil {
		return condition{}, fmt.Errorf("condition %q: %v", expr, err)
	}
	return condition{path: path, literal: lit}, nil
}

// parseLiteral accepts quoted strings, numbers, booleans and null. A bare
// word is taken as a string for operator convenience.
func parseLiteral(s string) (any, error) {
	if s == "" {
		return nil, fmt.Errorf("empty literal")
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], nil
	}
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n, nil
	}
	return s, nil
}

// eval checks the condition against a frame's parsed data. An absent path
// only matches a null literal.
func (c condition) eval(data map[string]any) bool {
	val, ok, err := pathexpr.Get(data, c.path)
	if err != nil {
		return false
	}
	if !ok {
		return c.literal == nil
	}
	if val == c.literal {
		return true
	}
	// JSON numbers decode as float64; compare numerics loosely.
	if lit, okLit := c.literal.(float64); okLit {
		if num, okVal := toFloat(val); okVal {
			return num == lit
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	}
	return 0, false
}
