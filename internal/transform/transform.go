// Package transform maps the platform's internal message list into whatever
// message schema an external provider expects, driven by per-field mapping
// rules from the adapter configuration.
package transform

import (
	"fmt"
	"sort"
	"time"

	"github.com/connorbell133/agentflow/internal/domain"
	"github.com/connorbell133/agentflow/internal/pathexpr"
)

// Field sources a mapping may read from.
const (
	SourceRole      = "role"
	SourceContent   = "content"
	SourceCreatedAt = "created_at"
	SourceID        = "id"
	SourceLiteral   = "literal"
)

// TransformTimestamp reinterprets a string value as an instant and re-emits
// it as canonical RFC 3339.
const TransformTimestamp = "timestamp"

// RoleMapping is one ordered rewrite rule for message roles.
type RoleMapping struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// FieldMapping maps one source field of an internal message to a target path
// in the external message shape.
type FieldMapping struct {
	Source       string        `json:"source"`
	Target       string        `json:"target"`
	LiteralValue any           `json:"literalValue,omitempty"`
	Transform    string        `json:"transform,omitempty"`
	RoleMapping  []RoleMapping `json:"roleMapping,omitempty"`
}

// CustomField is a literal value merged into the transformed message after
// the field mappings, at the path given by Name.
type CustomField struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Type  string `json:"type,omitempty"`
}

// Config is the message format section of an adapter configuration.
type Config struct {
	Mapping      map[string]FieldMapping `json:"mapping"`
	CustomFields []CustomField           `json:"customFields,omitempty"`
}

// Transform renders msgs into the external message shape described by cfg.
// It is deterministic: the same inputs always yield identical output, with
// no wall-clock or random input except the explicit timestamp transform
// applied to an explicit source field.
func Transform(msgs []domain.ChatMessage, cfg Config) ([]map[string]any, error) {
	// Map iteration order is randomized; sort for reproducible output when
	// mappings share target subtrees.
	names := make([]string, 0, len(cfg.Mapping))
	for name := range cfg.Mapping {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]map[string]any, 0, len(msgs))
	for _, msg := range msgs {
		rendered := make(map[string]any)
		for _, name := range names {
			m := cfg.Mapping[name]
			val, err := resolveSource(msg, m)
			if err != nil {
				return nil, err
			}
			if err := pathexpr.Set(rendered, m.Target, val); err != nil {
				return nil, fmt.Errorf("mapping %q: %w", name, err)
			}
		}
		for _, cf := range cfg.CustomFields {
			if err := pathexpr.Set(rendered, cf.Name, cf.Value); err != nil {
				return nil, fmt.Errorf("custom field %q: %w", cf.Name, err)
			}
		}
		out = append(out, rendered)
	}
	return out, nil
}

func resolveSource(msg domain.ChatMessage, m FieldMapping) (any, error) {
	var val any
	switch m.Source {
	case SourceRole:
		val = msg.Role
	case SourceContent:
		val = msg.Content
	case SourceCreatedAt:
		val = msg.CreatedAt.UTC().Format(time.RFC3339)
	case SourceID:
		val = msg.ID
	case SourceLiteral:
		val = m.LiteralValue
	default:
		return nil, domain.NewConfigError("message_format.mapping", fmt.Sprintf("unknown source %q", m.Source))
	}

	if m.Transform == TransformTimestamp {
		if s, ok := val.(string); ok {
			val = canonicalTimestamp(s)
		}
	}

	if m.Source == SourceRole && len(m.RoleMapping) > 0 {
		if role, ok := val.(string); ok {
			val = remapRole(role, m.RoleMapping)
		}
	}
	return val, nil
}

// remapRole translates role through the rewrite table. First match wins; a
// role with no match passes through unchanged.
func remapRole(role string, table []RoleMapping) string {
	for _, rm := range table {
		if rm.From == role {
			return rm.To
		}
	}
	return role
}

// timestampLayouts are tried in order when reinterpreting a string instant.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.DateTime,
	time.DateOnly,
}

// canonicalTimestamp re-emits s as RFC 3339 UTC. An unparsable value passes
// through verbatim rather than failing the whole transform.
func canonicalTimestamp(s string) string {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC().Format(time.RFC3339)
		}
	}
	return s
}
