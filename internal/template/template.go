// Package template implements the request body builder: it walks an
// operator-authored template tree and substitutes {{path}} placeholders
// resolved against the fixed set of template variables.
package template

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/connorbell133/agentflow/internal/domain"
	"github.com/connorbell133/agentflow/internal/pathexpr"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Variables is the fixed record available to body templates. It is always
// fully populated before building; Tree applies the defaults.
type Variables struct {
	Messages       []domain.ChatMessage
	Content        string
	ConversationID string
	Time           time.Time
	User           string

	// RenderedMessages, when set, replaces the default role/content
	// rendering of Messages. The invoker populates it with the output of
	// the message format transformer so {{messages}} carries whatever
	// shape the external provider expects.
	RenderedMessages []any
}

// Tree renders the variables as a generic tree for path resolution. Messages
// defaults to a single synthetic user turn when absent.
func (v Variables) Tree() map[string]any {
	rendered := v.RenderedMessages
	if rendered == nil {
		msgs := v.Messages
		if len(msgs) == 0 {
			msgs = []domain.ChatMessage{{Role: domain.RoleUser, Content: v.Content}}
		}
		rendered = make([]any, len(msgs))
		for i, m := range msgs {
			rendered[i] = map[string]any{
				"role":    m.Role,
				"content": m.Content,
			}
		}
	}

	return map[string]any{
		"messages":        rendered,
		"content":         v.Content,
		"conversation_id": v.ConversationID,
		"time":            v.Time.UTC().Format(time.RFC3339),
		"user":            v.User,
	}
}

// Build walks the template tree and substitutes placeholders. A string that
// is exactly one placeholder is replaced with the natively-typed resolved
// value; a placeholder embedded in a larger string is stringified in place.
// Everything else passes through unchanged, so building is structure
// preserving and idempotent. Unknown variable references resolve to nil
// rather than failing the build; callers wanting stricter behavior validate
// the config ahead of time.
func Build(tree any, vars Variables) any {
	return build(tree, vars.Tree())
}

func build(node any, scope map[string]any) any {
	switch n := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[k] = build(v, scope)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = build(v, scope)
		}
		return out
	case string:
		return substitute(n, scope)
	default:
		return node
	}
}

func substitute(s string, scope map[string]any) any {
	// Whole-value placeholder keeps the resolved value's native type.
	if m := placeholderPattern.FindStringSubmatch(s); m != nil && m[0] == s {
		val, ok, err := pathexpr.Get(scope, m[1])
		if err != nil || !ok {
			return nil
		}
		return val
	}

	if !placeholderPattern.MatchString(s) {
		return s
	}

	// Embedded placeholders are stringified and concatenated in place.
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])
		val, ok, err := pathexpr.Get(scope, path)
		if err != nil || !ok || val == nil {
			return ""
		}
		return stringify(val)
	})
}

// stringify renders a resolved value for embedding inside a larger string.
// Strings embed verbatim; everything else uses its JSON form so complex
// values survive losslessly.
func stringify(val any) string {
	if s, ok := val.(string); ok {
		return s
	}
	b, err := json.Marshal(val)
	if err != nil {
		return ""
	}
	return string(b)
}
