// Package extract pulls the user-visible answer out of a non-streaming
// upstream JSON response using the adapter's configured response path.
package extract

import (
	"encoding/json"

	"github.com/connorbell133/agentflow/internal/pathexpr"
)

// Result is the outcome of extracting an answer from a response body.
type Result struct {
	// Answer is the user-visible text. Always populated: extraction favors
	// returning something displayable over strict schema conformance, since
	// third-party endpoints are not under the platform's control.
	Answer string

	// Found reports whether the configured response path resolved. It
	// distinguishes a legitimately empty answer from a path miss that fell
	// back to whole-body serialization.
	Found bool
}

// Answer applies the three-tier extraction policy to a raw response body:
// the configured responsePath when set, the conventional "response" field
// otherwise, and finally the whole body as text. A body that is not valid
// JSON at all is returned verbatim.
func Answer(raw []byte, responsePath string) Result {
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return Result{Answer: string(raw), Found: false}
	}

	obj, isObject := body.(map[string]any)

	if responsePath != "" && isObject {
		val, ok, err := pathexpr.Get(obj, responsePath)
		if err == nil && ok {
			return Result{Answer: asText(val), Found: true}
		}
		return Result{Answer: string(raw), Found: false}
	}

	if isObject {
		if val, ok := obj["response"]; ok {
			return Result{Answer: asText(val), Found: true}
		}
	}

	return Result{Answer: string(raw), Found: false}
}

// asText renders an extracted value for display. Strings pass through;
// anything else uses its JSON form.
func asText(val any) string {
	if s, ok := val.(string); ok {
		return s
	}
	b, err := json.Marshal(val)
	if err != nil {
		return ""
	}
	return string(b)
}
