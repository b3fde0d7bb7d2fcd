// Package pathexpr implements dot/bracket path expressions over generic JSON
// trees (map[string]any, []any, scalars). It is the leaf dependency of the
// template builder, message transformer, response extractor and stream mapper.
package pathexpr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/connorbell133/agentflow/internal/domain"
)

// segment is one parsed element of a path expression: a key, optionally
// followed by a single array index ("choices[0]").
type segment struct {
	key      string
	index    int
	hasIndex bool
}

// parse splits a path expression into segments. An empty path is a
// configuration error, never a crash.
func parse(path string) ([]segment, error) {
	if path == "" {
		return nil, domain.NewConfigError("path", "path expression must not be empty")
	}

	parts := strings.Split(path, ".")
	segments := make([]segment, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, domain.NewConfigError("path", fmt.Sprintf("empty segment in path %q", path))
		}

		seg := segment{key: part}
		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") || open == 0 {
				return nil, domain.NewConfigError("path", fmt.Sprintf("malformed array segment %q in path %q", part, path))
			}
			idx, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || idx < 0 {
				return nil, domain.NewConfigError("path", fmt.Sprintf("invalid array index in segment %q of path %q", part, path))
			}
			seg.key = part[:open]
			seg.index = idx
			seg.hasIndex = true
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Get resolves path against root. It returns the value and true when every
// segment resolved, or nil and false when any intermediate is absent. Absence
// is not an error; only a malformed path is.
func Get(root any, path string) (any, bool, error) {
	segments, err := parse(path)
	if err != nil {
		return nil, false, err
	}

	current := root
	for _, seg := range segments {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		current, ok = obj[seg.key]
		if !ok {
			return nil, false, nil
		}

		if seg.hasIndex {
			arr, ok := current.([]any)
			if !ok || seg.index >= len(arr) {
				return nil, false, nil
			}
			current = arr[seg.index]
		}
	}
	return current, true, nil
}

// Set writes value at path inside root, creating intermediate objects as
// needed. Array segments are only supported where the array already exists at
// that depth: writing through a non-existent array index is an error rather
// than silently materializing holes.
func Set(root map[string]any, path string, value any) error {
	segments, err := parse(path)
	if err != nil {
		return err
	}

	current := root
	for i, seg := range segments {
		last := i == len(segments)-1

		if seg.hasIndex {
			arr, ok := current[seg.key].([]any)
			if !ok {
				return domain.NewConfigError("path", fmt.Sprintf("cannot write through %q in path %q: array does not exist", seg.key, path))
			}
			if seg.index >= len(arr) {
				return domain.NewConfigError("path", fmt.Sprintf("cannot write through %q in path %q: index %d out of range", seg.key, path, seg.index))
			}
			if last {
				arr[seg.index] = value
				return nil
			}
			next, ok := arr[seg.index].(map[string]any)
			if !ok {
				next = make(map[string]any)
				arr[seg.index] = next
			}
			current = next
			continue
		}

		if last {
			current[seg.key] = value
			return nil
		}
		next, ok := current[seg.key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[seg.key] = next
		}
		current = next
	}
	return nil
}
