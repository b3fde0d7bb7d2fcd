package domain

import (
	"fmt"
	"net/http"
)

// ConfigValidationError reports a structurally invalid adapter configuration.
// It is surfaced at configuration-save time by the authoring layer; the engine
// also re-validates defensively and refuses to run with a config carrying one.
type ConfigValidationError struct {
	// Field is the configuration field the problem was found in, in path
	// notation (e.g. "message_format.mapping.content.target").
	Field string

	// Message is the human-readable description of the problem.
	Message string
}

// Error implements the error interface.
func (e *ConfigValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid adapter config: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid adapter config: %s", e.Message)
}

// NewConfigError creates a configuration validation error for a field.
func NewConfigError(field, message string) *ConfigValidationError {
	return &ConfigValidationError{Field: field, Message: message}
}

// UpstreamError reports a non-success HTTP status or transport failure on the
// outbound call. The upstream status code and raw body are preserved for
// diagnostics; upstream calls are never retried automatically.
type UpstreamError struct {
	// StatusCode is the HTTP status returned upstream, or 0 for a transport
	// failure before any response was received.
	StatusCode int

	// Body is the raw upstream response body, verbatim.
	Body string

	// Err is the underlying transport error, if any.
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream request failed: %v", e.Err)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Unwrap exposes the underlying transport error for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status to report to the caller for this error.
// Upstream failures are always the upstream's fault from our caller's view.
func (e *UpstreamError) HTTPStatusCode() int {
	return http.StatusBadGateway
}

// FrameParseError reports a single malformed SSE frame. It is recovered
// locally: the frame is dropped and the stream continues.
type FrameParseError struct {
	// Frame is a short excerpt of the offending frame data.
	Frame string

	// Err is the underlying parse failure.
	Err error
}

// Error implements the error interface.
func (e *FrameParseError) Error() string {
	return fmt.Sprintf("malformed stream frame %q: %v", e.Frame, e.Err)
}

// Unwrap exposes the underlying parse error for errors.Is/As.
func (e *FrameParseError) Unwrap() error {
	return e.Err
}

// StreamError reports an explicit error payload detected in a stream via the
// configured error path. It is terminal for the stream and surfaced to the
// caller as an Error canonical event rather than a Go error.
type StreamError struct {
	// Payload is the value found at the configured error path.
	Payload any
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	return fmt.Sprintf("upstream stream error: %v", e.Payload)
}
