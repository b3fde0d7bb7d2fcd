// Package adapter ties the engine together: the per-model configuration
// object, its validation and serialized-document exchange, and the invoker
// that executes one chat turn against an arbitrary third-party endpoint.
package adapter

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/connorbell133/agentflow/internal/domain"
	"github.com/connorbell133/agentflow/internal/sse"
	"github.com/connorbell133/agentflow/internal/transform"
)

// Endpoint types.
const (
	// EndpointTypeWebhook answers with a single buffered JSON body.
	EndpointTypeWebhook = "webhook"

	// EndpointTypeStream answers with a text/event-stream byte stream.
	EndpointTypeStream = "stream"
)

// Config is the full per-model adapter configuration. It is authored by an
// operator through the admin layer, loaded immutably for the duration of one
// invocation, and never mutated by the engine.
type Config struct {
	Endpoint     string            `json:"endpoint"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers,omitempty"`
	EndpointType string            `json:"endpoint_type"`
	BodyConfig   any               `json:"body_config"`

	// Webhook endpoints.
	ResponsePath  string            `json:"response_path,omitempty"`
	MessageFormat *transform.Config `json:"message_format,omitempty"`

	// Stream endpoints.
	StreamConfig *sse.StreamConfig `json:"stream_config,omitempty"`
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// Validate checks cfg for structural problems. It returns non-blocking
// warnings (the soft role/content invariant of the message format) and an
// error for anything that must prevent the config from running.
func Validate(cfg Config) ([]string, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, domain.NewConfigError("endpoint", fmt.Sprintf("%q is not an absolute URL", cfg.Endpoint))
	}

	if !allowedMethods[cfg.Method] {
		return nil, domain.NewConfigError("method", fmt.Sprintf("%q is not one of GET, POST, PUT, DELETE", cfg.Method))
	}

	var warnings []string
	switch cfg.EndpointType {
	case EndpointTypeWebhook:
		if cfg.MessageFormat != nil {
			valid, findings := transform.Validate(*cfg.MessageFormat)
			for _, f := range findings {
				warnings = append(warnings, "message_format: "+f)
			}
			if !valid {
				return warnings, domain.NewConfigError("message_format", "message format mapping failed validation")
			}
		}
	case EndpointTypeStream:
		if cfg.StreamConfig == nil {
			return nil, domain.NewConfigError("stream_config", "stream endpoints require a stream_config")
		}
		if err := sse.ValidateConfig(*cfg.StreamConfig); err != nil {
			return nil, err
		}
	default:
		return nil, domain.NewConfigError("endpoint_type", fmt.Sprintf("%q is not one of webhook, stream", cfg.EndpointType))
	}

	return warnings, nil
}
