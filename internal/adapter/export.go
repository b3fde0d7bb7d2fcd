package adapter

import (
	"encoding/json"
	"fmt"
)

// Export serializes cfg as the human-editable configuration document. The
// output is deterministic (struct fields in declaration order, map keys
// sorted), so a config round-trips byte-for-byte through Export/Import.
func Export(cfg Config) ([]byte, error) {
	doc, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to export adapter config: %w", err)
	}
	return append(doc, '\n'), nil
}

// Import parses and validates a configuration document produced by Export
// or authored by hand. Validation warnings are returned alongside the
// config; a hard validation failure rejects the document.
func Import(doc []byte) (Config, []string, error) {
	var cfg Config
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return Config{}, nil, fmt.Errorf("failed to parse adapter config document: %w", err)
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, warnings, err
	}
	return cfg, warnings, nil
}
