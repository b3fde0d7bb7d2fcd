// Package config loads the adapter service configuration from a YAML file
// and AGENTFLOW_-prefixed environment variables.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Chat    ChatConfig    `koanf:"chat"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	// Type selects the store: sqlite or memory.
	Type   string       `koanf:"type"`
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type ChatConfig struct {
	// DefaultHeaders are merged into every outbound adapter call unless the
	// adapter config sets the same header itself. Values may reference
	// environment variables as ${VAR_NAME}.
	DefaultHeaders map[string]string `koanf:"default_headers"`

	// RestrictPrivateEndpoints blocks outbound calls whose endpoint resolves
	// to loopback, private or link-local address space. Enable it when
	// adapter configs come from untrusted operators.
	RestrictPrivateEndpoints bool `koanf:"restrict_private_endpoints"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml (when present, path overridable via the CONFIG_FILE
// environment variable) and then environment variables, which take
// precedence. AGENTFLOW_SERVER__PORT=9090 maps to server.port.
func Load() (*Config, error) {
	k := koanf.New(".")

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// A missing file is fine; env vars carry the config.
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("AGENTFLOW_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "AGENTFLOW_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "sqlite")
	}
	if !k.Exists("storage.sqlite.path") {
		k.Set("storage.sqlite.path", "agentflow.db")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for name, value := range cfg.Chat.DefaultHeaders {
		cfg.Chat.DefaultHeaders[name] = substituteEnvVars(value)
	}

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
