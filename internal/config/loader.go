package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_HTTP_PORT, OPENAI_API_KEY, etc.)
//  2. YAML config file (configPath; missing file is not an error)
//  3. Defaults from Default()
//
// Environment variables use the underscore separator and are uppercased.
// The transformer splits on the first underscore only:
//
//	SERVER_HTTP_PORT -> server.http_port
//	OPENAI_EMBEDDING_MODEL -> openai.embedding_model
//	UPLOAD_CHUNK_SIZE -> upload.chunk_size
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			f, err := os.Open(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to open config file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return nil, fmt.Errorf("failed to stat config file: %w", err)
			}
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
			}

			content, err := io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}

			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	// Override with environment variables. Only variables whose prefix
	// matches a known section are considered, so unrelated environment
	// noise (PATH, HOME) never lands in the config tree.
	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// configSections are the recognized top-level env var prefixes.
var configSections = map[string]bool{
	"server":    true,
	"database":  true,
	"qdrant":    true,
	"openai":    true,
	"upload":    true,
	"retrieval": true,
	"auth":      true,
	"nats":      true,
}

// envTransform maps an environment variable name to a koanf key.
// SECTION_FIELD_NAME -> section.field_name; unknown sections are dropped.
func envTransform(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 {
		return ""
	}
	if !configSections[parts[0]] {
		return ""
	}
	return parts[0] + "." + parts[1]
}
