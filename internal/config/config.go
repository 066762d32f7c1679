// Package config provides configuration loading for documind.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. See LoadWithFile for precedence rules and variable mapping.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete documind configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Qdrant    QdrantConfig    `koanf:"qdrant"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Upload    UploadConfig    `koanf:"upload"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Auth      AuthConfig      `koanf:"auth"`
	NATS      NATSConfig      `koanf:"nats"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string `koanf:"cors_origins"`
	Development     bool     `koanf:"development"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password Secret `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"ssl_mode"`
}

// ConnString returns a pgx-compatible connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password.Value(), d.Host, d.Port, d.Name, d.SSLMode)
}

// QdrantConfig holds Qdrant gRPC client configuration.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string `koanf:"host"`

	// Port is the Qdrant gRPC port (6334), NOT the HTTP REST port (6333).
	Port int `koanf:"grpc_port"`

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool `koanf:"use_tls"`
}

// OpenAIConfig holds configuration for the embedding and completion APIs.
type OpenAIConfig struct {
	APIKey Secret `koanf:"api_key"`

	// BaseURL overrides the API endpoint. Empty means the public OpenAI API.
	// Any OpenAI-compatible server (TEI, Ollama) works here.
	BaseURL string `koanf:"base_url"`

	ChatModel      string `koanf:"chat_model"`
	EmbeddingModel string `koanf:"embedding_model"`

	// EmbeddingDim is the vector dimensionality of the embedding model.
	// MUST match the model: text-embedding-3-small is 1536.
	EmbeddingDim int `koanf:"embedding_dim"`

	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// UploadConfig holds document upload and processing configuration.
type UploadConfig struct {
	Dir               string   `koanf:"dir"`
	MaxFileSize       int64    `koanf:"max_file_size"`
	AllowedExtensions []string `koanf:"allowed_extensions"`
	ChunkSize         int      `koanf:"chunk_size"`
	ChunkOverlap      int      `koanf:"chunk_overlap"`

	// Async dispatches processing to the task queue instead of running it
	// inside the upload request.
	Async bool `koanf:"async"`
}

// ExtensionAllowed reports whether ext (including the leading dot,
// case-insensitive) is in the allowed list.
func (u UploadConfig) ExtensionAllowed(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range u.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// RetrievalConfig holds hybrid retrieval configuration.
type RetrievalConfig struct {
	// Limit is the total context budget per chat request.
	Limit int `koanf:"limit"`

	// DocumentWeight and ChatWeight split Limit between document chunks
	// and prior conversation turns. They need not sum to 1.
	DocumentWeight float64 `koanf:"document_weight"`
	ChatWeight     float64 `koanf:"chat_weight"`
}

// AuthConfig holds JWT authentication configuration.
type AuthConfig struct {
	JWTSecret Secret   `koanf:"jwt_secret"`
	TokenTTL  Duration `koanf:"token_ttl"`
}

// NATSConfig holds task queue configuration.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
	Queue   string `koanf:"queue"`
}

// Default returns a Config populated with defaults. LoadWithFile starts
// from this and layers the YAML file and environment on top.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8000,
			ShutdownTimeout: Duration(10 * time.Second),
			CORSOrigins:     []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "rag_user",
			Name:    "rag_db",
			SSLMode: "disable",
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
		OpenAI: OpenAIConfig{
			ChatModel:      "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			EmbeddingDim:   1536,
			Temperature:    0.7,
			MaxTokens:      500,
		},
		Upload: UploadConfig{
			Dir:               "./data/uploads",
			MaxFileSize:       10 * 1024 * 1024,
			AllowedExtensions: []string{".pdf", ".txt", ".docx", ".md", ".csv"},
			ChunkSize:         1000,
			ChunkOverlap:      200,
		},
		Retrieval: RetrievalConfig{
			Limit:          10,
			DocumentWeight: 0.7,
			ChatWeight:     0.3,
		},
		Auth: AuthConfig{
			TokenTTL: Duration(30 * time.Minute),
		},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "documents.process",
			Queue:   "documind-workers",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Qdrant.Host == "" {
		return errors.New("qdrant host required")
	}
	if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("invalid qdrant port: %d", c.Qdrant.Port)
	}
	if c.OpenAI.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.OpenAI.EmbeddingDim)
	}
	if c.OpenAI.ChatModel == "" || c.OpenAI.EmbeddingModel == "" {
		return errors.New("chat model and embedding model required")
	}
	if c.Upload.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Upload.ChunkSize)
	}
	if c.Upload.ChunkOverlap < 0 || c.Upload.ChunkOverlap >= c.Upload.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", c.Upload.ChunkOverlap)
	}
	if c.Upload.MaxFileSize <= 0 {
		return errors.New("max file size must be positive")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return errors.New("at least one allowed extension required")
	}
	if c.Retrieval.Limit <= 0 {
		return fmt.Errorf("retrieval limit must be positive, got %d", c.Retrieval.Limit)
	}
	if c.Retrieval.DocumentWeight < 0 || c.Retrieval.ChatWeight < 0 {
		return errors.New("retrieval weights cannot be negative")
	}
	if !c.Auth.JWTSecret.IsSet() {
		return errors.New("auth jwt secret required")
	}
	if c.Auth.TokenTTL.Duration() <= 0 {
		return errors.New("token ttl must be positive")
	}
	if c.Upload.Async && c.NATS.URL == "" {
		return errors.New("nats url required when async upload is enabled")
	}
	return nil
}
