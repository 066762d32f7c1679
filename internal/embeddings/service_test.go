package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantError bool
	}{
		{
			name:      "valid openai config",
			config:    Config{Model: "text-embedding-3-small", APIKey: "sk-test", Dim: 1536},
			wantError: false,
		},
		{
			name:      "valid self-hosted config without key",
			config:    Config{BaseURL: "http://localhost:8080/v1", Model: "bge-small", Dim: 384},
			wantError: false,
		},
		{
			name:      "missing model",
			config:    Config{APIKey: "sk-test", Dim: 1536},
			wantError: true,
		},
		{
			name:      "zero dimension",
			config:    Config{Model: "text-embedding-3-small", Dim: 0},
			wantError: true,
		},
		{
			name:      "negative dimension",
			config:    Config{Model: "text-embedding-3-small", Dim: -1},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewService(t *testing.T) {
	svc, err := NewService(Config{Model: "text-embedding-3-small", APIKey: "sk-test", Dim: 1536})
	require.NoError(t, err)
	assert.Equal(t, 1536, svc.Dim())
}

func TestNewService_InvalidConfig(t *testing.T) {
	_, err := NewService(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEmbedTexts_EmptyInput(t *testing.T) {
	svc, err := NewService(Config{Model: "text-embedding-3-small", APIKey: "sk-test", Dim: 1536})
	require.NoError(t, err)

	// No API call happens for empty input, so no server is needed.
	vectors, err := svc.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}
