package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/documind/internal/config"
)

func TestQueueRequired(t *testing.T) {
	tests := []struct {
		name       string
		async      bool
		workerMode bool
		want       bool
	}{
		{"sync api server", false, false, false},
		{"async api server", true, false, true},
		{"worker with async unset", false, true, true},
		{"worker with async set", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Upload.Async = tt.async
			assert.Equal(t, tt.want, queueRequired(cfg, tt.workerMode))
		})
	}
}
