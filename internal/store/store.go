// Package store persists users, documents, and chat history in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested row does not exist or belongs to a
// different user.
var ErrNotFound = errors.New("not found")

// ErrDuplicate indicates a uniqueness violation, e.g. an email already
// registered.
var ErrDuplicate = errors.New("already exists")

// ErrInvalidTransition indicates a document status update whose current
// state does not permit the requested change.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store wraps the PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store and verifies connectivity with a ping.
func New(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies the schema. All statements are idempotent so running at
// every startup is safe.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			file_path TEXT NOT NULL,
			file_size BIGINT NOT NULL,
			mime_type TEXT,
			processing_status TEXT NOT NULL DEFAULT 'pending',
			processing_error TEXT,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			vector_collection_id TEXT,
			task_id TEXT,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`ALTER TABLE documents ADD COLUMN IF NOT EXISTS mime_type TEXT`,
		`ALTER TABLE documents ADD COLUMN IF NOT EXISTS task_id TEXT`,
		`CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents(user_id)`,
		`CREATE TABLE IF NOT EXISTS chat_history (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			conversation_id UUID NOT NULL,
			user_message TEXT NOT NULL,
			assistant_message TEXT NOT NULL,
			vector_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_history_conversation ON chat_history(user_id, conversation_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying migration: %w", err)
		}
	}
	return nil
}
