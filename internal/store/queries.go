package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

func mapRowError(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CreateUser inserts a user. Returns ErrDuplicate when the email is taken.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, email, password_hash, created_at`,
		uuid.New(), email, passwordHash,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, mapRowError(err, "creating user")
	}
	return &u, nil
}

// GetUserByEmail fetches a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, mapRowError(err, "getting user by email")
	}
	return &u, nil
}

// GetUserByID fetches a user by id.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, mapRowError(err, "getting user by id")
	}
	return &u, nil
}

const documentColumns = `id, user_id, filename, file_path, file_size, mime_type,
	processing_status, processing_error, chunk_count, vector_collection_id,
	task_id, uploaded_at, updated_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(
		&d.ID, &d.UserID, &d.Filename, &d.FilePath, &d.FileSize, &d.MimeType,
		&d.Status, &d.ErrorMessage, &d.ChunkCount, &d.CollectionName, &d.TaskID,
		&d.UploadedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDocument inserts a document row in pending status. mimeType is the
// client-declared content type; pass "" when it was not supplied.
func (s *Store) CreateDocument(ctx context.Context, id, userID uuid.UUID, filename, filePath string, fileSize int64, mimeType string) (*Document, error) {
	var mime *string
	if mimeType != "" {
		mime = &mimeType
	}
	doc, err := scanDocument(s.pool.QueryRow(ctx,
		`INSERT INTO documents (id, user_id, filename, file_path, file_size, mime_type, processing_status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		 RETURNING `+documentColumns,
		id, userID, filename, filePath, fileSize, mime,
	))
	if err != nil {
		return nil, mapRowError(err, "creating document")
	}
	return doc, nil
}

// GetDocument fetches a document scoped to its owner. A document owned by
// another user is indistinguishable from a missing one.
func (s *Store) GetDocument(ctx context.Context, id, userID uuid.UUID) (*Document, error) {
	doc, err := scanDocument(s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err != nil {
		return nil, mapRowError(err, "getting document")
	}
	return doc, nil
}

// ListDocuments returns all of a user's documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, userID uuid.UUID) ([]*Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE user_id = $1 ORDER BY uploaded_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// UpdateDocumentStatus records a status transition. The update applies only
// while the current status is one of allowedFrom, so a replayed job cannot
// move a document out of a terminal state. errorMessage and chunkCount only
// apply to terminal states; pass "" and 0 otherwise.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status, errorMessage string, chunkCount int, allowedFrom []string) error {
	var msg *string
	if errorMessage != "" {
		msg = &errorMessage
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET processing_status = $2, processing_error = $3, chunk_count = $4, updated_at = NOW()
		 WHERE id = $1 AND processing_status = ANY($5)`,
		id, status, msg, chunkCount, allowedFrom,
	)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := s.pool.QueryRow(ctx,
			`SELECT processing_status FROM documents WHERE id = $1`, id,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("updating document status: %w", err)
		}
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, status)
	}
	return nil
}

// SetDocumentCollection records the vector collection the document's chunks
// were written to.
func (s *Store) SetDocumentCollection(ctx context.Context, id uuid.UUID, collection string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE documents SET vector_collection_id = $2, updated_at = NOW() WHERE id = $1`,
		id, collection,
	)
	if err != nil {
		return fmt.Errorf("setting document collection: %w", err)
	}
	return nil
}

// SetDocumentTaskID records the async processing task id.
func (s *Store) SetDocumentTaskID(ctx context.Context, id uuid.UUID, taskID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE documents SET task_id = $2, updated_at = NOW() WHERE id = $1`,
		id, taskID,
	)
	if err != nil {
		return fmt.Errorf("setting document task id: %w", err)
	}
	return nil
}

// DeleteDocument removes a document row scoped to its owner.
func (s *Store) DeleteDocument(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateChatTurn persists one user/assistant exchange.
func (s *Store) CreateChatTurn(ctx context.Context, userID, conversationID uuid.UUID, userMessage, assistantMessage string) (*ChatTurn, error) {
	var turn ChatTurn
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_history (id, user_id, conversation_id, user_message, assistant_message)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, user_id, conversation_id, user_message, assistant_message, vector_id, created_at`,
		uuid.New(), userID, conversationID, userMessage, assistantMessage,
	).Scan(
		&turn.ID, &turn.UserID, &turn.ConversationID,
		&turn.UserMessage, &turn.AssistantMessage, &turn.VectorID, &turn.CreatedAt,
	)
	if err != nil {
		return nil, mapRowError(err, "creating chat turn")
	}
	return &turn, nil
}

// SetChatTurnVectorID backfills the vector-store point id after the turn's
// embedding has been upserted.
func (s *Store) SetChatTurnVectorID(ctx context.Context, id uuid.UUID, vectorID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE chat_history SET vector_id = $2 WHERE id = $1`,
		id, vectorID,
	)
	if err != nil {
		return fmt.Errorf("setting chat turn vector id: %w", err)
	}
	return nil
}

// ListChatTurns returns a conversation's turns in chronological order.
func (s *Store) ListChatTurns(ctx context.Context, userID, conversationID uuid.UUID) ([]*ChatTurn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, conversation_id, user_message, assistant_message, vector_id, created_at
		 FROM chat_history
		 WHERE user_id = $1 AND conversation_id = $2
		 ORDER BY created_at ASC`,
		userID, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing chat turns: %w", err)
	}
	defer rows.Close()

	var turns []*ChatTurn
	for rows.Next() {
		var turn ChatTurn
		if err := rows.Scan(
			&turn.ID, &turn.UserID, &turn.ConversationID,
			&turn.UserMessage, &turn.AssistantMessage, &turn.VectorID, &turn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning chat turn: %w", err)
		}
		turns = append(turns, &turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing chat turns: %w", err)
	}
	return turns, nil
}
