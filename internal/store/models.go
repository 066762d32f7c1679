package store

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Document is an uploaded file and its processing state.
type Document struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Filename       string
	FilePath       string
	FileSize       int64
	MimeType       *string
	Status         string
	ErrorMessage   *string
	ChunkCount     int
	CollectionName *string
	TaskID         *string
	UploadedAt     time.Time
	UpdatedAt      time.Time
}

// ChatTurn is one user/assistant exchange within a conversation.
type ChatTurn struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	ConversationID   uuid.UUID
	UserMessage      string
	AssistantMessage string
	VectorID         *string
	CreatedAt        time.Time
}
