package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/documind/internal/store"
)

// SignupRequest is the request body for POST /api/auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SigninRequest is the request body for POST /api/auth/signin.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserResponse is the response body for GET /api/auth/me.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentResponse describes one uploaded document.
type DocumentResponse struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	Filename           string    `json:"filename"`
	FileSize           int64     `json:"file_size"`
	MimeType           *string   `json:"mime_type"`
	VectorCollectionID *string   `json:"vector_collection_id"`
	ProcessingStatus   string    `json:"processing_status"`
	ProcessingError    *string   `json:"processing_error"`
	ChunkCount         int       `json:"chunk_count"`
	TaskID             *string   `json:"task_id"`
	UploadedAt         time.Time `json:"uploaded_at"`
}

func documentResponse(doc *store.Document) DocumentResponse {
	return DocumentResponse{
		ID:                 doc.ID,
		UserID:             doc.UserID,
		Filename:           doc.Filename,
		FileSize:           doc.FileSize,
		MimeType:           doc.MimeType,
		VectorCollectionID: doc.CollectionName,
		ProcessingStatus:   doc.Status,
		ProcessingError:    doc.ErrorMessage,
		ChunkCount:         doc.ChunkCount,
		TaskID:             doc.TaskID,
		UploadedAt:         doc.UploadedAt,
	}
}

// StatusResponse is the response body for GET /api/upload/:id/status.
type StatusResponse struct {
	ID               uuid.UUID `json:"id"`
	ProcessingStatus string    `json:"processing_status"`
	ProcessingError  *string   `json:"processing_error"`
	ChunkCount       int       `json:"chunk_count"`
	TaskID           *string   `json:"task_id"`
}

// ChatTurnResponse is one exchange in a conversation's history.
type ChatTurnResponse struct {
	ID               uuid.UUID `json:"id"`
	ConversationID   uuid.UUID `json:"conversation_id"`
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	CreatedAt        time.Time `json:"created_at"`
}

func chatTurnResponse(turn *store.ChatTurn) ChatTurnResponse {
	return ChatTurnResponse{
		ID:               turn.ID,
		ConversationID:   turn.ConversationID,
		UserMessage:      turn.UserMessage,
		AssistantMessage: turn.AssistantMessage,
		CreatedAt:        turn.CreatedAt,
	}
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Query          string     `json:"query"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
