package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/documind/internal/auth"
	"github.com/fyrsmithlabs/documind/internal/chat"
	"github.com/fyrsmithlabs/documind/internal/store"
)

// Asker answers one chat query.
type Asker interface {
	Ask(ctx context.Context, userID uuid.UUID, query string, conversationID uuid.UUID) (*chat.Answer, error)
}

// HistoryStore lists a conversation's persisted turns.
type HistoryStore interface {
	ListChatTurns(ctx context.Context, userID, conversationID uuid.UUID) ([]*store.ChatTurn, error)
}

// ChatHandler serves the question-answering and history endpoints.
type ChatHandler struct {
	service Asker
	history HistoryStore
	logger  *zap.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(service Asker, history HistoryStore, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{service: service, history: history, logger: logger}
}

// Chat answers a query against the user's documents.
func (h *ChatHandler) Chat(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	conversationID := uuid.Nil
	if req.ConversationID != nil {
		conversationID = *req.ConversationID
	}

	answer, err := h.service.Ask(c.Request().Context(), userID, req.Query, conversationID)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyQuery):
			return echo.NewHTTPError(http.StatusBadRequest, "query cannot be empty")
		case errors.Is(err, chat.ErrGeneration):
			h.logger.Error("answer generation failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusBadGateway, "answer generation failed")
		default:
			h.logger.Error("chat request failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "chat request failed")
		}
	}

	return c.JSON(http.StatusOK, answer)
}

// History returns a conversation's turns in chronological order. A
// conversation the user never took part in yields an empty list, not 404.
func (h *ChatHandler) History(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	conversationID, err := uuid.Parse(c.Param("conversation_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid conversation id")
	}

	turns, err := h.history.ListChatTurns(c.Request().Context(), userID, conversationID)
	if err != nil {
		h.logger.Error("listing chat history failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "listing history failed")
	}

	out := make([]ChatTurnResponse, len(turns))
	for i, turn := range turns {
		out[i] = chatTurnResponse(turn)
	}
	return c.JSON(http.StatusOK, out)
}
