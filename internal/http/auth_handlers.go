package http

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/documind/internal/auth"
	"github.com/fyrsmithlabs/documind/internal/store"
)

const minPasswordLength = 8

// UserStore is the persistence surface the auth handlers consume.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error)
}

// UserHandler serves signup, signin, and the current-user endpoint.
type UserHandler struct {
	store  UserStore
	tokens *auth.Tokens
	logger *zap.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(st UserStore, tokens *auth.Tokens, logger *zap.Logger) *UserHandler {
	return &UserHandler{store: st, tokens: tokens, logger: logger}
}

// Signup registers a new account and returns a bearer token.
func (h *UserHandler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email address")
	}
	if len(req.Password) < minPasswordLength {
		return echo.NewHTTPError(http.StatusBadRequest, "password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("password hashing failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "signup failed")
	}

	user, err := h.store.CreateUser(c.Request().Context(), email, hash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		}
		h.logger.Error("creating user failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "signup failed")
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		h.logger.Error("issuing token failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "signup failed")
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return c.JSON(http.StatusCreated, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Signin authenticates an existing account and returns a bearer token.
func (h *UserHandler) Signin(c echo.Context) error {
	var req SigninRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.store.GetUserByEmail(c.Request().Context(), email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same response as a wrong password so callers can't tell
			// which accounts exist.
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		h.logger.Error("looking up user failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "signin failed")
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		h.logger.Error("issuing token failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "signin failed")
	}

	return c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Me returns the authenticated user's profile.
func (h *UserHandler) Me(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	user, err := h.store.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		h.logger.Error("looking up user failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
	}

	return c.JSON(http.StatusOK, UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}
