package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/documind/internal/auth"
	"github.com/fyrsmithlabs/documind/internal/documents"
	"github.com/fyrsmithlabs/documind/internal/parser"
	"github.com/fyrsmithlabs/documind/internal/store"
)

// Uploader is the document service surface the upload handler consumes.
type Uploader interface {
	Upload(ctx context.Context, userID uuid.UUID, filename, mimeType string, size int64, content io.Reader) (*store.Document, error)
	List(ctx context.Context, userID uuid.UUID) ([]*store.Document, error)
	Get(ctx context.Context, docID, userID uuid.UUID) (*store.Document, error)
	Delete(ctx context.Context, docID, userID uuid.UUID) error
	Async() bool
}

// UploadHandler serves document upload, listing, status, and deletion.
type UploadHandler struct {
	service Uploader
	logger  *zap.Logger
}

// NewUploadHandler creates an UploadHandler.
func NewUploadHandler(service Uploader, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{service: service, logger: logger}
}

// Upload accepts a multipart file upload. Synchronous processing returns
// 201 with the completed document; async returns 202 with the pending
// document and its task id.
func (h *UploadHandler) Upload(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}
	defer src.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	doc, err := h.service.Upload(c.Request().Context(), userID, fileHeader.Filename, mimeType, fileHeader.Size, src)
	if err != nil {
		switch {
		case errors.Is(err, documents.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, parser.ErrUnsupportedFormat):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("upload failed",
				zap.String("user_id", userID.String()),
				zap.String("filename", fileHeader.Filename),
				zap.Error(err),
			)
			return echo.NewHTTPError(http.StatusInternalServerError, "document processing failed")
		}
	}

	status := http.StatusCreated
	if h.service.Async() {
		status = http.StatusAccepted
	}
	return c.JSON(status, documentResponse(doc))
}

// List returns the user's documents, newest first.
func (h *UploadHandler) List(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	docs, err := h.service.List(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("listing documents failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "listing failed")
	}

	out := make([]DocumentResponse, len(docs))
	for i, doc := range docs {
		out[i] = documentResponse(doc)
	}
	return c.JSON(http.StatusOK, out)
}

// Status returns a document's processing state.
func (h *UploadHandler) Status(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}

	doc, err := h.service.Get(c.Request().Context(), docID, userID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "document not found")
		}
		h.logger.Error("status lookup failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "status lookup failed")
	}

	return c.JSON(http.StatusOK, StatusResponse{
		ID:               doc.ID,
		ProcessingStatus: doc.Status,
		ProcessingError:  doc.ErrorMessage,
		ChunkCount:       doc.ChunkCount,
		TaskID:           doc.TaskID,
	})
}

// Delete removes a document, its file, and its vectors.
func (h *UploadHandler) Delete(c echo.Context) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}

	if err := h.service.Delete(c.Request().Context(), docID, userID); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "document not found")
		}
		h.logger.Error("delete failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}
