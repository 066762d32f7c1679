package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/documind/internal/store"
	"github.com/fyrsmithlabs/documind/internal/vectorstore"
)

var (
	// ErrValidation indicates a rejected upload: bad extension, oversize
	// file, or empty filename.
	ErrValidation = errors.New("validation failure")

	// ErrNotFound indicates the document does not exist for this user.
	ErrNotFound = errors.New("document not found")
)

// Store is the full persistence surface the upload service consumes.
type Store interface {
	DocumentStore
	CreateDocument(ctx context.Context, id, userID uuid.UUID, filename, filePath string, fileSize int64, mimeType string) (*store.Document, error)
	GetDocument(ctx context.Context, id, userID uuid.UUID) (*store.Document, error)
	ListDocuments(ctx context.Context, userID uuid.UUID) ([]*store.Document, error)
	SetDocumentTaskID(ctx context.Context, id uuid.UUID, taskID string) error
	DeleteDocument(ctx context.Context, id, userID uuid.UUID) error
}

// Dispatcher hands processing jobs to the task queue. Returns a task id.
type Dispatcher interface {
	Enqueue(ctx context.Context, docID, userID uuid.UUID, filePath, filename string) (string, error)
}

// ServiceConfig holds upload validation and dispatch settings.
type ServiceConfig struct {
	// Dir is the root of the upload tree; files land under Dir/<user_id>/.
	Dir string

	// MaxFileSize is the per-file byte limit.
	MaxFileSize int64

	// AllowedExtensions lists acceptable extensions including the dot.
	AllowedExtensions []string

	// Async hands processing to the task queue instead of running it
	// inside the request.
	Async bool
}

// ExtensionAllowed reports whether ext (with the leading dot,
// case-insensitive) is acceptable.
func (c ServiceConfig) ExtensionAllowed(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range c.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// Service handles document upload, listing, status, and deletion.
type Service struct {
	store      Store
	processor  *Processor
	index      VectorIndex
	dispatcher Dispatcher
	config     ServiceConfig
	logger     *zap.Logger
}

// NewService creates a Service. dispatcher may be nil when Async is off.
func NewService(st Store, processor *Processor, index VectorIndex, dispatcher Dispatcher, config ServiceConfig, logger *zap.Logger) (*Service, error) {
	if config.Async && dispatcher == nil {
		return nil, fmt.Errorf("async uploads require a dispatcher")
	}
	return &Service{
		store:      st,
		processor:  processor,
		index:      index,
		dispatcher: dispatcher,
		config:     config,
		logger:     logger,
	}, nil
}

// Async reports whether uploads are processed out of band.
func (s *Service) Async() bool {
	return s.config.Async
}

// Upload validates and stores an uploaded file, creates its document row,
// and either processes it inline or enqueues it. size is the declared
// content length; content is streamed to disk with the configured limit
// enforced on actual bytes as well. mimeType is the client-declared content
// type and may be empty.
func (s *Service) Upload(ctx context.Context, userID uuid.UUID, filename, mimeType string, size int64, content io.Reader) (*store.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: filename required", ErrValidation)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !s.config.ExtensionAllowed(ext) {
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrValidation, ext)
	}
	if size > s.config.MaxFileSize {
		return nil, fmt.Errorf("%w: file exceeds %d byte limit", ErrValidation, s.config.MaxFileSize)
	}

	docID := uuid.New()
	userDir := filepath.Join(s.config.Dir, userID.String())
	if err := os.MkdirAll(userDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	filePath := filepath.Join(userDir, docID.String()+ext)

	written, err := s.saveFile(filePath, content)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("saving upload: %w", err)
	}

	doc, err := s.store.CreateDocument(ctx, docID, userID, filename, filePath, written, mimeType)
	if err != nil {
		_ = os.Remove(filePath)
		return nil, fmt.Errorf("creating document record: %w", err)
	}

	if s.config.Async {
		taskID, err := s.dispatcher.Enqueue(ctx, docID, userID, filePath, filename)
		if err != nil {
			// The file and row survive; the document stays failed rather
			// than silently pending forever.
			if markErr := s.store.UpdateDocumentStatus(ctx, docID, StatusFailed, "enqueue failed: "+err.Error(), 0, TransitionsTo(StatusFailed)); markErr != nil {
				s.logger.Error("failed to mark document failed",
					zap.String("document_id", docID.String()), zap.Error(markErr))
			}
			return nil, fmt.Errorf("enqueueing processing task: %w", err)
		}
		if err := s.store.SetDocumentTaskID(ctx, docID, taskID); err != nil {
			s.logger.Warn("failed to record task id",
				zap.String("document_id", docID.String()), zap.Error(err))
		}
		doc.TaskID = &taskID
		return doc, nil
	}

	if err := s.processor.Process(ctx, docID, userID, filePath, filename); err != nil {
		return nil, err
	}
	return s.store.GetDocument(ctx, docID, userID)
}

func (s *Service) saveFile(path string, content io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	// Copy one byte past the limit so an undeclared oversize body is caught.
	written, err := io.Copy(f, io.LimitReader(content, s.config.MaxFileSize+1))
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	if written > s.config.MaxFileSize {
		_ = os.Remove(path)
		return 0, fmt.Errorf("%w: file exceeds %d byte limit", ErrValidation, s.config.MaxFileSize)
	}
	return written, nil
}

// List returns the user's documents, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*store.Document, error) {
	docs, err := s.store.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// Get returns one document scoped to its owner.
func (s *Service) Get(ctx context.Context, docID, userID uuid.UUID) (*store.Document, error) {
	doc, err := s.store.GetDocument(ctx, docID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// Delete removes a document's vectors, its file on disk, and its row.
// Vector and file cleanup failures are logged, not fatal; the row delete
// decides the outcome so a re-run can finish the cleanup.
func (s *Service) Delete(ctx context.Context, docID, userID uuid.UUID) error {
	doc, err := s.Get(ctx, docID, userID)
	if err != nil {
		return err
	}

	collection := vectorstore.CollectionName(userID.String())
	if doc.CollectionName != nil {
		collection = *doc.CollectionName
	}
	filter := map[string]string{"document_id": docID.String()}
	if err := s.index.DeleteByFilter(ctx, collection, filter); err != nil {
		s.logger.Warn("failed to delete document vectors",
			zap.String("document_id", docID.String()), zap.Error(err))
	}

	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to delete document file",
			zap.String("path", doc.FilePath), zap.Error(err))
	}

	if err := s.store.DeleteDocument(ctx, docID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting document: %w", err)
	}

	s.logger.Info("document deleted",
		zap.String("document_id", docID.String()),
		zap.String("filename", doc.Filename),
	)
	return nil
}
