package documents

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/documind/internal/chunker"
	"github.com/fyrsmithlabs/documind/internal/vectorstore"
)

var tracer = otel.Tracer("documind.documents")

// Parser extracts plain text from a file on disk.
type Parser interface {
	ExtractText(path string) (string, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is the vector-store surface the pipeline consumes.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, userID string) (string, error)
	Upsert(ctx context.Context, collection string, points []vectorstore.Point) error
	DeleteByFilter(ctx context.Context, collection string, filter map[string]string) error
}

// DocumentStore is the persistence surface the pipeline consumes.
type DocumentStore interface {
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status, errorMessage string, chunkCount int, allowedFrom []string) error
	SetDocumentCollection(ctx context.Context, id uuid.UUID, collection string) error
}

// ProcessorConfig holds chunking parameters.
type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Processor runs the ingest pipeline for one document: parse, chunk, embed,
// index. It is shared by the synchronous upload path and the queue worker.
type Processor struct {
	store    DocumentStore
	parser   Parser
	embedder Embedder
	index    VectorIndex
	config   ProcessorConfig
	logger   *zap.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(store DocumentStore, parser Parser, embedder Embedder, index VectorIndex, config ProcessorConfig, logger *zap.Logger) *Processor {
	return &Processor{
		store:    store,
		parser:   parser,
		embedder: embedder,
		index:    index,
		config:   config,
		logger:   logger,
	}
}

// Process ingests one uploaded file. The document moves to processing
// first, then to completed or failed; any step failure marks the document
// failed with the step's error message, on both the sync and async paths.
func (p *Processor) Process(ctx context.Context, docID, userID uuid.UUID, filePath, filename string) error {
	ctx, span := tracer.Start(ctx, "Processor.Process")
	defer span.End()

	span.SetAttributes(
		attribute.String("document_id", docID.String()),
		attribute.String("filename", filename),
	)

	if err := p.setStatus(ctx, docID, StatusProcessing, "", 0); err != nil {
		return fmt.Errorf("marking document processing: %w", err)
	}

	chunkCount, err := p.ingest(ctx, docID, userID, filePath, filename)
	if err != nil {
		p.logger.Error("document processing failed",
			zap.String("document_id", docID.String()),
			zap.String("filename", filename),
			zap.Error(err),
		)
		span.RecordError(err)
		if markErr := p.setStatus(ctx, docID, StatusFailed, err.Error(), 0); markErr != nil {
			p.logger.Error("failed to mark document failed",
				zap.String("document_id", docID.String()),
				zap.Error(markErr),
			)
		}
		return err
	}

	if err := p.setStatus(ctx, docID, StatusCompleted, "", chunkCount); err != nil {
		return fmt.Errorf("marking document completed: %w", err)
	}

	p.logger.Info("document processed",
		zap.String("document_id", docID.String()),
		zap.String("filename", filename),
		zap.Int("chunks", chunkCount),
	)
	span.SetAttributes(attribute.Int("chunks", chunkCount))
	return nil
}

// setStatus writes a guarded status transition: the store applies it only
// from the states the state machine permits, so a replayed queue job cannot
// reopen a completed or failed document.
func (p *Processor) setStatus(ctx context.Context, docID uuid.UUID, status, errorMessage string, chunkCount int) error {
	return p.store.UpdateDocumentStatus(ctx, docID, status, errorMessage, chunkCount, TransitionsTo(status))
}

func (p *Processor) ingest(ctx context.Context, docID, userID uuid.UUID, filePath, filename string) (int, error) {
	text, err := p.parser.ExtractText(filePath)
	if err != nil {
		return 0, fmt.Errorf("extracting text: %w", err)
	}

	chunks := chunker.Split(text, p.config.ChunkSize, p.config.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no text extracted from %s", filename)
	}

	vectors, err := p.embedder.EmbedTexts(ctx, chunker.Texts(chunks))
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}

	collection, err := p.index.EnsureCollection(ctx, userID.String())
	if err != nil {
		return 0, fmt.Errorf("ensuring collection: %w", err)
	}
	if err := p.store.SetDocumentCollection(ctx, docID, collection); err != nil {
		return 0, fmt.Errorf("recording collection: %w", err)
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = vectorstore.Point{
			ID:     uuid.New().String(),
			Vector: vectors[i],
			Payload: map[string]any{
				"type":        "document",
				"user_id":     userID.String(),
				"document_id": docID.String(),
				"chunk_index": chunk.Index,
				"text":        chunk.Text,
				"filename":    filename,
			},
		}
	}

	if err := p.index.Upsert(ctx, collection, points); err != nil {
		return 0, fmt.Errorf("indexing chunks: %w", err)
	}

	return len(chunks), nil
}
