// Package retriever performs similarity search over a user's collection and
// splits the hits between document chunks and prior chat turns.
package retriever

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fyrsmithlabs/documind/internal/vectorstore"
)

var tracer = otel.Tracer("documind.retriever")

// Searcher is the vector search capability the retriever consumes.
type Searcher interface {
	Search(ctx context.Context, collection string, vector []float32, limit uint64, filter map[string]string) ([]vectorstore.ScoredPoint, error)
}

// Hit is a retrieved chunk with its similarity score and payload metadata.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Results separates retrieval output by payload type.
type Results struct {
	Documents   []Hit
	ChatHistory []Hit
}

// Config holds retrieval weights and limits.
type Config struct {
	// Limit is the total hit budget across both partitions.
	Limit int

	// DocWeight and ChatWeight apportion Limit between document chunks
	// and chat history. Each partition gets at least one slot.
	DocWeight  float64
	ChatWeight float64
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", c.Limit)
	}
	if c.DocWeight < 0 || c.ChatWeight < 0 {
		return fmt.Errorf("weights cannot be negative")
	}
	return nil
}

// Retriever runs weighted hybrid retrieval against a Searcher.
type Retriever struct {
	searcher Searcher
	config   Config
}

// New creates a Retriever.
func New(searcher Searcher, config Config) (*Retriever, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &Retriever{searcher: searcher, config: config}, nil
}

// partitionLimits converts the weights into per-partition hit budgets.
// Each side gets floor(limit*weight) but never less than one slot, so a
// skewed weighting cannot starve a partition entirely.
func partitionLimits(limit int, docWeight, chatWeight float64) (docLimit, chatLimit int) {
	docLimit = int(math.Floor(float64(limit) * docWeight))
	if docLimit < 1 {
		docLimit = 1
	}
	chatLimit = int(math.Floor(float64(limit) * chatWeight))
	if chatLimit < 1 {
		chatLimit = 1
	}
	return docLimit, chatLimit
}

// partition walks hits in score order and fills the two buckets until both
// budgets are met. Hits beyond a full bucket's budget are discarded; entries
// without a type payload count as documents.
func partition(hits []vectorstore.ScoredPoint, docLimit, chatLimit int) Results {
	results := Results{
		Documents:   make([]Hit, 0, docLimit),
		ChatHistory: make([]Hit, 0, chatLimit),
	}

	for _, point := range hits {
		if len(results.Documents) >= docLimit && len(results.ChatHistory) >= chatLimit {
			break
		}
		hit := Hit{ID: point.ID, Score: point.Score, Payload: point.Payload}
		if payloadType(point.Payload) == "chat_history" {
			if len(results.ChatHistory) < chatLimit {
				results.ChatHistory = append(results.ChatHistory, hit)
			}
			continue
		}
		if len(results.Documents) < docLimit {
			results.Documents = append(results.Documents, hit)
		}
	}

	return results
}

func payloadType(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	if t, ok := payload["type"].(string); ok {
		return t
	}
	return ""
}

// SearchCombined runs one over-fetched similarity query and partitions the
// hits into document and chat-history buckets by weight. A single search
// keeps both partitions ranked on the same score scale.
func (r *Retriever) SearchCombined(ctx context.Context, collection string, queryVector []float32) (Results, error) {
	ctx, span := tracer.Start(ctx, "Retriever.SearchCombined")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("limit", r.config.Limit),
	)

	docLimit, chatLimit := partitionLimits(r.config.Limit, r.config.DocWeight, r.config.ChatWeight)

	// Over-fetch so one dominant type cannot crowd the other out of the
	// candidate set before partitioning.
	fetchLimit := uint64(2 * r.config.Limit)
	hits, err := r.searcher.Search(ctx, collection, queryVector, fetchLimit, nil)
	if err != nil {
		span.RecordError(err)
		return Results{}, fmt.Errorf("combined search: %w", err)
	}

	results := partition(hits, docLimit, chatLimit)
	span.SetAttributes(
		attribute.Int("documents_count", len(results.Documents)),
		attribute.Int("chat_history_count", len(results.ChatHistory)),
	)
	return results, nil
}

// SearchDocuments runs a similarity query restricted to document chunks
// for a single document id.
func (r *Retriever) SearchDocuments(ctx context.Context, collection string, queryVector []float32, documentID string) ([]Hit, error) {
	ctx, span := tracer.Start(ctx, "Retriever.SearchDocuments")
	defer span.End()

	filter := map[string]string{"document_id": documentID}
	hits, err := r.searcher.Search(ctx, collection, queryVector, uint64(r.config.Limit), filter)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("document search: %w", err)
	}

	out := make([]Hit, len(hits))
	for i, point := range hits {
		out[i] = Hit{ID: point.ID, Score: point.Score, Payload: point.Payload}
	}
	return out, nil
}
