package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/documind/internal/retriever"
	"github.com/fyrsmithlabs/documind/internal/store"
	"github.com/fyrsmithlabs/documind/internal/vectorstore"
)

var tracer = otel.Tracer("documind.chat")

// ErrEmptyQuery indicates a blank chat query.
var ErrEmptyQuery = errors.New("query cannot be empty")

// Embedder produces a vector for a single text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs hybrid retrieval over a user's collection.
type Searcher interface {
	SearchCombined(ctx context.Context, collection string, queryVector []float32) (retriever.Results, error)
}

// VectorIndex is the vector-store surface the chat service consumes.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, userID string) (string, error)
	Upsert(ctx context.Context, collection string, points []vectorstore.Point) error
}

// HistoryStore persists conversation turns.
type HistoryStore interface {
	CreateChatTurn(ctx context.Context, userID, conversationID uuid.UUID, userMessage, assistantMessage string) (*store.ChatTurn, error)
	SetChatTurnVectorID(ctx context.Context, id uuid.UUID, vectorID string) error
}

// Answerer generates a completion for a system prompt and query.
type Answerer interface {
	Generate(ctx context.Context, system, query string) (string, error)
}

// Source cites one document chunk that informed the answer.
type Source struct {
	DocumentID     string  `json:"document_id"`
	Filename       string  `json:"filename"`
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float32 `json:"relevance_score"`
}

// Answer is the outcome of one chat exchange.
type Answer struct {
	Answer          string    `json:"answer"`
	Sources         []Source  `json:"sources"`
	ConversationID  uuid.UUID `json:"conversation_id"`
	ChatContextUsed bool      `json:"chat_context_used"`
}

// Service orchestrates one chat turn: retrieve, generate, persist.
type Service struct {
	embedder  Embedder
	searcher  Searcher
	index     VectorIndex
	history   HistoryStore
	generator Answerer
	logger    *zap.Logger
}

// NewService creates a chat Service.
func NewService(embedder Embedder, searcher Searcher, index VectorIndex, history HistoryStore, generator Answerer, logger *zap.Logger) *Service {
	return &Service{
		embedder:  embedder,
		searcher:  searcher,
		index:     index,
		history:   history,
		generator: generator,
		logger:    logger,
	}
}

// Ask answers a query against the user's documents and prior conversation
// turns, then records the new turn for future retrieval. conversationID may
// be uuid.Nil to start a new conversation.
func (s *Service) Ask(ctx context.Context, userID uuid.UUID, query string, conversationID uuid.UUID) (*Answer, error) {
	ctx, span := tracer.Start(ctx, "Service.Ask")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID.String()))

	if query == "" {
		return nil, ErrEmptyQuery
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	collection, err := s.index.EnsureCollection(ctx, userID.String())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("ensuring collection: %w", err)
	}

	results, err := s.searcher.SearchCombined(ctx, collection, queryVector)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	answerText, err := s.generator.Generate(ctx, systemPrompt(buildContext(results)), query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if conversationID == uuid.Nil {
		conversationID = uuid.New()
	}
	s.persistTurn(ctx, userID, conversationID, query, answerText, collection)

	answer := &Answer{
		Answer:          answerText,
		Sources:         documentSources(results.Documents),
		ConversationID:  conversationID,
		ChatContextUsed: len(results.ChatHistory) > 0,
	}
	span.SetAttributes(
		attribute.Int("sources_count", len(answer.Sources)),
		attribute.Bool("chat_context_used", answer.ChatContextUsed),
	)
	return answer, nil
}

// persistTurn records the exchange and indexes its embedding so later
// queries can retrieve it. The relational write must succeed for the turn
// to exist at all; the vector-side writes are best effort, since a turn
// without a vector id is merely unretrievable, never inconsistent.
func (s *Service) persistTurn(ctx context.Context, userID, conversationID uuid.UUID, query, answer, collection string) {
	turn, err := s.history.CreateChatTurn(ctx, userID, conversationID, query, answer)
	if err != nil {
		s.logger.Error("failed to persist chat turn",
			zap.String("user_id", userID.String()), zap.Error(err))
		return
	}

	turnText := "User: " + query + "\nAssistant: " + answer
	vector, err := s.embedder.EmbedQuery(ctx, turnText)
	if err != nil {
		s.logger.Warn("failed to embed chat turn",
			zap.String("turn_id", turn.ID.String()), zap.Error(err))
		return
	}

	pointID := uuid.New().String()
	point := vectorstore.Point{
		ID:     pointID,
		Vector: vector,
		Payload: map[string]any{
			"type":            "chat_history",
			"user_id":         userID.String(),
			"conversation_id": conversationID.String(),
			"text":            turnText,
		},
	}
	if err := s.index.Upsert(ctx, collection, []vectorstore.Point{point}); err != nil {
		s.logger.Warn("failed to index chat turn",
			zap.String("turn_id", turn.ID.String()), zap.Error(err))
		return
	}

	if err := s.history.SetChatTurnVectorID(ctx, turn.ID, pointID); err != nil {
		s.logger.Warn("failed to backfill chat turn vector id",
			zap.String("turn_id", turn.ID.String()), zap.Error(err))
	}
}

// documentSources builds the citation list. Only document hits are cited;
// chat-history hits shape the answer but are not sources.
func documentSources(hits []retriever.Hit) []Source {
	sources := make([]Source, 0, len(hits))
	for _, hit := range hits {
		docID, _ := hit.Payload["document_id"].(string)
		filename, _ := hit.Payload["filename"].(string)
		sources = append(sources, Source{
			DocumentID:     docID,
			Filename:       filename,
			ChunkIndex:     chunkIndex(hit.Payload),
			RelevanceScore: hit.Score,
		})
	}
	return sources
}
