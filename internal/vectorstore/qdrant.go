// Package vectorstore manages per-user Qdrant collections of embedded
// document chunks and chat-history turns.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("documind.vectorstore.qdrant")

// collectionNamePattern validates collection names:
// lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

var (
	// ErrVectorStore wraps any failure from the underlying vector database.
	ErrVectorStore = errors.New("vector store failure")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates a name outside the allowed pattern.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Config holds configuration for the Qdrant gRPC client.
type Config struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334), NOT the HTTP REST port (6333).
	Port int

	// VectorSize is the dimensionality of stored vectors. MUST match the
	// embedding model's output.
	VectorSize uint64

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// MaxRetries is the retry budget for transient failures. Default: 3.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per retry. Default: 1s.
	RetryBackoff time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
}

// Point is a vector-store record: id, vector, and payload metadata.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a similarity search hit.
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// CollectionName derives the deterministic per-user collection name:
// user_<id>_documents. UUID dashes are stripped so the result satisfies
// the collection name pattern; no two user ids can collide.
func CollectionName(userID string) string {
	normalized := strings.ToLower(strings.ReplaceAll(userID, "-", ""))
	return "user_" + normalized + "_documents"
}

// ValidateCollectionName validates a collection name against the allowed
// pattern. Rejects uppercase, special characters, and path traversal.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// IsTransientError reports whether an error is worth retrying: network
// timeouts and temporary unavailability, not invalid input or auth failures.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// Store is a Qdrant-backed vector store using the native gRPC client.
type Store struct {
	client *qdrant.Client
	config Config

	// collections caches collection existence to avoid repeated checks.
	collections sync.Map
}

// New creates a Store, connects to Qdrant, and verifies the connection
// with a health check.
func New(config Config) (*Store, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting: %v", ErrVectorStore, err)
	}

	s := &Store{client: client, config: config}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrVectorStore, err)
	}

	return s, nil
}

// Close closes the Qdrant gRPC connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// retryOperation retries an operation with exponential backoff on
// transient errors.
func (s *Store) retryOperation(ctx context.Context, name string, op func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed: %w", name, err)
		}
		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, s.config.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

// EnsureCollection idempotently creates the per-user collection sized to the
// configured vector dimension with cosine distance. Returns the collection
// name whether or not it had to be created.
func (s *Store) EnsureCollection(ctx context.Context, userID string) (string, error) {
	ctx, span := tracer.Start(ctx, "Store.EnsureCollection")
	defer span.End()

	name := CollectionName(userID)
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return "", err
	}

	if _, ok := s.collections.Load(name); ok {
		return name, nil
	}

	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		_, err := s.client.GetCollectionInfo(ctx, name)
		if err != nil {
			st, ok := status.FromError(err)
			if ok && st.Code() == grpccodes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%w: checking collection %s: %v", ErrVectorStore, name, err)
	}

	if !exists {
		err := s.retryOperation(ctx, "create_collection", func() error {
			return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: name,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     s.config.VectorSize,
					Distance: qdrant.Distance_Cosine,
				}),
			})
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", fmt.Errorf("%w: creating collection %s: %v", ErrVectorStore, name, err)
		}
	}

	s.collections.Store(name, true)
	span.SetStatus(codes.Ok, "success")
	return name, nil
}

// Upsert writes points into a collection. Point ids are caller-supplied
// UUIDs, freshly generated per call; upserts are not atomic with any prior
// collection creation.
func (s *Store) Upsert(ctx context.Context, collection string, points []Point) error {
	ctx, span := tracer.Start(ctx, "Store.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("point_count", len(points)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("%w: points cannot be empty", ErrVectorStore)
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: toQdrantPayload(p.Payload),
		}
	}

	err := s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         qdrantPoints,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: upserting into %s: %v", ErrVectorStore, collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search returns up to limit nearest points by cosine similarity, each with
// its score and payload, in descending score order. filter applies equality
// conditions on payload fields; nil means no filter.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit uint64, filter map[string]string) ([]ScoredPoint, error) {
	ctx, span := tracer.Start(ctx, "Store.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("limit", int(limit)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if limit == 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrVectorStore)
	}

	var results []*qdrant.ScoredPoint
	err := s.retryOperation(ctx, "search", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(limit),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         buildFilter(filter),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: searching %s: %v", ErrVectorStore, collection, err)
	}

	hits := make([]ScoredPoint, len(results))
	for i, point := range results {
		hits[i] = ScoredPoint{
			ID:      pointID(point.Id),
			Score:   point.Score,
			Payload: fromQdrantPayload(point.Payload),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// DeleteByFilter removes all points matching the equality filter. Used for
// document deletion cleanup.
func (s *Store) DeleteByFilter(ctx context.Context, collection string, filter map[string]string) error {
	ctx, span := tracer.Start(ctx, "Store.DeleteByFilter")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(filter) == 0 {
		return fmt.Errorf("%w: delete filter cannot be empty", ErrVectorStore)
	}

	err := s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: buildFilter(filter),
				},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: deleting from %s: %v", ErrVectorStore, collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// buildFilter converts equality conditions to a Qdrant filter. Returns nil
// for an empty map so unfiltered queries stay unfiltered.
func buildFilter(filter map[string]string) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: value},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

// toQdrantPayload converts a payload map to Qdrant's value representation.
// Unsupported value types are dropped.
func toQdrantPayload(payload map[string]any) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
		case int:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
		case float64:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
		case bool:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
		}
	}
	return out
}

// fromQdrantPayload converts Qdrant payload values back to plain Go values.
func fromQdrantPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch val := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			out[k] = val.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = val.BoolValue
		}
	}
	return out
}

// pointID extracts the string form of a Qdrant point id.
func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}
