package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/documind/internal/vectorstore"
)

type fakeSearcher struct {
	hits      []vectorstore.ScoredPoint
	err       error
	lastLimit uint64
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ []float32, limit uint64, _ map[string]string) ([]vectorstore.ScoredPoint, error) {
	f.lastLimit = limit
	return f.hits, f.err
}

func docHit(id string, score float32) vectorstore.ScoredPoint {
	return vectorstore.ScoredPoint{
		ID:    id,
		Score: score,
		Payload: map[string]any{
			"type": "document",
			"text": "chunk " + id,
		},
	}
}

func chatHit(id string, score float32) vectorstore.ScoredPoint {
	return vectorstore.ScoredPoint{
		ID:    id,
		Score: score,
		Payload: map[string]any{
			"type": "chat_history",
			"text": "turn " + id,
		},
	}
}

func TestPartitionLimits(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		docWeight  float64
		chatWeight float64
		wantDoc    int
		wantChat   int
	}{
		{
			name:       "default weights",
			limit:      10,
			docWeight:  0.7,
			chatWeight: 0.3,
			wantDoc:    7,
			wantChat:   3,
		},
		{
			name:       "small limit floors to one",
			limit:      1,
			docWeight:  0.7,
			chatWeight: 0.3,
			wantDoc:    1,
			wantChat:   1,
		},
		{
			name:       "zero chat weight still gets a slot",
			limit:      10,
			docWeight:  1.0,
			chatWeight: 0.0,
			wantDoc:    10,
			wantChat:   1,
		},
		{
			name:       "even split",
			limit:      6,
			docWeight:  0.5,
			chatWeight: 0.5,
			wantDoc:    3,
			wantChat:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, chat := partitionLimits(tt.limit, tt.docWeight, tt.chatWeight)
			assert.Equal(t, tt.wantDoc, doc)
			assert.Equal(t, tt.wantChat, chat)
		})
	}
}

func TestPartition(t *testing.T) {
	t.Run("splits by payload type", func(t *testing.T) {
		hits := []vectorstore.ScoredPoint{
			docHit("d1", 0.95),
			chatHit("c1", 0.90),
			docHit("d2", 0.85),
			chatHit("c2", 0.80),
		}
		results := partition(hits, 2, 1)
		require.Len(t, results.Documents, 2)
		require.Len(t, results.ChatHistory, 1)
		assert.Equal(t, "d1", results.Documents[0].ID)
		assert.Equal(t, "d2", results.Documents[1].ID)
		assert.Equal(t, "c1", results.ChatHistory[0].ID)
	})

	t.Run("discards overflow beyond budget", func(t *testing.T) {
		hits := []vectorstore.ScoredPoint{
			docHit("d1", 0.9),
			docHit("d2", 0.8),
			docHit("d3", 0.7),
			chatHit("c1", 0.6),
		}
		results := partition(hits, 2, 2)
		assert.Len(t, results.Documents, 2)
		assert.Len(t, results.ChatHistory, 1)
	})

	t.Run("missing type counts as document", func(t *testing.T) {
		hits := []vectorstore.ScoredPoint{
			{ID: "x", Score: 0.9, Payload: map[string]any{"text": "no type"}},
			{ID: "y", Score: 0.8, Payload: nil},
		}
		results := partition(hits, 5, 5)
		assert.Len(t, results.Documents, 2)
		assert.Empty(t, results.ChatHistory)
	})

	t.Run("preserves score order within partitions", func(t *testing.T) {
		hits := []vectorstore.ScoredPoint{
			chatHit("c1", 0.95),
			docHit("d1", 0.90),
			chatHit("c2", 0.85),
			docHit("d2", 0.80),
		}
		results := partition(hits, 7, 3)
		require.Len(t, results.Documents, 2)
		require.Len(t, results.ChatHistory, 2)
		assert.Greater(t, results.Documents[0].Score, results.Documents[1].Score)
		assert.Greater(t, results.ChatHistory[0].Score, results.ChatHistory[1].Score)
	})

	t.Run("empty input", func(t *testing.T) {
		results := partition(nil, 7, 3)
		assert.Empty(t, results.Documents)
		assert.Empty(t, results.ChatHistory)
	})
}

func TestRetriever_SearchCombined(t *testing.T) {
	searcher := &fakeSearcher{
		hits: []vectorstore.ScoredPoint{
			docHit("d1", 0.9),
			chatHit("c1", 0.8),
		},
	}
	r, err := New(searcher, Config{Limit: 10, DocWeight: 0.7, ChatWeight: 0.3})
	require.NoError(t, err)

	results, err := r.SearchCombined(context.Background(), "user_abc_documents", []float32{0.1, 0.2})
	require.NoError(t, err)
	assert.Len(t, results.Documents, 1)
	assert.Len(t, results.ChatHistory, 1)
	// Over-fetches twice the limit so partitioning has enough candidates.
	assert.Equal(t, uint64(20), searcher.lastLimit)
}

func TestRetriever_SearchCombined_Error(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	r, err := New(searcher, Config{Limit: 5, DocWeight: 0.7, ChatWeight: 0.3})
	require.NoError(t, err)

	_, err = r.SearchCombined(context.Background(), "user_abc_documents", []float32{0.1})
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{Limit: 10, DocWeight: 0.7, ChatWeight: 0.3}.Validate())
	assert.Error(t, Config{Limit: 0, DocWeight: 0.7, ChatWeight: 0.3}.Validate())
	assert.Error(t, Config{Limit: 10, DocWeight: -0.1, ChatWeight: 0.3}.Validate())
}
