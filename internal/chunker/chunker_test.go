package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, Split("", 1000, 200))
	assert.Nil(t, Split("text", 0, 0))
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	text := "A short paragraph that fits in one chunk."
	chunks := Split(text, 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, text, chunks[0].Text)
}

func TestSplit_SnapsToSentenceBoundary(t *testing.T) {
	// The tentative cut at byte 50 lands mid-second-sentence; the nearest
	// period behind it ends the first sentence.
	text := "This is the first sentence. This is the second sentence that keeps going for a while."
	chunks := Split(text, 50, 10)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "This is the first sentence.", chunks[0].Text)
}

func TestSplit_SnapsToWhitespaceWithoutSentenceEnd(t *testing.T) {
	// No terminator anywhere, so the cut snaps back to a space and no
	// chunk splits a word in half.
	text := strings.Repeat("word ", 40)
	chunks := Split(text, 50, 10)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		for _, w := range strings.Fields(c.Text) {
			assert.Equal(t, "word", w)
		}
	}
}

func TestSplit_HardCutWhenNoBoundary(t *testing.T) {
	text := strings.Repeat("a", 250)
	chunks := Split(text, 100, 20)
	require.NotEmpty(t, chunks)
	assert.Len(t, chunks[0].Text, 100)
}

func TestSplit_Overlap(t *testing.T) {
	text := strings.Repeat("b", 300)
	chunks := Split(text, 100, 20)
	require.GreaterOrEqual(t, len(chunks), 3)
	// Each successor starts 80 bytes after its predecessor, so consecutive
	// chunks share 20 bytes.
	assert.Len(t, chunks[1].Text, 100)
}

func TestSplit_IndicesSequential(t *testing.T) {
	text := strings.Repeat("Sentence here. ", 100)
	chunks := Split(text, 100, 20)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestSplit_ProgressWithDegenerateOverlap(t *testing.T) {
	// overlap == size would freeze the cursor without the stride clamp.
	text := strings.Repeat("c", 50)
	chunks := Split(text, 10, 10)
	assert.NotEmpty(t, chunks)
}

func TestSplit_ChunksAreTrimmed(t *testing.T) {
	text := "First sentence.    \n\n   Second sentence after whitespace."
	chunks := Split(text, 20, 5)
	for _, c := range chunks {
		assert.Equal(t, strings.TrimSpace(c.Text), c.Text)
		assert.NotEmpty(t, c.Text)
	}
}

func TestSplit_CoversAllContent(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50)
	chunks := Split(text, 200, 40)
	require.NotEmpty(t, chunks)
	// Last chunk reaches the end of the text.
	last := chunks[len(chunks)-1].Text
	assert.True(t, strings.HasSuffix(strings.TrimSpace(text), last))
}

func TestTexts(t *testing.T) {
	chunks := []Chunk{{Index: 0, Text: "a"}, {Index: 1, Text: "b"}}
	assert.Equal(t, []string{"a", "b"}, Texts(chunks))
	assert.Empty(t, Texts(nil))
}
