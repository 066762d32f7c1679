// Package chunker splits extracted document text into bounded,
// overlapping segments suitable for embedding.
package chunker

import "strings"

const (
	// sentenceLookback is how far behind the tentative cut point we search
	// for a sentence terminator before falling back to whitespace.
	sentenceLookback = 100

	// wordLookback is how far behind the tentative cut point we search for
	// whitespace when no sentence terminator was found.
	wordLookback = 50
)

// Chunk is a bounded segment of document text with its position index.
type Chunk struct {
	Index int
	Text  string
}

// Split cuts text into chunks of at most size bytes, each overlapping its
// predecessor by up to overlap bytes.
//
// The tentative cut point is start+size. When it lands strictly inside the
// text, the cut is snapped backward to just after the nearest sentence
// terminator (. ! ? or newline) within sentenceLookback bytes, else to just
// after the nearest whitespace within wordLookback bytes, else left as a
// hard cut. Chunks are trimmed; empty chunks are dropped.
//
// Callers must keep overlap < size, otherwise the cursor cannot make
// forward progress. Split clamps a non-positive stride to one byte so the
// loop always terminates.
func Split(text string, size, overlap int) []Chunk {
	if text == "" || size <= 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	length := len(text)

	for start < length {
		end := start + size
		if end < length {
			end = snapToBoundary(text, start, end)
		} else {
			end = length
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: chunk})
		}

		if end >= length {
			break
		}
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// snapToBoundary moves the cut point end backward to a sentence or word
// boundary, never crossing start. Returns the adjusted end.
func snapToBoundary(text string, start, end int) int {
	low := end - sentenceLookback
	if low < start {
		low = start
	}
	for i := end; i >= low; i-- {
		switch text[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}

	low = end - wordLookback
	if low < start {
		low = start
	}
	for i := end; i >= low; i-- {
		if isSpace(text[i]) {
			return i + 1
		}
	}

	return end
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// Texts returns just the chunk texts, in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
