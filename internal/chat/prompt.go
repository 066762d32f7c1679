// Package chat answers user questions over their documents with
// retrieval-augmented generation.
package chat

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/documind/internal/retriever"
)

const systemInstructions = "You are a helpful AI assistant that answers questions based on the provided context. " +
	"Use the context below to answer the user's question accurately. " +
	"If the answer cannot be found in the context, say so politely and provide general information if appropriate. " +
	"Always cite which document the information comes from when possible."

// buildContext renders retrieval results into the prompt context: document
// chunks first, each labeled with its source, then prior conversation turns
// in a separate block.
func buildContext(results retriever.Results) string {
	if len(results.Documents) == 0 && len(results.ChatHistory) == 0 {
		return "No relevant documents found."
	}

	var b strings.Builder
	for _, hit := range results.Documents {
		filename, _ := hit.Payload["filename"].(string)
		index := chunkIndex(hit.Payload)
		text, _ := hit.Payload["text"].(string)
		fmt.Fprintf(&b, "[Document: %s, Chunk %d]\n%s\n\n", filename, index, text)
	}
	for i, hit := range results.ChatHistory {
		text, _ := hit.Payload["text"].(string)
		fmt.Fprintf(&b, "[Previous conversation %d]: %s\n", i+1, text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// systemPrompt combines the instructions with the rendered context.
func systemPrompt(context string) string {
	return systemInstructions + "\n\nContext:\n" + context
}

// chunkIndex reads the chunk index out of a payload. Qdrant returns
// integers as int64; fakes and older points may carry int or float64.
func chunkIndex(payload map[string]any) int {
	switch v := payload["chunk_index"].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
