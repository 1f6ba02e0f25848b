// Package prompt assembles the generation prompt from a question and the
// fragments retrieval produced, under a context token budget.
package prompt

import (
	"fmt"
	"strings"

	"github.com/luminahq/lumina/internal/core/domain"
)

const (
	// Rough character-to-token ratio used when no exact tokenizer is
	// available. Matches the common ~4 chars/token heuristic.
	charsPerToken = 4

	noContextInstruction = "No context documents were retrieved. Answer from general knowledge if you can, otherwise say that you do not have enough information."
)

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}

// Build produces the generation prompt. Fragments are included in the
// ranking order given, each labeled with its source, until adding the next
// fragment would exceed maxContextTokens; the list is truncated rather than
// any fragment cut mid-text. Identical inputs yield an identical prompt.
func Build(question string, results []domain.QueryResult, maxContextTokens int) string {
	var context strings.Builder
	included := 0
	usedTokens := 0

	for i, res := range results {
		tokens := EstimateTokens(res.Fragment.Text)
		if included > 0 && usedTokens+tokens > maxContextTokens {
			break
		}
		if included == 0 && tokens > maxContextTokens {
			break
		}
		if included > 0 {
			context.WriteString("\n\n")
		}
		context.WriteString(fmt.Sprintf("[Source %d] %s\n%s", i+1, sourceLabel(res.Fragment), res.Fragment.Text))
		usedTokens += tokens
		included++
	}

	if included == 0 {
		return fmt.Sprintf(`You are a helpful assistant. %s

User Question: %s

Answer:`, noContextInstruction, question)
	}

	return fmt.Sprintf(`You are a helpful assistant. Answer the user's question based on the provided context documents. If the context does not contain enough information to answer the question, say so honestly.

Context Documents:
%s

User Question: %s

Answer:`, context.String(), question)
}

func sourceLabel(f domain.Fragment) string {
	if file, ok := f.Metadata["source_file"].(string); ok && file != "" {
		return fmt.Sprintf("file=%s fragment=%d", file, f.Index)
	}
	return fmt.Sprintf("document=%s fragment=%d", f.DocumentID, f.Index)
}
