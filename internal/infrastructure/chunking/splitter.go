// Package chunking splits raw document text into overlapping fragments
// sized for embedding and context windows.
package chunking

import (
	"fmt"
	"strings"

	"github.com/luminahq/lumina/internal/core/domain"
)

type Splitter struct {
	maxSize int
	overlap int
}

// NewSplitter builds a splitter with the given fragment size and overlap,
// both in characters. Overlap must stay below the fragment size or chunking
// could never advance.
func NewSplitter(maxSize, overlap int) (*Splitter, error) {
	if maxSize <= 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "chunker",
			fmt.Errorf("max chunk size must be positive, got %d", maxSize))
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, domain.WrapError(domain.ErrConfiguration, "chunker",
			fmt.Errorf("overlap must satisfy 0 <= overlap < max size, got overlap=%d max=%d", overlap, maxSize))
	}
	return &Splitter{maxSize: maxSize, overlap: overlap}, nil
}

// Split normalizes whitespace and walks the text, closing each chunk at the
// last sentence boundary inside the window, falling back to the last word
// boundary, and finally to a hard cut for a single run-on token. The next
// chunk re-includes the trailing overlap characters of the previous one.
// Same input always yields the same output; empty input yields no chunks.
func (s *Splitter) Split(text string) []string {
	runes := []rune(normalizeWhitespace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.maxSize {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + s.maxSize
		if end >= len(runes) {
			end = len(runes)
		} else if se := lastSentenceEnd(runes, start, end); se > start {
			end = se + 1
		} else if we := lastSpace(runes, start, end); we > start {
			end = we
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(runes) {
			break
		}

		next := end - s.overlap
		if next <= start {
			// A short sentence-aligned chunk must not move the cursor
			// backwards, or the walk would never terminate.
			next = end
		}
		start = next
	}
	return chunks
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// lastSentenceEnd returns the index of the last '.', '!' or '?' in
// [start, end) that is followed by a space, or -1.
func lastSentenceEnd(runes []rune, start, end int) int {
	for i := end - 2; i >= start; i-- {
		switch runes[i] {
		case '.', '!', '?':
			if runes[i+1] == ' ' {
				return i
			}
		}
	}
	return -1
}

func lastSpace(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}
