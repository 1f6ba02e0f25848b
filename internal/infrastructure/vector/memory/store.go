package memory

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/luminahq/lumina/internal/core/domain"
)

// Store is an in-memory vector store for local development and tests. It
// ranks by cosine similarity and honors the same payload semantics as the
// qdrant client: fragment IDs key the points, metadata filters are exact
// matches.
type Store struct {
	vectorSize int

	mu        sync.RWMutex
	fragments map[string]domain.Fragment
}

func New(vectorSize int) (*Store, error) {
	if vectorSize <= 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "memory vector store",
			fmt.Errorf("vector size must be positive, got %d", vectorSize))
	}
	return &Store{
		vectorSize: vectorSize,
		fragments:  make(map[string]domain.Fragment),
	}, nil
}

func (s *Store) Upsert(_ context.Context, fragments []domain.Fragment) error {
	for i := range fragments {
		if len(fragments[i].Embedding) != s.vectorSize {
			return domain.WrapError(domain.ErrConfiguration, "vector dimensionality",
				fmt.Errorf("expected %d dimensions, got %d", s.vectorSize, len(fragments[i].Embedding)))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fragments {
		s.fragments[f.ID] = f
	}
	return nil
}

func (s *Store) Search(
	_ context.Context,
	queryVector []float32,
	topK int,
	filters map[string]any,
) ([]domain.QueryResult, error) {
	if len(queryVector) != s.vectorSize {
		return nil, domain.WrapError(domain.ErrConfiguration, "vector dimensionality",
			fmt.Errorf("expected %d dimensions, got %d", s.vectorSize, len(queryVector)))
	}
	if topK <= 0 {
		return nil, domain.WrapError(domain.ErrValidation, "memory search",
			fmt.Errorf("top_k must be positive, got %d", topK))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.QueryResult, 0, len(s.fragments))
	for _, f := range s.fragments {
		if !matchesFilters(f.Metadata, filters) {
			continue
		}
		results = append(results, domain.QueryResult{
			Fragment: f,
			Score:    cosineSimilarity(queryVector, f.Embedding),
		})
	}

	// Equal scores break ties on fragment ID so identical searches return
	// identical orderings regardless of map iteration.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Fragment.ID < results[j].Fragment.ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Store) HealthCheck(context.Context) error { return nil }

// Len reports the number of stored fragments. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fragments)
}

// matchesFilters compares with DeepEqual: filter values come straight from
// request JSON and may hold nested objects or arrays, which == would panic on.
func matchesFilters(metadata map[string]any, filters map[string]any) bool {
	for k, want := range filters {
		got, ok := metadata[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
