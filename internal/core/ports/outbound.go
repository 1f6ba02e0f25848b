package ports

import (
	"context"
	"io"

	"github.com/luminahq/lumina/internal/core/domain"
)

// Embedder converts text into fixed-dimension vectors. EmbedBatch preserves
// input order: output i is the embedding of texts[i].
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a natural-language answer from an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// VectorStore persists fragments and performs k-nearest-neighbor search.
// Ranking is delegated to the underlying index, never recomputed locally.
type VectorStore interface {
	Upsert(ctx context.Context, fragments []domain.Fragment) error
	Search(ctx context.Context, queryVector []float32, topK int, filters map[string]any) ([]domain.QueryResult, error)
	HealthCheck(ctx context.Context) error
}

// Chunker splits normalized text into overlapping fragments.
type Chunker interface {
	Split(text string) []string
}

// TextExtractor extracts plain text from a stored source document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// DocumentRepository persists document lifecycle state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, fragmentsStored int, errMessage string) error
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, documentID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
}
