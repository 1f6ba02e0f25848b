package ports

import (
	"context"
	"io"

	"github.com/luminahq/lumina/internal/core/domain"
)

// QueryRequest is the validated inbound shape for a RAG query.
type QueryRequest struct {
	Question    string
	TopK        int
	Temperature *float64
	Filters     map[string]any
}

// QueryService answers questions through the full RAG pipeline.
type QueryService interface {
	Ask(ctx context.Context, req QueryRequest) (*domain.Answer, error)
}

// Ingestor stores raw text as retrievable fragments. It fails fast on the
// first chunk that cannot be embedded or stored; the report counts the
// fragments already written at that point.
type Ingestor interface {
	Ingest(ctx context.Context, documentID, text string, metadata map[string]any) (*domain.IngestReport, error)
}

// DocumentUploader accepts a source file for asynchronous ingestion.
type DocumentUploader interface {
	Upload(ctx context.Context, filename, mimeType string, metadata map[string]any, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor runs the ingestion pipeline for an uploaded document.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// Evaluator replays a labeled question set through retrieval and scores it.
type Evaluator interface {
	Evaluate(ctx context.Context, examples []domain.EvalExample, topK int) (*domain.EvalReport, error)
}
