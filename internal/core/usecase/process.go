package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/luminahq/lumina/internal/core/domain"
	"github.com/luminahq/lumina/internal/core/ports"
)

// ProcessUseCase is the worker-side pipeline for an uploaded document:
// extract text from storage, ingest it into the vector store, and record the
// outcome on the document. A partial ingestion failure keeps the fragments
// already stored and records their count alongside the error.
type ProcessUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	ingestor  ports.Ingestor
}

func NewProcessUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	ingestor ports.Ingestor,
) *ProcessUseCase {
	return &ProcessUseCase{
		repo:      repo,
		extractor: extractor,
		ingestor:  ingestor,
	}
}

func (uc *ProcessUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusProcessing, 0, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	report, err := uc.runPipeline(ctx, doc)
	if err != nil {
		stored := 0
		if report != nil {
			stored = report.FragmentsStored
		}
		if failErr := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusFailed, stored, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusReady, report.FragmentsStored, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessUseCase) runPipeline(ctx context.Context, doc *domain.Document) (*domain.IngestReport, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return nil, domain.WrapError(domain.ErrValidation, "extract text", errors.New("empty extracted text"))
	}

	report, err := uc.ingestor.Ingest(ctx, doc.ID, text, documentMetadata(doc))
	if err != nil {
		return report, fmt.Errorf("ingest document: %w", err)
	}
	return report, nil
}

func documentMetadata(doc *domain.Document) map[string]any {
	out := make(map[string]any, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		out[k] = v
	}
	out["source_file"] = doc.Filename
	return out
}
