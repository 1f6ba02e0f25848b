package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/luminahq/lumina/internal/core/domain"
	"github.com/luminahq/lumina/internal/core/ports"
)

// IngestUseCase turns raw text into stored fragments: chunk, embed, upsert.
// The first failing chunk aborts the rest of the call; fragments already
// upserted stay stored and the report says how many. Fragment ids are
// derived from the document id and chunk position, so re-running ingestion
// for the same document overwrites instead of duplicating.
type IngestUseCase struct {
	chunker  ports.Chunker
	embedder ports.Embedder
	vectorDB ports.VectorStore
}

func NewIngestUseCase(
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
) *IngestUseCase {
	return &IngestUseCase{
		chunker:  chunker,
		embedder: embedder,
		vectorDB: vectorDB,
	}
}

func (uc *IngestUseCase) Ingest(
	ctx context.Context,
	documentID, text string,
	metadata map[string]any,
) (*domain.IngestReport, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "ingest", errors.New("document id is required"))
	}

	report := &domain.IngestReport{DocumentID: documentID}

	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		slog.Warn("ingest_no_chunks", "document_id", documentID)
		return report, nil
	}

	ingestedAt := time.Now().UTC().Format(time.RFC3339)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("ingest aborted at fragment %d/%d: %w", i, len(chunks), err)
		}

		vector, err := uc.embedder.Embed(ctx, chunk)
		if err != nil {
			return report, fmt.Errorf("embed fragment %d/%d: %w", i, len(chunks), err)
		}

		fragment := domain.Fragment{
			ID:         domain.FragmentID(documentID, i),
			DocumentID: documentID,
			Index:      i,
			Text:       chunk,
			Embedding:  vector,
			Metadata:   fragmentMetadata(metadata, i, len(chunks), ingestedAt),
		}
		if err := uc.vectorDB.Upsert(ctx, []domain.Fragment{fragment}); err != nil {
			return report, fmt.Errorf("store fragment %d/%d: %w", i, len(chunks), err)
		}

		report.FragmentsStored++
		report.FragmentIDs = append(report.FragmentIDs, fragment.ID)
	}

	slog.Info("ingest_completed",
		"document_id", documentID,
		"fragments_stored", report.FragmentsStored,
	)
	return report, nil
}

func fragmentMetadata(base map[string]any, index, total int, ingestedAt string) map[string]any {
	out := make(map[string]any, len(base)+3)
	for k, v := range base {
		out[k] = v
	}
	out["chunk_index"] = index
	out["total_chunks"] = total
	out["ingested_at"] = ingestedAt
	return out
}
