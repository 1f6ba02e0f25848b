package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/luminahq/lumina/internal/core/domain"
)

type chunkerFake struct{}

// Split cuts on '|' so tests control chunk boundaries exactly.
func (chunkerFake) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.Split(text, "|")
}

type recordingStore struct {
	byID    map[string]domain.Fragment
	order   []string
	failAt  int // fail the upsert with this ordinal (1-based), 0 disables
	upserts int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{byID: make(map[string]domain.Fragment)}
}

func (s *recordingStore) Upsert(_ context.Context, fragments []domain.Fragment) error {
	s.upserts++
	if s.failAt > 0 && s.upserts >= s.failAt {
		return domain.WrapError(domain.ErrRetrievalUnavailable, "upsert", errors.New("connection refused"))
	}
	for _, f := range fragments {
		if _, seen := s.byID[f.ID]; !seen {
			s.order = append(s.order, f.ID)
		}
		s.byID[f.ID] = f
	}
	return nil
}

func (s *recordingStore) Search(context.Context, []float32, int, map[string]any) ([]domain.QueryResult, error) {
	return nil, nil
}

func (s *recordingStore) HealthCheck(context.Context) error { return nil }

func TestIngestStoresAllFragments(t *testing.T) {
	store := newRecordingStore()
	uc := NewIngestUseCase(chunkerFake{}, &embedderFake{}, store)

	report, err := uc.Ingest(context.Background(), "doc-1", "alpha|beta|gamma", map[string]any{"source_file": "a.txt"})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report.FragmentsStored != 3 {
		t.Fatalf("expected 3 fragments stored, got %d", report.FragmentsStored)
	}
	if len(store.byID) != 3 {
		t.Fatalf("expected 3 records, got %d", len(store.byID))
	}
	for i, id := range report.FragmentIDs {
		frag := store.byID[id]
		if frag.Index != i {
			t.Fatalf("fragment %s: expected index %d, got %d", id, i, frag.Index)
		}
		if frag.Metadata["source_file"] != "a.txt" {
			t.Fatalf("expected caller metadata preserved, got %+v", frag.Metadata)
		}
		if frag.Metadata["chunk_index"] != i {
			t.Fatalf("expected chunk_index metadata, got %+v", frag.Metadata)
		}
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	store := newRecordingStore()
	uc := NewIngestUseCase(chunkerFake{}, &embedderFake{}, store)

	first, err := uc.Ingest(context.Background(), "doc-1", "alpha|beta", nil)
	if err != nil {
		t.Fatalf("first Ingest() error = %v", err)
	}
	second, err := uc.Ingest(context.Background(), "doc-1", "alpha|beta", nil)
	if err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}

	if len(first.FragmentIDs) != len(second.FragmentIDs) {
		t.Fatalf("expected same fragment count, got %d vs %d", len(first.FragmentIDs), len(second.FragmentIDs))
	}
	for i := range first.FragmentIDs {
		if first.FragmentIDs[i] != second.FragmentIDs[i] {
			t.Fatalf("fragment id %d changed between runs: %s vs %s", i, first.FragmentIDs[i], second.FragmentIDs[i])
		}
	}
	if len(store.byID) != 2 {
		t.Fatalf("expected overwrite not duplication, got %d records", len(store.byID))
	}
}

func TestIngestFailsFastAndReportsPartialCount(t *testing.T) {
	store := newRecordingStore()
	store.failAt = 3
	embedder := &embedderFake{}
	uc := NewIngestUseCase(chunkerFake{}, embedder, store)

	report, err := uc.Ingest(context.Background(), "doc-1", "a|b|c|d|e", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable kind, got %v", err)
	}
	if report.FragmentsStored != 2 {
		t.Fatalf("expected 2 fragments stored before failure, got %d", report.FragmentsStored)
	}
	// Fail-fast: chunks after the failing one are never embedded.
	if len(embedder.calls) != 3 {
		t.Fatalf("expected 3 embed calls, got %d", len(embedder.calls))
	}
}

func TestIngestEmbeddingFailureAbortsRemainingChunks(t *testing.T) {
	store := newRecordingStore()
	uc := NewIngestUseCase(chunkerFake{}, &embedderFake{err: errors.New("embed down")}, store)

	report, err := uc.Ingest(context.Background(), "doc-1", "a|b|c", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if report.FragmentsStored != 0 {
		t.Fatalf("expected 0 fragments stored, got %d", report.FragmentsStored)
	}
	if store.upserts != 0 {
		t.Fatalf("expected no upserts after embed failure, got %d", store.upserts)
	}
}

func TestIngestEmptyTextYieldsEmptyReport(t *testing.T) {
	uc := NewIngestUseCase(chunkerFake{}, &embedderFake{}, newRecordingStore())
	report, err := uc.Ingest(context.Background(), "doc-1", "   ", nil)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report.FragmentsStored != 0 {
		t.Fatalf("expected empty report, got %d", report.FragmentsStored)
	}
}

func TestIngestRequiresDocumentID(t *testing.T) {
	uc := NewIngestUseCase(chunkerFake{}, &embedderFake{}, newRecordingStore())
	_, err := uc.Ingest(context.Background(), "  ", "text", nil)
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFragmentIDDeterministic(t *testing.T) {
	a := domain.FragmentID("doc-1", 0)
	b := domain.FragmentID("doc-1", 0)
	c := domain.FragmentID("doc-1", 1)
	d := domain.FragmentID("doc-2", 0)
	if a != b {
		t.Fatalf("expected deterministic id, got %s vs %s", a, b)
	}
	if a == c || a == d {
		t.Fatalf("expected distinct ids per document/index, got %s %s %s", a, c, d)
	}
}
