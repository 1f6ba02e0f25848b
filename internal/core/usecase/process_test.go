package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/luminahq/lumina/internal/core/domain"
)

type repoFake struct {
	doc      *domain.Document
	getErr   error
	statuses []domain.DocumentStatus
	counts   []int
	messages []string
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	f.doc = doc
	return nil
}

func (f *repoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.doc, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, fragmentsStored int, errMessage string) error {
	f.statuses = append(f.statuses, status)
	f.counts = append(f.counts, fragmentsStored)
	f.messages = append(f.messages, errMessage)
	return nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (string, error) {
	return f.text, f.err
}

type ingestorFake struct {
	report   *domain.IngestReport
	err      error
	metadata map[string]any
}

func (f *ingestorFake) Ingest(_ context.Context, documentID, _ string, metadata map[string]any) (*domain.IngestReport, error) {
	f.metadata = metadata
	if f.report == nil {
		f.report = &domain.IngestReport{DocumentID: documentID}
	}
	return f.report, f.err
}

func testDocument() *domain.Document {
	return &domain.Document{
		ID:       "doc-1",
		Filename: "notes.txt",
		Metadata: map[string]any{"project": "lumina"},
		Status:   domain.StatusUploaded,
	}
}

func TestProcessMarksReadyWithFragmentCount(t *testing.T) {
	repo := &repoFake{doc: testDocument()}
	ingestor := &ingestorFake{report: &domain.IngestReport{DocumentID: "doc-1", FragmentsStored: 4}}
	uc := NewProcessUseCase(repo, &extractorFake{text: "some text"}, ingestor)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	if len(repo.statuses) != 2 || repo.statuses[0] != domain.StatusProcessing || repo.statuses[1] != domain.StatusReady {
		t.Fatalf("unexpected status transitions: %v", repo.statuses)
	}
	if repo.counts[1] != 4 {
		t.Fatalf("expected fragment count recorded, got %d", repo.counts[1])
	}
	if ingestor.metadata["source_file"] != "notes.txt" {
		t.Fatalf("expected source_file metadata, got %+v", ingestor.metadata)
	}
	if ingestor.metadata["project"] != "lumina" {
		t.Fatalf("expected document metadata forwarded, got %+v", ingestor.metadata)
	}
}

func TestProcessMarksFailedWithPartialCount(t *testing.T) {
	repo := &repoFake{doc: testDocument()}
	ingestor := &ingestorFake{
		report: &domain.IngestReport{DocumentID: "doc-1", FragmentsStored: 2},
		err:    errors.New("embed fragment 2/5: boom"),
	}
	uc := NewProcessUseCase(repo, &extractorFake{text: "some text"}, ingestor)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	last := len(repo.statuses) - 1
	if repo.statuses[last] != domain.StatusFailed {
		t.Fatalf("expected failed status, got %v", repo.statuses)
	}
	if repo.counts[last] != 2 {
		t.Fatalf("expected partial count persisted, got %d", repo.counts[last])
	}
	if repo.messages[last] == "" {
		t.Fatalf("expected error message persisted")
	}
}

func TestProcessEmptyExtractionFails(t *testing.T) {
	repo := &repoFake{doc: testDocument()}
	uc := NewProcessUseCase(repo, &extractorFake{text: ""}, &ingestorFake{})

	err := uc.ProcessByID(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	last := len(repo.statuses) - 1
	if repo.statuses[last] != domain.StatusFailed {
		t.Fatalf("expected failed status, got %v", repo.statuses)
	}
}
