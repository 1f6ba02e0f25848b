package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/luminahq/lumina/internal/core/domain"
	"github.com/luminahq/lumina/internal/core/ports"
)

type embedderFake struct {
	calls  []string
	vector []float32
	err    error
}

func (f *embedderFake) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.vector != nil {
		return f.vector, nil
	}
	return []float32{0.1, 0.2}, nil
}

func (f *embedderFake) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type vectorFake struct {
	topK     int
	filters  map[string]any
	upserted []domain.Fragment
	results  []domain.QueryResult
	err      error
}

func (f *vectorFake) Upsert(_ context.Context, fragments []domain.Fragment) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, fragments...)
	return nil
}

func (f *vectorFake) Search(_ context.Context, _ []float32, topK int, filters map[string]any) ([]domain.QueryResult, error) {
	f.topK = topK
	f.filters = filters
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *vectorFake) HealthCheck(context.Context) error { return nil }

type generatorFake struct {
	prompt      string
	temperature float64
	err         error
}

func (f *generatorFake) Generate(_ context.Context, prompt string, temperature float64) (string, error) {
	f.prompt = prompt
	f.temperature = temperature
	if f.err != nil {
		return "", f.err
	}
	return "generated answer", nil
}

func newQueryUC(embedder *embedderFake, vector *vectorFake, generator *generatorFake) *QueryUseCase {
	return NewQueryUseCase(embedder, vector, generator, QueryConfig{
		DefaultTopK:        5,
		DefaultTemperature: 0.7,
		MaxContextTokens:   3000,
	})
}

func TestAskDefaultsTopK(t *testing.T) {
	vector := &vectorFake{results: []domain.QueryResult{
		{Fragment: domain.Fragment{ID: "f1", Text: "context"}, Score: 0.9},
	}}
	generator := &generatorFake{}
	uc := newQueryUC(&embedderFake{}, vector, generator)

	answer, err := uc.Ask(context.Background(), ports.QueryRequest{Question: "what is ML?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if vector.topK != 5 {
		t.Fatalf("expected default top_k=5, got %d", vector.topK)
	}
	if answer.Text != "generated answer" {
		t.Fatalf("unexpected answer %q", answer.Text)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].Text != "context" {
		t.Fatalf("unexpected sources %+v", answer.Sources)
	}
	if answer.LatencyMS < 0 {
		t.Fatalf("expected non-negative latency, got %f", answer.LatencyMS)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	uc := newQueryUC(&embedderFake{}, &vectorFake{}, &generatorFake{})
	_, err := uc.Ask(context.Background(), ports.QueryRequest{Question: "   "})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAskRejectsOutOfRangeTemperature(t *testing.T) {
	uc := newQueryUC(&embedderFake{}, &vectorFake{}, &generatorFake{})
	for _, temp := range []float64{-0.1, 2.5} {
		value := temp
		_, err := uc.Ask(context.Background(), ports.QueryRequest{Question: "q", Temperature: &value})
		if !domain.IsKind(err, domain.ErrValidation) {
			t.Fatalf("temperature %g: expected validation error, got %v", temp, err)
		}
	}
}

func TestAskTagsFailingStage(t *testing.T) {
	cases := []struct {
		name      string
		embedder  *embedderFake
		vector    *vectorFake
		generator *generatorFake
		stage     domain.Stage
	}{
		{
			name:      "embedding failure",
			embedder:  &embedderFake{err: errors.New("embed down")},
			vector:    &vectorFake{},
			generator: &generatorFake{},
			stage:     domain.StageEmbeddingQuery,
		},
		{
			name:      "retrieval failure",
			embedder:  &embedderFake{},
			vector:    &vectorFake{err: errors.New("store down")},
			generator: &generatorFake{},
			stage:     domain.StageRetrieving,
		},
		{
			name:      "generation failure",
			embedder:  &embedderFake{},
			vector:    &vectorFake{},
			generator: &generatorFake{err: errors.New("llm down")},
			stage:     domain.StageGenerating,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := newQueryUC(tc.embedder, tc.vector, tc.generator)
			_, err := uc.Ask(context.Background(), ports.QueryRequest{Question: "q"})
			var stageErr *domain.StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("expected stage error, got %v", err)
			}
			if stageErr.Stage != tc.stage {
				t.Fatalf("expected stage %s, got %s", tc.stage, stageErr.Stage)
			}
		})
	}
}

func TestAskEmptyRetrievalStillGenerates(t *testing.T) {
	generator := &generatorFake{}
	uc := newQueryUC(&embedderFake{}, &vectorFake{}, generator)

	answer, err := uc.Ask(context.Background(), ports.QueryRequest{Question: "anything?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(answer.Sources) != 0 {
		t.Fatalf("expected empty sources, got %+v", answer.Sources)
	}
	if generator.prompt == "" {
		t.Fatalf("expected generation to run on empty retrieval")
	}
	if !strings.Contains(generator.prompt, "general knowledge") {
		t.Fatalf("expected fallback prompt, got:\n%s", generator.prompt)
	}
}

func TestAskPassesFiltersAndTemperature(t *testing.T) {
	vector := &vectorFake{}
	generator := &generatorFake{}
	uc := newQueryUC(&embedderFake{}, vector, generator)

	temp := 0.2
	_, err := uc.Ask(context.Background(), ports.QueryRequest{
		Question:    "q",
		TopK:        3,
		Temperature: &temp,
		Filters:     map[string]any{"source_file": "a.txt"},
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if vector.topK != 3 {
		t.Fatalf("expected top_k=3, got %d", vector.topK)
	}
	if vector.filters["source_file"] != "a.txt" {
		t.Fatalf("expected filters forwarded, got %+v", vector.filters)
	}
	if generator.temperature != 0.2 {
		t.Fatalf("expected temperature forwarded, got %g", generator.temperature)
	}
}

func TestAskStopsAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	embedder := &embedderFake{}
	vector := &vectorFake{}
	uc := newQueryUC(embedder, vector, &generatorFake{})

	cancel()
	_, err := uc.Ask(ctx, ports.QueryRequest{Question: "q"})
	if err == nil {
		t.Fatalf("expected error after cancellation")
	}
	if vector.topK != 0 {
		t.Fatalf("expected no retrieval call after cancellation")
	}
}
