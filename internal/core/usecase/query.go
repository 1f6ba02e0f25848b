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
	"github.com/luminahq/lumina/internal/core/prompt"
)

type QueryConfig struct {
	DefaultTopK        int
	DefaultTemperature float64
	MaxContextTokens   int
}

// QueryUseCase runs the full RAG pipeline for one question:
// embed the query, retrieve fragments, build the prompt, generate the
// answer. The stages always run in this order; empty retrieval does not
// skip generation, it only changes the prompt. Any stage failure
// short-circuits with the failing stage attached to the error.
type QueryUseCase struct {
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	generator ports.Generator
	cfg       QueryConfig
}

func NewQueryUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	generator ports.Generator,
	cfg QueryConfig,
) *QueryUseCase {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = 3000
	}
	return &QueryUseCase{
		embedder:  embedder,
		vectorDB:  vectorDB,
		generator: generator,
		cfg:       cfg,
	}
}

func (uc *QueryUseCase) Ask(ctx context.Context, req ports.QueryRequest) (*domain.Answer, error) {
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrValidation, "ask", errors.New("question is required"))
	}
	topK := req.TopK
	if topK <= 0 {
		topK = uc.cfg.DefaultTopK
	}
	temperature := uc.cfg.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if temperature < 0 || temperature > 2 {
		return nil, domain.WrapError(domain.ErrValidation, "ask",
			fmt.Errorf("temperature must be within [0, 2], got %g", temperature))
	}

	queryVector, err := uc.embedder.Embed(ctx, question)
	if err != nil {
		return nil, domain.FailAtStage(domain.StageEmbeddingQuery, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, domain.FailAtStage(domain.StageRetrieving, err)
	}
	results, err := uc.vectorDB.Search(ctx, queryVector, topK, req.Filters)
	if err != nil {
		return nil, domain.FailAtStage(domain.StageRetrieving, err)
	}

	promptText := prompt.Build(question, results, uc.cfg.MaxContextTokens)

	if err := ctx.Err(); err != nil {
		return nil, domain.FailAtStage(domain.StageGenerating, err)
	}
	answerText, err := uc.generator.Generate(ctx, promptText, temperature)
	if err != nil {
		return nil, domain.FailAtStage(domain.StageGenerating, err)
	}

	sources := make([]domain.Source, 0, len(results))
	for _, res := range results {
		sources = append(sources, domain.Source{
			Text:     res.Fragment.Text,
			Score:    res.Score,
			Metadata: res.Fragment.Metadata,
		})
	}

	latencyMS := float64(time.Since(start).Microseconds()) / 1000.0
	slog.Info("rag_query_completed",
		"question_length", len(question),
		"top_k", topK,
		"num_sources", len(sources),
		"latency_ms", latencyMS,
	)

	return &domain.Answer{
		Text:      answerText,
		Sources:   sources,
		LatencyMS: latencyMS,
	}, nil
}
