package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/luminahq/lumina/internal/core/domain"
	"github.com/luminahq/lumina/internal/core/ports"
)

// precisionKs are the cutoffs reported by every evaluation run.
var precisionKs = []int{1, 3, 5}

// EvaluateUseCase replays labeled questions through retrieval only, so the
// scores isolate retrieval quality from generation variance.
type EvaluateUseCase struct {
	embedder ports.Embedder
	vectorDB ports.VectorStore
}

func NewEvaluateUseCase(embedder ports.Embedder, vectorDB ports.VectorStore) *EvaluateUseCase {
	return &EvaluateUseCase{
		embedder: embedder,
		vectorDB: vectorDB,
	}
}

func (uc *EvaluateUseCase) Evaluate(
	ctx context.Context,
	examples []domain.EvalExample,
	topK int,
) (*domain.EvalReport, error) {
	if len(examples) == 0 {
		return nil, domain.WrapError(domain.ErrValidation, "evaluate", errors.New("question set is empty"))
	}

	maxK := precisionKs[len(precisionKs)-1]
	if topK < maxK {
		topK = maxK
	}

	report := &domain.EvalReport{
		TotalQuestions: len(examples),
		Timestamp:      time.Now().UTC(),
	}

	var latencySum float64
	precisionSums := make(map[int]float64, len(precisionKs))

	for i, example := range examples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := uc.runExample(ctx, example, topK)
		report.Results = append(report.Results, result)

		if result.Err != "" {
			report.FailedQueries++
			slog.Error("evaluation_example_failed",
				"index", i,
				"question_length", len(example.Question),
				"error", result.Err,
			)
			continue
		}

		report.SuccessfulQueries++
		latencySum += result.LatencyMS
		for _, k := range precisionKs {
			precisionSums[k] += result.PrecisionAtK[k]
		}
	}

	if report.SuccessfulQueries > 0 {
		n := float64(report.SuccessfulQueries)
		report.PrecisionAt1 = precisionSums[1] / n
		report.PrecisionAt3 = precisionSums[3] / n
		report.PrecisionAt5 = precisionSums[5] / n
		report.AvgRetrievalLatencyMS = latencySum / n
	}

	slog.Info("evaluation_completed",
		"total_questions", report.TotalQuestions,
		"successful", report.SuccessfulQueries,
		"failed", report.FailedQueries,
		"precision_at_5", report.PrecisionAt5,
	)
	return report, nil
}

func (uc *EvaluateUseCase) runExample(ctx context.Context, example domain.EvalExample, topK int) domain.EvalResult {
	result := domain.EvalResult{
		Question:     example.Question,
		ExpectedIDs:  sortedIDs(example.ExpectedIDs),
		PrecisionAtK: make(map[int]float64, len(precisionKs)),
	}

	start := time.Now()
	vector, err := uc.embedder.Embed(ctx, example.Question)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	hits, err := uc.vectorDB.Search(ctx, vector, topK, nil)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	result.LatencyMS = float64(time.Since(start).Microseconds()) / 1000.0

	result.RetrievedIDs = make([]string, 0, len(hits))
	for _, hit := range hits {
		result.RetrievedIDs = append(result.RetrievedIDs, hit.Fragment.ID)
	}
	for _, k := range precisionKs {
		result.PrecisionAtK[k] = PrecisionAtK(result.RetrievedIDs, example.ExpectedIDs, k)
	}
	return result
}

// PrecisionAtK is |retrieved_top_K ∩ expected| / K.
func PrecisionAtK(retrieved []string, expected map[string]struct{}, k int) float64 {
	if len(retrieved) == 0 || len(expected) == 0 || k <= 0 {
		return 0
	}
	top := retrieved
	if len(top) > k {
		top = top[:k]
	}
	hits := 0
	for _, id := range top {
		if _, ok := expected[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

func sortedIDs(ids map[string]struct{}) []string {
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
