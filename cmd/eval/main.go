// Command eval replays a labeled question set through the retrieval pipeline
// and reports precision@{1,3,5} plus retrieval latency.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/luminahq/lumina/internal/bootstrap"
	"github.com/luminahq/lumina/internal/config"
	"github.com/luminahq/lumina/internal/infrastructure/dataset"
	"github.com/luminahq/lumina/internal/observability/logging"
)

func main() {
	datasetPath := flag.String("dataset", "", "path to the CSV dataset (question,expected_ids)")
	outputPath := flag.String("output", "", "report destination; stdout when empty")
	topK := flag.Int("top-k", 5, "retrieval depth per question")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger("eval", cfg.LogLevel))

	if *datasetPath == "" {
		slog.Error("dataset_required", "hint", "pass --dataset path/to/questions.csv")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewEval(cfg)
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}

	examples, err := dataset.Load(*datasetPath)
	if err != nil {
		slog.Error("dataset_error", "path", *datasetPath, "error", err)
		os.Exit(1)
	}

	report, err := app.EvalUC.Evaluate(ctx, examples, *topK)
	if err != nil {
		slog.Error("evaluation_error", "error", err)
		os.Exit(1)
	}

	if err := dataset.WriteReport(*outputPath, report); err != nil {
		slog.Error("report_error", "error", err)
		os.Exit(1)
	}

	slog.Info("evaluation_completed",
		"questions", report.TotalQuestions,
		"failed", report.FailedQueries,
		"precision_at_1", report.PrecisionAt1,
		"precision_at_3", report.PrecisionAt3,
		"precision_at_5", report.PrecisionAt5,
		"avg_retrieval_latency_ms", report.AvgRetrievalLatencyMS,
	)
}
