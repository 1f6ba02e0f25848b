// Package bootstrap wires infrastructure to use cases for the three
// binaries. The api and worker share the full graph; the eval tool gets the
// retrieval slice only.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/luminahq/lumina/internal/config"
	"github.com/luminahq/lumina/internal/core/ports"
	"github.com/luminahq/lumina/internal/core/usecase"
	"github.com/luminahq/lumina/internal/infrastructure/chunking"
	"github.com/luminahq/lumina/internal/infrastructure/extractor/localfile"
	"github.com/luminahq/lumina/internal/infrastructure/llm/ollama"
	"github.com/luminahq/lumina/internal/infrastructure/llm/openai"
	"github.com/luminahq/lumina/internal/infrastructure/queue/nats"
	"github.com/luminahq/lumina/internal/infrastructure/repository/postgres"
	"github.com/luminahq/lumina/internal/infrastructure/resilience"
	"github.com/luminahq/lumina/internal/infrastructure/storage/localfs"
	"github.com/luminahq/lumina/internal/infrastructure/vector/memory"
	"github.com/luminahq/lumina/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue  ports.MessageQueue
	Repo   ports.DocumentRepository
	Vector ports.VectorStore

	UploadUC  ports.DocumentUploader
	ProcessUC ports.DocumentProcessor
	QueryUC   ports.QueryService
	IngestUC  ports.Ingestor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := newExecutor(cfg)
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder, generator, err := newLLM(cfg, executor)
	if err != nil {
		return nil, err
	}

	vectorStore, err := newVectorStore(cfg)
	if err != nil {
		return nil, err
	}

	chunker, err := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("init chunker: %w", err)
	}
	extractor := localfile.NewExtractor(storage)

	ingestUC := usecase.NewIngestUseCase(chunker, embedder, vectorStore)
	uploadUC := usecase.NewUploadUseCase(repo, storage, queue)
	processUC := usecase.NewProcessUseCase(repo, extractor, ingestUC)
	queryUC := usecase.NewQueryUseCase(embedder, vectorStore, generator, usecase.QueryConfig{
		DefaultTopK:        cfg.RAGTopK,
		DefaultTemperature: cfg.RAGTemperature,
		MaxContextTokens:   cfg.RAGMaxContextTokens,
	})

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,
		Vector: vectorStore,

		UploadUC:  uploadUC,
		ProcessUC: processUC,
		QueryUC:   queryUC,
		IngestUC:  ingestUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// EvalApp carries just what the evaluation tool needs: the retrieval side of
// the pipeline.
type EvalApp struct {
	Config config.Config
	EvalUC ports.Evaluator
}

func NewEval(cfg config.Config) (*EvalApp, error) {
	executor := newExecutor(cfg)
	embedder, _, err := newLLM(cfg, executor)
	if err != nil {
		return nil, err
	}
	vectorStore, err := newVectorStore(cfg)
	if err != nil {
		return nil, err
	}

	return &EvalApp{
		Config: cfg,
		EvalUC: usecase.NewEvaluateUseCase(embedder, vectorStore),
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newExecutor(cfg config.Config) *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.RetryInitialBackoffSec) * time.Second,
		RetryMaxBackoff:     time.Duration(cfg.RetryMaxBackoffSec) * time.Second,
		RetryMultiplier:     2.0,
		RequestTimeout:      time.Duration(cfg.RequestTimeoutSec) * time.Second,
		BreakerEnabled:      true,
	})
}

func newLLM(cfg config.Config, executor *resilience.Executor) (ports.Embedder, ports.Generator, error) {
	switch cfg.LLMProvider {
	case "openai":
		client := openai.New(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			EmbedModel: cfg.OpenAIEmbedModel,
			GenModel:   cfg.OpenAIGenModel,
		}, executor)
		return openai.NewEmbedder(client), openai.NewGenerator(client), nil
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		return ollama.NewEmbedder(client), ollama.NewGenerator(client), nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func newVectorStore(cfg config.Config) (ports.VectorStore, error) {
	switch cfg.VectorBackend {
	case "memory":
		store, err := memory.New(cfg.EmbeddingDim)
		if err != nil {
			return nil, fmt.Errorf("init memory vector store: %w", err)
		}
		return store, nil
	default:
		client, err := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbeddingDim)
		if err != nil {
			return nil, fmt.Errorf("init qdrant client: %w", err)
		}
		return client, nil
	}
}
