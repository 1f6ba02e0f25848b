// Package ollama adapts a local ollama instance to the embedder and generator
// ports. Calls go through the shared resilience executor; once retries are
// exhausted the error carries the matching unavailability kind so callers can
// map it without knowing the provider.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/luminahq/lumina/internal/core/domain"
	"github.com/luminahq/lumina/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		// Per-attempt deadlines come from the executor's request timeout,
		// so the transport itself carries no fixed timeout.
		httpClient: &http.Client{},
		executor:   executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "ollama embed",
			errors.New("empty embedding result"))
	}
	return vectors[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, domain.WrapError(domain.ErrValidation, "ollama embed",
				fmt.Errorf("text %d is empty", i))
		}
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	start := time.Now()
	err := e.client.executor.Execute(ctx, "ollama_embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapUnavailable(domain.ErrEmbeddingUnavailable, "ollama embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "ollama embed",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(response.Embeddings)))
	}

	slog.Debug("llm_call_completed",
		"provider", "ollama",
		"operation", "embed",
		"model", e.client.embedModel,
		"inputs", len(texts),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return response.Embeddings, nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.WrapError(domain.ErrValidation, "ollama generate",
			errors.New("prompt is empty"))
	}

	request := map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": temperature,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	start := time.Now()
	err := g.client.executor.Execute(ctx, "ollama_generate", func(ctx context.Context) error {
		return g.client.postJSON(ctx, "/api/generate", request, &response, "generate")
	}, classifyOllamaError)
	if err != nil {
		return "", wrapUnavailable(domain.ErrGenerationUnavailable, "ollama generate", err)
	}

	slog.Debug("llm_call_completed",
		"provider", "ollama",
		"operation", "generate",
		"model", g.client.genModel,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return strings.TrimSpace(response.Response), nil
}
