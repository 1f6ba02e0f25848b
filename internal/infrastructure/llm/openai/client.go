// Package openai adapts the OpenAI API to the embedder and generator ports
// through the official SDK. SDK-internal retries are disabled; the shared
// resilience executor owns the retry and circuit breaker policy so both LLM
// providers fail the same way.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/luminahq/lumina/internal/core/domain"
	"github.com/luminahq/lumina/internal/infrastructure/resilience"
)

type Config struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	GenModel   string
}

type Client struct {
	api      openai.Client
	cfg      Config
	executor *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		api:      openai.NewClient(opts...),
		cfg:      cfg,
		executor: executor,
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
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "openai embed",
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
			return nil, domain.WrapError(domain.ErrValidation, "openai embed",
				fmt.Errorf("text %d is empty", i))
		}
	}

	var resp *openai.CreateEmbeddingResponse
	start := time.Now()
	err := e.client.executor.Execute(ctx, "openai_embed", func(ctx context.Context) error {
		var callErr error
		resp, callErr = e.client.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Model: openai.EmbeddingModel(e.client.cfg.EmbedModel),
		})
		return callErr
	}, classifyOpenAIError)
	if err != nil {
		return nil, wrapUnavailable(domain.ErrEmbeddingUnavailable, "openai embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "openai embed",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	// The API may return items out of order; Index restores input order.
	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || int(item.Index) >= len(out) {
			return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "openai embed",
				fmt.Errorf("embedding index %d out of range", item.Index))
		}
		vector := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vector[i] = float32(v)
		}
		out[item.Index] = vector
	}

	slog.Debug("llm_call_completed",
		"provider", "openai",
		"operation", "embed",
		"model", e.client.cfg.EmbedModel,
		"inputs", len(texts),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return out, nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.WrapError(domain.ErrValidation, "openai generate",
			errors.New("prompt is empty"))
	}

	var resp *openai.ChatCompletion
	start := time.Now()
	err := g.client.executor.Execute(ctx, "openai_generate", func(ctx context.Context) error {
		var callErr error
		resp, callErr = g.client.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(g.client.cfg.GenModel),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(temperature),
		})
		return callErr
	}, classifyOpenAIError)
	if err != nil {
		return "", wrapUnavailable(domain.ErrGenerationUnavailable, "openai generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrGenerationUnavailable, "openai generate",
			errors.New("no completion choices"))
	}

	slog.Debug("llm_call_completed",
		"provider", "openai",
		"operation", "generate",
		"model", g.client.cfg.GenModel,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
