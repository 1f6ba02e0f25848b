package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/luminahq/lumina/internal/core/domain"
	"github.com/luminahq/lumina/internal/infrastructure/resilience"
)

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1.0,
		BreakerEnabled:      false,
	})
}

func newTestClient(baseURL string) *Client {
	return New(Config{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		EmbedModel: "text-embedding-3-small",
		GenModel:   "gpt-4o-mini",
	}, fastExecutor())
}

func TestEmbedBatchRestoresInputOrder(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		// Items deliberately out of order; Index carries the input position.
		io.WriteString(w, `{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0.3,0.4]},
			{"object":"embedding","index":0,"embedding":[0.1,0.2]}
		],"usage":{"prompt_tokens":2,"total_tokens":2}}`)
	}))
	t.Cleanup(srv.Close)

	embedder := NewEmbedder(newTestClient(srv.URL))
	vectors, err := embedder.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}

	if gotBody["model"] != "text-embedding-3-small" {
		t.Fatalf("expected embed model in request, got %v", gotBody["model"])
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 0.1 || vectors[1][0] != 0.3 {
		t.Fatalf("expected input order restored, got %v", vectors)
	}
}

func TestEmbedRejectsEmptyTextWithoutRequest(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	t.Cleanup(srv.Close)

	embedder := NewEmbedder(newTestClient(srv.URL))
	_, err := embedder.Embed(context.Background(), "")
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if requests != 0 {
		t.Fatalf("expected no request for empty text, got %d", requests)
	}
}

func TestEmbedRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":0,"embedding":[0.1,0.2]}
		],"usage":{"prompt_tokens":1,"total_tokens":1}}`)
	}))
	t.Cleanup(srv.Close)

	embedder := NewEmbedder(newTestClient(srv.URL))
	vector, err := embedder.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected retry then success, got %d attempts", attempts)
	}
	if len(vector) != 2 {
		t.Fatalf("unexpected vector %v", vector)
	}
}

func TestEmbedExhaustionIsEmbeddingUnavailable(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	t.Cleanup(srv.Close)

	embedder := NewEmbedder(newTestClient(srv.URL))
	_, err := embedder.Embed(context.Background(), "hello")
	if !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected embedding unavailable, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected attempt ceiling of 3, got %d", attempts)
	}
}

func TestEmbedAuthFailureNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	}))
	t.Cleanup(srv.Close)

	embedder := NewEmbedder(newTestClient(srv.URL))
	_, err := embedder.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("auth error should not be wrapped as unavailable: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt, got %d", attempts)
	}
}

func TestGenerateSendsTemperatureAndReturnsContent(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","choices":[
			{"index":0,"message":{"role":"assistant","content":" the answer "},"finish_reason":"stop"}
		]}`)
	}))
	t.Cleanup(srv.Close)

	generator := NewGenerator(newTestClient(srv.URL))
	answer, err := generator.Generate(context.Background(), "question with context", 0.2)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "the answer" {
		t.Fatalf("expected trimmed content, got %q", answer)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Fatalf("expected chat model, got %v", gotBody["model"])
	}
	if gotBody["temperature"] != 0.2 {
		t.Fatalf("expected temperature forwarded, got %v", gotBody["temperature"])
	}
}

func TestGenerateExhaustionIsGenerationUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"error":{"message":"upstream error","type":"server_error"}}`)
	}))
	t.Cleanup(srv.Close)

	generator := NewGenerator(newTestClient(srv.URL))
	_, err := generator.Generate(context.Background(), "prompt", 0.7)
	if !domain.IsKind(err, domain.ErrGenerationUnavailable) {
		t.Fatalf("expected generation unavailable, got %v", err)
	}
}

func TestAttemptTimeoutClassifiedAsRetryable(t *testing.T) {
	err := fmt.Errorf("%w: %w", resilience.ErrAttemptTimeout, context.DeadlineExceeded)
	class := classifyOpenAIError(err)
	if !class.Retryable || !class.RecordFailure {
		t.Fatalf("expected attempt timeout to be retryable and recorded, got %+v", class)
	}

	class = classifyOpenAIError(context.DeadlineExceeded)
	if class.Retryable {
		t.Fatalf("caller deadline must not be retryable, got %+v", class)
	}
}
