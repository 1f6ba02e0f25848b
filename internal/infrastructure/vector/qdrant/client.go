package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/luminahq/lumina/internal/core/domain"
)

// Client talks to a qdrant instance over its REST API and adapts it to the
// vector store port. Point IDs are the fragment IDs, so re-ingesting the same
// document overwrites points instead of duplicating them. The collection is
// created lazily on first upsert with cosine distance; every vector that
// crosses this client is checked against the configured dimensionality before
// a request is issued.
type Client struct {
	baseURL    string
	collection string
	vectorSize int
	httpClient *http.Client

	ensureMu sync.Mutex
	ensured  bool
}

func New(baseURL, collection string, vectorSize int) (*Client, error) {
	if vectorSize <= 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "qdrant client",
			fmt.Errorf("vector size must be positive, got %d", vectorSize))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		vectorSize: vectorSize,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *Client) Upsert(ctx context.Context, fragments []domain.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	for i := range fragments {
		if err := c.checkDimension(len(fragments[i].Embedding)); err != nil {
			return fmt.Errorf("fragment %s: %w", fragments[i].ID, err)
		}
	}

	if err := c.ensureCollection(ctx); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(fragments))
	for _, f := range fragments {
		points = append(points, point{
			ID:     f.ID,
			Vector: f.Embedding,
			Payload: map[string]any{
				"document_id":    f.DocumentID,
				"fragment_index": f.Index,
				"text":           f.Text,
				"metadata":       f.Metadata,
			},
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrRetrievalUnavailable, "qdrant upsert", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.WrapError(domain.ErrRetrievalUnavailable, "qdrant upsert", statusError(resp))
	}
	return nil
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	topK int,
	filters map[string]any,
) ([]domain.QueryResult, error) {
	if err := c.checkDimension(len(queryVector)); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, domain.WrapError(domain.ErrValidation, "qdrant search",
			fmt.Errorf("top_k must be positive, got %d", topK))
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        topK,
		"with_payload": true,
	}
	if clause := filterClause(filters); clause != nil {
		reqBody["filter"] = clause
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "qdrant search", err)
	}
	defer resp.Body.Close()

	// The collection is created lazily on first upsert, so a search on a
	// fresh deployment can hit a missing collection. That is an empty
	// index, not an outage.
	if resp.StatusCode == http.StatusNotFound {
		return []domain.QueryResult{}, nil
	}
	if resp.StatusCode >= 300 {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "qdrant search", statusError(resp))
	}

	var searchResp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.QueryResult, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.QueryResult{
			Fragment: domain.Fragment{
				ID:         r.ID,
				DocumentID: payloadString(r.Payload, "document_id"),
				Index:      payloadInt(r.Payload, "fragment_index"),
				Text:       payloadString(r.Payload, "text"),
				Metadata:   payloadMap(r.Payload, "metadata"),
			},
			Score: r.Score,
		})
	}
	return out, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	url := c.baseURL + "/readyz"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create readiness request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrRetrievalUnavailable, "qdrant readiness", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.WrapError(domain.ErrRetrievalUnavailable, "qdrant readiness",
			fmt.Errorf("status %s", resp.Status))
	}
	return nil
}

func (c *Client) checkDimension(got int) error {
	if got != c.vectorSize {
		return domain.WrapError(domain.ErrConfiguration, "vector dimensionality",
			fmt.Errorf("expected %d dimensions, got %d", c.vectorSize, got))
	}
	return nil
}

// filterClause turns flat metadata equality filters into a qdrant must clause.
// Metadata lives nested under the "metadata" payload key, hence the prefix.
// Keys are sorted so request bodies are stable.
func filterClause(filters map[string]any) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	must := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		must = append(must, map[string]any{
			"key":   "metadata." + k,
			"match": map[string]any{"value": filters[k]},
		})
	}
	return map[string]any{"must": must}
}

func (c *Client) ensureCollection(ctx context.Context) error {
	c.ensureMu.Lock()
	if c.ensured {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     c.vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrRetrievalUnavailable, "qdrant ensure collection", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if the collection already exists.
	if resp.StatusCode == http.StatusConflict {
		c.markEnsured()
		return nil
	}
	if resp.StatusCode >= 300 {
		return domain.WrapError(domain.ErrRetrievalUnavailable, "qdrant ensure collection", statusError(resp))
	}
	c.markEnsured()
	return nil
}

func (c *Client) markEnsured() {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensured = true
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("status %s: %s", resp.Status, msg)
	}
	return errors.New("status " + resp.Status)
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadInt(payload map[string]any, key string) int {
	// JSON numbers decode as float64.
	if f, ok := payload[key].(float64); ok {
		return int(f)
	}
	return 0
}

func payloadMap(payload map[string]any, key string) map[string]any {
	m, _ := payload[key].(map[string]any)
	return m
}
