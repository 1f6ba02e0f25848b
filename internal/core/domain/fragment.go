package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// fragmentNamespace seeds deterministic fragment IDs. Changing it would
// orphan every previously stored fragment.
var fragmentNamespace = uuid.MustParse("8f0c2f1e-5a44-4c7a-9a1b-3d2e6f7c8d90")

// Fragment is the unit of storage and retrieval: a chunk of source text
// together with its embedding and open metadata.
type Fragment struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Index      int            `json:"index"`
	Text       string         `json:"text"`
	Embedding  []float32      `json:"embedding"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// FragmentID derives the stable fragment identifier from the source document
// id and the fragment position. Re-ingesting the same document yields the
// same ids, so writes stay idempotent upserts.
func FragmentID(documentID string, index int) string {
	return uuid.NewSHA1(fragmentNamespace, fmt.Appendf(nil, "%s:%d", documentID, index)).String()
}

// QueryResult pairs a retrieved fragment with the similarity score reported
// by the vector index. Higher is more relevant; ties keep engine order.
type QueryResult struct {
	Fragment Fragment `json:"fragment"`
	Score    float64  `json:"score"`
}

// Source is the caller-facing projection of a query result.
type Source struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Answer is the result of a full RAG query.
type Answer struct {
	Text      string   `json:"answer"`
	Sources   []Source `json:"sources"`
	LatencyMS float64  `json:"latency_ms"`
}

// IngestReport summarizes one ingestion call. FragmentsStored counts upserts
// that completed before any failure; fragments already stored remain stored.
type IngestReport struct {
	DocumentID      string   `json:"document_id"`
	FragmentsStored int      `json:"fragments_stored"`
	FragmentIDs     []string `json:"fragment_ids,omitempty"`
}
