package domain

import "time"

// EvalExample is one labeled question: the set of fragment ids considered
// correct answers for it.
type EvalExample struct {
	Question    string
	ExpectedIDs map[string]struct{}
}

// EvalResult records a single question's retrieval run.
type EvalResult struct {
	Question     string          `json:"question"`
	RetrievedIDs []string        `json:"retrieved_ids"`
	ExpectedIDs  []string        `json:"expected_ids"`
	LatencyMS    float64         `json:"latency_ms"`
	PrecisionAtK map[int]float64 `json:"-"`
	Err          string          `json:"error,omitempty"`
}

// EvalReport aggregates retrieval quality across a question set.
type EvalReport struct {
	PrecisionAt1          float64      `json:"precision_at_1"`
	PrecisionAt3          float64      `json:"precision_at_3"`
	PrecisionAt5          float64      `json:"precision_at_5"`
	AvgRetrievalLatencyMS float64      `json:"avg_retrieval_latency_ms"`
	TotalQuestions        int          `json:"total_questions"`
	SuccessfulQueries     int          `json:"successful_queries"`
	FailedQueries         int          `json:"failed_queries"`
	Timestamp             time.Time    `json:"timestamp"`
	Results               []EvalResult `json:"detailed_results,omitempty"`
}
