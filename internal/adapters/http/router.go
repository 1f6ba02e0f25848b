// Package httpadapter exposes the RAG pipeline over HTTP: question answering,
// document upload and lookup, synchronous text ingestion, health and metrics.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/luminahq/lumina/internal/core/domain"
	"github.com/luminahq/lumina/internal/core/ports"
	"github.com/luminahq/lumina/internal/observability/metrics"
)

type RouterConfig struct {
	ServiceName string

	RateLimitRPS        float64
	RateLimitBurst      int
	MaxInFlight         int
	BackpressureTimeout time.Duration
	MaxUploadBytes      int64
}

func (c RouterConfig) withDefaults() RouterConfig {
	out := c
	if out.ServiceName == "" {
		out.ServiceName = "api"
	}
	if out.MaxUploadBytes <= 0 {
		out.MaxUploadBytes = 32 << 20
	}
	if out.BackpressureTimeout <= 0 {
		out.BackpressureTimeout = 2 * time.Second
	}
	return out
}

type Router struct {
	query    ports.QueryService
	ingestor ports.Ingestor
	uploader ports.DocumentUploader
	docs     ports.DocumentReader
	vector   ports.VectorStore
	metrics  *metrics.HTTPServerMetrics
	cfg      RouterConfig
}

func NewRouter(
	query ports.QueryService,
	ingestor ports.Ingestor,
	uploader ports.DocumentUploader,
	docs ports.DocumentReader,
	vector ports.VectorStore,
	m *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	return &Router{
		query:    query,
		ingestor: ingestor,
		uploader: uploader,
		docs:     docs,
		vector:   vector,
		metrics:  m,
		cfg:      cfg.withDefaults(),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/text", rt.ingestText)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.BackpressureTimeout)
	}
	if rt.cfg.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.ServiceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"vector_store": "ok"}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := rt.vector.HealthCheck(ctx); err != nil {
		checks["vector_store"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	var req struct {
		Question    string         `json:"question"`
		TopK        int            `json:"top_k"`
		Temperature *float64       `json:"temperature"`
		Filters     map[string]any `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}

	start := time.Now()
	answer, err := rt.query.Ask(r.Context(), ports.QueryRequest{
		Question:    req.Question,
		TopK:        req.TopK,
		Temperature: req.Temperature,
		Filters:     req.Filters,
	})
	if err != nil {
		rt.writeRAGError(w, "ask", err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(rt.cfg.ServiceName, "ask", len(answer.Sources), time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("multipart field 'file' is required"))
		return
	}
	defer file.Close()

	metadata, err := parseMetadataField(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	doc, err := rt.uploader.Upload(
		r.Context(),
		fileHeader.Filename,
		contentTypeOf(fileHeader),
		metadata,
		file,
	)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) ingestText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	var req struct {
		DocumentID string         `json:"document_id"`
		Text       string         `json:"text"`
		Metadata   map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}

	report, err := rt.ingestor.Ingest(r.Context(), req.DocumentID, req.Text, req.Metadata)
	if err != nil {
		body := errorBody(err.Error())
		if report != nil {
			// Partial failure: fragments already stored stay stored, and the
			// caller needs the count to decide whether to re-run ingestion.
			body["document_id"] = report.DocumentID
			body["fragments_stored"] = report.FragmentsStored
			if rt.metrics != nil && report.FragmentsStored > 0 {
				rt.metrics.RecordIngestedFragments(rt.cfg.ServiceName, report.FragmentsStored)
			}
		}
		writeJSON(w, mapErrorToHTTPStatus(err), body)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordIngestedFragments(rt.cfg.ServiceName, report.FragmentsStored)
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, errorBody("document id is required"))
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) writeRAGError(w http.ResponseWriter, endpoint string, err error) {
	body := errorBody(err.Error())
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		body["stage"] = string(stageErr.Stage)
		if rt.metrics != nil {
			rt.metrics.RecordRAGStageFailure(rt.cfg.ServiceName, endpoint, string(stageErr.Stage))
		}
	}
	writeJSON(w, mapErrorToHTTPStatus(err), body)
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
}

func errorBody(msg string) map[string]any {
	return map[string]any{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseMetadataField(r *http.Request) (map[string]any, error) {
	raw := strings.TrimSpace(r.FormValue("metadata"))
	if raw == "" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, errors.New("metadata must be a JSON object")
	}
	return metadata, nil
}

func contentTypeOf(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
