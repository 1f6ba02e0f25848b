package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document tracks the lifecycle of an uploaded source file. The fragments
// produced from it live in the vector store; this record only carries
// bookkeeping state for the asynchronous ingestion pipeline.
type Document struct {
	ID              string         `json:"id"`
	Filename        string         `json:"filename"`
	MimeType        string         `json:"mime_type"`
	StoragePath     string         `json:"storage_path"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Status          DocumentStatus `json:"status"`
	FragmentsStored int            `json:"fragments_stored"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
