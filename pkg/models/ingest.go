package models

import (
	"time"
)

// Ingest statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Ingestion represents one ingested file (for internal use)
type Ingestion struct {
	ID            string     `json:"id"`
	Filename      string     `json:"filename"`
	Format        *string    `json:"format,omitempty"`
	DetectionRule *string    `json:"detection_rule,omitempty"`
	ContentType   *string    `json:"content_type,omitempty"`
	ObjectKey     *string    `json:"object_key,omitempty"`
	AssetID       *string    `json:"asset_id,omitempty"`
	Status        string     `json:"status"`
	Record        *Record    `json:"record,omitempty"`
	Normalized    *Record    `json:"normalized,omitempty"`
	ErrorStage    *string    `json:"error_stage,omitempty"`
	ErrorMsg      *string    `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// IngestResult is what a completed ingestion stores
type IngestResult struct {
	Format        string
	DetectionRule string
	// ContentType is empty when the stored value should be kept
	ContentType   string
	Record        *Record
	Normalized    *Record
}
