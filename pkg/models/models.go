package models

import (
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// SupportedFormatsResponse lists the formats the pipeline can decode
type SupportedFormatsResponse struct {
	Body struct {
		Formats    []string          `json:"formats" doc:"Decoder format tags"`
		Extensions map[string]string `json:"extensions" doc:"File extension to format tag"`
	}
}

// IngestRequest uploads a file inline
type IngestRequest struct {
	Body struct {
		Filename  string `json:"filename" minLength:"1" maxLength:"255" required:"true" doc:"Original file name, used for extension detection"`
		Content   []byte `json:"content" required:"true" doc:"Base64-encoded file content"`
		Normalize bool   `json:"normalize,omitempty" doc:"Resample onto the common grid and attach normalized arrays"`
	}
}

// IngestObjectRequest ingests a file already uploaded to object storage
type IngestObjectRequest struct {
	Body struct {
		ID        string `json:"id" required:"true" doc:"Ingestion ID returned by the upload endpoint"`
		Normalize bool   `json:"normalize,omitempty" doc:"Resample onto the common grid and attach normalized arrays"`
	}
}

// IngestResponseBody summarizes a completed ingestion
type IngestResponseBody struct {
	ID            string  `json:"id" doc:"Ingestion unique identifier"`
	Filename      string  `json:"filename" doc:"Original file name"`
	Format        string  `json:"format" doc:"Decoder that read the file"`
	DetectionRule string  `json:"detection_rule" enum:"extension,signature,content,fallback" doc:"Detector rule that chose the format"`
	ContentType   string  `json:"content_type,omitempty" doc:"Sniffed MIME type"`
	Record        *Record `json:"record" doc:"Canonical record"`
	Normalized    *Record `json:"normalized,omitempty" doc:"Normalized record when requested"`
}

// IngestResponse represents the response from an ingestion
type IngestResponse struct {
	Body IngestResponseBody
}

// CreateUploadRequest asks for a pre-signed upload URL
type CreateUploadRequest struct {
	Body struct {
		Filename string `json:"filename" minLength:"1" maxLength:"255" required:"true" doc:"Original file name"`
		FileSize int64  `json:"file_size" minimum:"1" maximum:"52428800" required:"true" doc:"File size in bytes"`
	}
}

// CreateUploadResponse represents the response from creating an upload
type CreateUploadResponse struct {
	Body struct {
		ID        string `json:"id" doc:"Ingestion unique identifier"`
		UploadURL string `json:"upload_url" doc:"Pre-signed URL for file upload"`
		ExpiresIn int    `json:"expires_in" doc:"URL expiration time in seconds"`
	}
}

// GetRecordRequest represents a request to get a stored ingestion
type GetRecordRequest struct {
	ID string `path:"id" doc:"Ingestion ID"`
}

// GetRecordResponse returns a stored ingestion
type GetRecordResponse struct {
	Body *Ingestion
}

// ListAssetRecordsRequest lists ingestions of one transformer
type ListAssetRecordsRequest struct {
	AssetID string `path:"assetID" doc:"Transformer asset ID"`
	Limit   int    `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Maximum number of results"`
}

// ListAssetRecordsResponse returns ingestions newest first
type ListAssetRecordsResponse struct {
	Body struct {
		AssetID string       `json:"asset_id" doc:"Transformer asset ID"`
		Records []*Ingestion `json:"records" doc:"Ingestions, newest first"`
	}
}
