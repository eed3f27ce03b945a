package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/unifra/internal/detect"
	"github.com/RMahshie/unifra/internal/processing"
	"github.com/RMahshie/unifra/internal/repository"
	"github.com/RMahshie/unifra/pkg/models"
)

// DefaultMaxUploadBytes caps inline and pre-signed uploads
const DefaultMaxUploadBytes = 50 * 1024 * 1024

// IngestHandler handles ingestion-related HTTP requests
type IngestHandler struct {
	pipeline       processing.PipelineService
	ingestSvc      processing.IngestService
	repo           repository.IngestRepository
	maxUploadBytes int64
}

// NewIngestHandler creates a new ingest handler. maxUploadBytes <= 0 selects the default.
func NewIngestHandler(pipeline processing.PipelineService, ingestSvc processing.IngestService, repo repository.IngestRepository, maxUploadBytes int64) *IngestHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &IngestHandler{
		pipeline:       pipeline,
		ingestSvc:      ingestSvc,
		repo:           repo,
		maxUploadBytes: maxUploadBytes,
	}
}

// SupportedFormats lists the decoders and the extension table
func (h *IngestHandler) SupportedFormats(ctx context.Context, _ *struct{}) (*models.SupportedFormatsResponse, error) {
	resp := &models.SupportedFormatsResponse{}
	resp.Body.Formats = h.pipeline.Formats()
	resp.Body.Extensions = make(map[string]string)
	for _, ext := range detect.Extensions() {
		resp.Body.Extensions[ext.Ext] = ext.Format
	}
	return resp, nil
}

// Ingest decodes an inline file and stores the result
func (h *IngestHandler) Ingest(ctx context.Context, req *models.IngestRequest) (*models.IngestResponse, error) {
	log.Info().Str("file", req.Body.Filename).Int("bytes", len(req.Body.Content)).Msg("Ingest request received")

	if int64(len(req.Body.Content)) > h.maxUploadBytes {
		return nil, huma.NewError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("%s exceeds the %d byte upload limit", req.Body.Filename, h.maxUploadBytes))
	}

	ingestion, err := h.ingestSvc.IngestBytes(ctx, req.Body.Filename, req.Body.Content,
		processing.Options{Normalize: req.Body.Normalize})
	if err != nil {
		return nil, ingestError(err)
	}

	log.Info().Str("id", ingestion.ID).Str("format", deref(ingestion.Format)).Msg("Ingestion completed")
	return &models.IngestResponse{Body: responseBody(ingestion)}, nil
}

// IngestObject decodes a file previously uploaded through a pre-signed URL
func (h *IngestHandler) IngestObject(ctx context.Context, req *models.IngestObjectRequest) (*models.IngestResponse, error) {
	id, err := uuid.Parse(req.Body.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid ingestion ID", err)
	}

	ingestion, err := h.ingestSvc.IngestObject(ctx, id, processing.Options{Normalize: req.Body.Normalize})
	if err != nil {
		return nil, ingestError(err)
	}
	return &models.IngestResponse{Body: responseBody(ingestion)}, nil
}

// CreateUpload records a pending ingestion and returns an upload URL
func (h *IngestHandler) CreateUpload(ctx context.Context, req *models.CreateUploadRequest) (*models.CreateUploadResponse, error) {
	log.Info().Str("file", req.Body.Filename).Int64("fileSize", req.Body.FileSize).Msg("Creating upload")

	if req.Body.FileSize > h.maxUploadBytes {
		return nil, huma.Error400BadRequest(
			fmt.Sprintf("%s exceeds the %d byte upload limit", req.Body.Filename, h.maxUploadBytes))
	}

	upload, err := h.ingestSvc.CreateUpload(ctx, req.Body.Filename)
	if err != nil {
		if errors.Is(err, models.ErrUnsupportedFormat) {
			return nil, huma.Error400BadRequest(fmt.Sprintf("%s: unsupported file type", req.Body.Filename), err)
		}
		return nil, huma.Error500InternalServerError("Failed to prepare upload", err)
	}

	resp := &models.CreateUploadResponse{}
	resp.Body.ID = upload.ID
	resp.Body.UploadURL = upload.URL
	resp.Body.ExpiresIn = upload.ExpiresIn
	return resp, nil
}

// GetRecord returns a stored ingestion
func (h *IngestHandler) GetRecord(ctx context.Context, req *models.GetRecordRequest) (*models.GetRecordResponse, error) {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid ingestion ID", err)
	}

	ingestion, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, huma.Error404NotFound("Ingestion not found", err)
		}
		return nil, huma.Error500InternalServerError("Failed to get ingestion", err)
	}
	return &models.GetRecordResponse{Body: ingestion}, nil
}

// ListAssetRecords returns the newest ingestions of one transformer
func (h *IngestHandler) ListAssetRecords(ctx context.Context, req *models.ListAssetRecordsRequest) (*models.ListAssetRecordsResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	records, err := h.repo.ListByAsset(ctx, req.AssetID, limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list ingestions", err)
	}

	resp := &models.ListAssetRecordsResponse{}
	resp.Body.AssetID = req.AssetID
	resp.Body.Records = records
	return resp, nil
}

// ingestError maps pipeline failures onto HTTP status codes. Rejections keep
// the filename and reason in the detail.
func ingestError(err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return huma.Error404NotFound(err.Error(), err)
	case processing.IsRejection(err):
		return huma.Error400BadRequest(err.Error(), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable("Ingestion cancelled", err)
	default:
		log.Error().Err(err).Msg("Ingestion failed")
		return huma.Error500InternalServerError("Failed to ingest file", err)
	}
}

func responseBody(ingestion *models.Ingestion) models.IngestResponseBody {
	return models.IngestResponseBody{
		ID:            ingestion.ID,
		Filename:      ingestion.Filename,
		Format:        deref(ingestion.Format),
		DetectionRule: deref(ingestion.DetectionRule),
		ContentType:   deref(ingestion.ContentType),
		Record:        ingestion.Record,
		Normalized:    ingestion.Normalized,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
