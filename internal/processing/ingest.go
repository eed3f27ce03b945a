package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/unifra/internal/repository"
	"github.com/RMahshie/unifra/internal/storage"
	"github.com/RMahshie/unifra/pkg/models"
)

// Upload is a pending ingestion waiting for its file
type Upload struct {
	ID        string
	Key       string
	URL       string
	ExpiresIn int
}

// IngestService persists ingestions around the pipeline
type IngestService interface {
	CreateUpload(ctx context.Context, filename string) (*Upload, error)
	IngestBytes(ctx context.Context, filename string, data []byte, opts Options) (*models.Ingestion, error)
	IngestObject(ctx context.Context, id uuid.UUID, opts Options) (*models.Ingestion, error)
}

type ingestService struct {
	pipeline   PipelineService
	store      storage.ObjectStore
	repository repository.IngestRepository
	now        func() time.Time
}

// NewIngestService creates an ingest service. store may be nil, in which case
// inline uploads are not archived and object ingestion is unavailable.
func NewIngestService(pipeline PipelineService, store storage.ObjectStore, repo repository.IngestRepository) IngestService {
	return &ingestService{
		pipeline:   pipeline,
		store:      store,
		repository: repo,
		now:        time.Now,
	}
}

// CreateUpload records a pending ingestion and returns a pre-signed URL for its file
func (s *ingestService) CreateUpload(ctx context.Context, filename string) (*Upload, error) {
	if s.store == nil {
		return nil, errors.New("object storage is not configured")
	}
	contentType, err := storage.ContentTypeFor(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnsupportedFormat, err)
	}

	id := uuid.New()
	key := storage.ObjectKey(id.String(), filename)

	url, err := s.store.GenerateUploadURL(ctx, key, contentType)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ingestion := &models.Ingestion{
		ID:          id.String(),
		Filename:    filename,
		ContentType: &contentType,
		ObjectKey:   &key,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repository.Create(ctx, ingestion); err != nil {
		return nil, err
	}

	return &Upload{
		ID:        id.String(),
		Key:       key,
		URL:       url,
		ExpiresIn: int(storage.DefaultURLExpiry.Seconds()),
	}, nil
}

// IngestBytes archives data when a store is configured, then runs and records the pipeline
func (s *ingestService) IngestBytes(ctx context.Context, filename string, data []byte, opts Options) (*models.Ingestion, error) {
	// Step 1: Record the ingestion
	id := uuid.New()
	contentType := mimetype.Detect(data).String()
	now := s.now().UTC()
	ingestion := &models.Ingestion{
		ID:          id.String(),
		Filename:    filename,
		ContentType: &contentType,
		Status:      models.StatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Step 2: Archive the raw file
	if s.store != nil {
		key := storage.ObjectKey(id.String(), filename)
		if err := s.store.UploadFile(ctx, key, data, contentType); err != nil {
			log.Warn().Err(err).Str("file", filename).Msg("Failed to archive upload")
		} else {
			ingestion.ObjectKey = &key
		}
	}
	if err := s.repository.Create(ctx, ingestion); err != nil {
		return nil, err
	}

	// Step 3: Run the pipeline
	return s.complete(ctx, ingestion, data, opts)
}

// IngestObject downloads a previously uploaded file and runs the pipeline on it
func (s *ingestService) IngestObject(ctx context.Context, id uuid.UUID, opts Options) (*models.Ingestion, error) {
	if s.store == nil {
		return nil, errors.New("object storage is not configured")
	}

	// Step 1: Get ingestion details
	ingestion, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ingestion.ObjectKey == nil {
		return nil, fmt.Errorf("%w: ingestion %s has no uploaded object", models.ErrNotFound, id)
	}

	// Step 2: Download the file
	if err := s.repository.UpdateStatus(ctx, id, models.StatusProcessing); err != nil {
		return nil, err
	}
	data, err := s.store.DownloadFile(ctx, *ingestion.ObjectKey)
	if err != nil {
		if uerr := s.repository.UpdateError(ctx, id, StageRead, "Failed to download upload"); uerr != nil {
			log.Error().Err(uerr).Str("id", id.String()).Msg("Failed to record download error")
		}
		return nil, err
	}
	contentType := mimetype.Detect(data).String()
	ingestion.ContentType = &contentType

	// Step 3: Run the pipeline
	return s.complete(ctx, ingestion, data, opts)
}

func (s *ingestService) complete(ctx context.Context, ingestion *models.Ingestion, data []byte, opts Options) (*models.Ingestion, error) {
	id := uuid.MustParse(ingestion.ID)

	res, err := s.pipeline.ProcessBytes(ctx, ingestion.Filename, data, opts)
	if err != nil {
		stage := StageDecode
		var ferr *FileError
		if errors.As(err, &ferr) {
			stage = ferr.Stage
		}
		if uerr := s.repository.UpdateError(ctx, id, stage, err.Error()); uerr != nil {
			log.Error().Err(uerr).Str("id", ingestion.ID).Msg("Failed to record ingestion error")
		}
		msg := err.Error()
		ingestion.Status = models.StatusFailed
		ingestion.ErrorStage = &stage
		ingestion.ErrorMsg = &msg
		return ingestion, err
	}

	result := &models.IngestResult{
		Format:        res.Format,
		DetectionRule: string(res.Detection.Rule),
		ContentType:   deref(ingestion.ContentType),
		Record:        res.Record,
		Normalized:    res.Normalized,
	}
	if err := s.repository.StoreNormalized(ctx, id, result); err != nil {
		return nil, err
	}

	completed := s.now().UTC()
	ingestion.Status = models.StatusCompleted
	ingestion.Format = &result.Format
	ingestion.DetectionRule = &result.DetectionRule
	ingestion.AssetID = &res.Record.AssetMetadata.AssetID
	ingestion.Record = res.Record
	ingestion.Normalized = res.Normalized
	ingestion.UpdatedAt = completed
	ingestion.CompletedAt = &completed
	return ingestion, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
