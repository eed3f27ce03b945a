package repository

import (
	"context"

	"github.com/RMahshie/unifra/pkg/models"
	"github.com/google/uuid"
)

// IngestRepository defines the interface for ingestion data operations.
// Lookups of unknown IDs return an error wrapping models.ErrNotFound.
type IngestRepository interface {
	Create(ctx context.Context, ingestion *models.Ingestion) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Ingestion, error)
	ListByAsset(ctx context.Context, assetID string, limit int) ([]*models.Ingestion, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	StoreNormalized(ctx context.Context, id uuid.UUID, result *models.IngestResult) error
	UpdateError(ctx context.Context, id uuid.UUID, stage, errorMsg string) error
}
