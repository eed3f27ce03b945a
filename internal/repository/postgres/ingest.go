package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/RMahshie/unifra/internal/repository"
	"github.com/RMahshie/unifra/pkg/models"
	"github.com/google/uuid"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Migrate applies every up migration in name order. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		stmt, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}
	return nil
}

// PostgresIngestRepository implements IngestRepository for PostgreSQL
type PostgresIngestRepository struct {
	db *sql.DB
}

// NewPostgresIngestRepository creates a new PostgreSQL ingestion repository
func NewPostgresIngestRepository(db *sql.DB) repository.IngestRepository {
	return &PostgresIngestRepository{db: db}
}

const selectColumns = `
	SELECT id, filename, format, detection_rule, content_type, object_key, asset_id, status,
	       record, normalized, error_stage, error_message, created_at, updated_at, completed_at
	FROM ingestions`

// Create inserts a new ingestion
func (r *PostgresIngestRepository) Create(ctx context.Context, ingestion *models.Ingestion) error {
	query := `
		INSERT INTO ingestions (id, filename, format, detection_rule, content_type, object_key, asset_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		ingestion.ID,
		ingestion.Filename,
		ingestion.Format,
		ingestion.DetectionRule,
		ingestion.ContentType,
		ingestion.ObjectKey,
		ingestion.AssetID,
		ingestion.Status,
		ingestion.CreatedAt,
		ingestion.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ingestion: %w", err)
	}
	return nil
}

// GetByID retrieves an ingestion by ID
func (r *PostgresIngestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ingestion, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	ingestion, err := scanIngestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ingestion %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return ingestion, nil
}

// ListByAsset retrieves the newest ingestions of one transformer
func (r *PostgresIngestRepository) ListByAsset(ctx context.Context, assetID string, limit int) ([]*models.Ingestion, error) {
	rows, err := r.db.QueryContext(ctx,
		selectColumns+` WHERE asset_id = $1 ORDER BY created_at DESC LIMIT $2`, assetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestions: %w", err)
	}
	defer rows.Close()

	ingestions := []*models.Ingestion{}
	for rows.Next() {
		ingestion, err := scanIngestion(rows)
		if err != nil {
			return nil, err
		}
		ingestions = append(ingestions, ingestion)
	}
	return ingestions, rows.Err()
}

// UpdateStatus updates the status of an ingestion
func (r *PostgresIngestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `
		UPDATE ingestions
		SET status = $1, updated_at = NOW(),
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $2`

	return r.execOne(ctx, id, query, status, id)
}

// StoreNormalized stores the decoded and normalized records and completes the ingestion
func (r *PostgresIngestRepository) StoreNormalized(ctx context.Context, id uuid.UUID, result *models.IngestResult) error {
	record, err := marshalNullable(result.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	normalized, err := marshalNullable(result.Normalized)
	if err != nil {
		return fmt.Errorf("failed to marshal normalized record: %w", err)
	}

	var assetID *string
	if result.Record != nil && result.Record.AssetMetadata != nil {
		assetID = &result.Record.AssetMetadata.AssetID
	}

	query := `
		UPDATE ingestions
		SET format = $1, detection_rule = $2, asset_id = $3, record = $4, normalized = $5,
		    content_type = COALESCE(NULLIF($6, ''), content_type),
		    status = 'completed', error_stage = NULL, error_message = NULL,
		    updated_at = NOW(), completed_at = NOW()
		WHERE id = $7`

	return r.execOne(ctx, id, query, result.Format, result.DetectionRule, assetID, record, normalized,
		result.ContentType, id)
}

// UpdateError marks an ingestion failed with the stage and reason
func (r *PostgresIngestRepository) UpdateError(ctx context.Context, id uuid.UUID, stage, errorMsg string) error {
	query := `
		UPDATE ingestions
		SET status = 'failed', error_stage = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3`

	return r.execOne(ctx, id, query, stage, errorMsg, id)
}

func (r *PostgresIngestRepository) execOne(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update ingestion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update ingestion: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: ingestion %s", models.ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIngestion(row scanner) (*models.Ingestion, error) {
	var ingestion models.Ingestion
	var format, rule, contentType, objectKey, assetID, errorStage, errorMsg sql.NullString
	var record, normalized []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&ingestion.ID,
		&ingestion.Filename,
		&format,
		&rule,
		&contentType,
		&objectKey,
		&assetID,
		&ingestion.Status,
		&record,
		&normalized,
		&errorStage,
		&errorMsg,
		&ingestion.CreatedAt,
		&ingestion.UpdatedAt,
		&completedAt)
	if err != nil {
		return nil, err
	}

	ingestion.Format = nullString(format)
	ingestion.DetectionRule = nullString(rule)
	ingestion.ContentType = nullString(contentType)
	ingestion.ObjectKey = nullString(objectKey)
	ingestion.AssetID = nullString(assetID)
	ingestion.ErrorStage = nullString(errorStage)
	ingestion.ErrorMsg = nullString(errorMsg)
	if completedAt.Valid {
		ingestion.CompletedAt = &completedAt.Time
	}

	if ingestion.Record, err = unmarshalRecord(record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	if ingestion.Normalized, err = unmarshalRecord(normalized); err != nil {
		return nil, fmt.Errorf("failed to unmarshal normalized record: %w", err)
	}
	return &ingestion, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func marshalNullable(rec *models.Record) (any, error) {
	if rec == nil {
		return nil, nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalRecord(data []byte) (*models.Record, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rec models.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
