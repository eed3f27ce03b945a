package processing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/unifra/pkg/models"
)

// MockIngestRepository implements repository.IngestRepository for testing
type MockIngestRepository struct {
	mock.Mock
}

func (m *MockIngestRepository) Create(ctx context.Context, ingestion *models.Ingestion) error {
	args := m.Called(ctx, ingestion)
	return args.Error(0)
}

func (m *MockIngestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ingestion, error) {
	args := m.Called(ctx, id)
	ingestion, _ := args.Get(0).(*models.Ingestion)
	return ingestion, args.Error(1)
}

func (m *MockIngestRepository) ListByAsset(ctx context.Context, assetID string, limit int) ([]*models.Ingestion, error) {
	args := m.Called(ctx, assetID, limit)
	ingestions, _ := args.Get(0).([]*models.Ingestion)
	return ingestions, args.Error(1)
}

func (m *MockIngestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockIngestRepository) StoreNormalized(ctx context.Context, id uuid.UUID, result *models.IngestResult) error {
	args := m.Called(ctx, id, result)
	return args.Error(0)
}

func (m *MockIngestRepository) UpdateError(ctx context.Context, id uuid.UUID, stage, errorMsg string) error {
	args := m.Called(ctx, id, stage, errorMsg)
	return args.Error(0)
}

// MockObjectStore implements storage.ObjectStore for testing
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) UploadFile(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockObjectStore) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockObjectStore) DeleteFile(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func TestIngestBytes_Success(t *testing.T) {
	repo := new(MockIngestRepository)
	store := new(MockObjectStore)
	data := csvSweep(20)

	store.On("UploadFile", mock.Anything, mock.MatchedBy(func(key string) bool {
		return len(key) > 0
	}), data, mock.AnythingOfType("string")).Return(nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(i *models.Ingestion) bool {
		return i.Filename == "tr042.csv" && i.Status == models.StatusProcessing && i.ObjectKey != nil
	})).Return(nil)
	repo.On("StoreNormalized", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.MatchedBy(func(r *models.IngestResult) bool {
		return r.Format == "csv" && r.DetectionRule == "extension" && r.Record != nil && r.Normalized == nil
	})).Return(nil)

	svc := NewIngestService(NewPipelineService(), store, repo)
	ingestion, err := svc.IngestBytes(context.Background(), "tr042.csv", data, Options{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, ingestion.Status)
	assert.Equal(t, "csv", *ingestion.Format)
	assert.Equal(t, "TR042", *ingestion.AssetID)
	require.NotNil(t, ingestion.ContentType)
	assert.Contains(t, *ingestion.ContentType, "text/")
	assert.NotNil(t, ingestion.CompletedAt)
	repo.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestIngestBytes_RejectionRecorded(t *testing.T) {
	repo := new(MockIngestRepository)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateError", mock.Anything, mock.AnythingOfType("uuid.UUID"), StageDecode,
		mock.MatchedBy(func(msg string) bool { return len(msg) > 0 })).Return(nil)

	svc := NewIngestService(NewPipelineService(), nil, repo)
	ingestion, err := svc.IngestBytes(context.Background(), "short.csv", csvSweep(4), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	require.NotNil(t, ingestion)
	assert.Equal(t, models.StatusFailed, ingestion.Status)
	assert.Equal(t, StageDecode, *ingestion.ErrorStage)
	assert.Nil(t, ingestion.ObjectKey)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "StoreNormalized", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestBytes_ArchiveFailureIsNotFatal(t *testing.T) {
	repo := new(MockIngestRepository)
	store := new(MockObjectStore)

	store.On("UploadFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket offline"))
	repo.On("Create", mock.Anything, mock.MatchedBy(func(i *models.Ingestion) bool {
		return i.ObjectKey == nil
	})).Return(nil)
	repo.On("StoreNormalized", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewIngestService(NewPipelineService(), store, repo)
	ingestion, err := svc.IngestBytes(context.Background(), "tr042.csv", csvSweep(12), Options{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, ingestion.Status)
	repo.AssertExpectations(t)
}

func TestIngestObject(t *testing.T) {
	id := uuid.New()
	key := "uploads/" + id.String() + "/tr042.csv"

	testCases := []struct {
		name      string
		mockSetup func(*MockIngestRepository, *MockObjectStore)
		wantErr   error
		wantState string
	}{
		{
			name: "uploaded file ingested",
			mockSetup: func(repo *MockIngestRepository, store *MockObjectStore) {
				repo.On("GetByID", mock.Anything, id).Return(&models.Ingestion{
					ID: id.String(), Filename: "tr042.csv", ObjectKey: &key, Status: models.StatusPending,
				}, nil)
				repo.On("UpdateStatus", mock.Anything, id, models.StatusProcessing).Return(nil)
				store.On("DownloadFile", mock.Anything, key).Return(csvSweep(20), nil)
				repo.On("StoreNormalized", mock.Anything, id, mock.MatchedBy(func(r *models.IngestResult) bool {
					// sniffed from the downloaded bytes
					return strings.HasPrefix(r.ContentType, "text/")
				})).Return(nil)
			},
			wantState: models.StatusCompleted,
		},
		{
			name: "unknown ingestion",
			mockSetup: func(repo *MockIngestRepository, store *MockObjectStore) {
				repo.On("GetByID", mock.Anything, id).Return(nil, models.ErrNotFound)
			},
			wantErr: models.ErrNotFound,
		},
		{
			name: "object missing from store",
			mockSetup: func(repo *MockIngestRepository, store *MockObjectStore) {
				repo.On("GetByID", mock.Anything, id).Return(&models.Ingestion{
					ID: id.String(), Filename: "tr042.csv", ObjectKey: &key,
				}, nil)
				repo.On("UpdateStatus", mock.Anything, id, models.StatusProcessing).Return(nil)
				store.On("DownloadFile", mock.Anything, key).Return(nil, models.ErrNotFound)
				repo.On("UpdateError", mock.Anything, id, StageRead, "Failed to download upload").Return(nil)
			},
			wantErr: models.ErrNotFound,
		},
		{
			name: "ingestion without object",
			mockSetup: func(repo *MockIngestRepository, store *MockObjectStore) {
				repo.On("GetByID", mock.Anything, id).Return(&models.Ingestion{ID: id.String(), Filename: "x.csv"}, nil)
			},
			wantErr: models.ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(MockIngestRepository)
			store := new(MockObjectStore)
			tc.mockSetup(repo, store)

			svc := NewIngestService(NewPipelineService(), store, repo)
			ingestion, err := svc.IngestObject(context.Background(), id, Options{})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.wantState, ingestion.Status)
			}
			repo.AssertExpectations(t)
			store.AssertExpectations(t)
		})
	}
}

func TestCreateUpload(t *testing.T) {
	repo := new(MockIngestRepository)
	store := new(MockObjectStore)

	store.On("GenerateUploadURL", mock.Anything, mock.Anything, "application/octet-stream").
		Return("https://bucket.example/upload", nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(i *models.Ingestion) bool {
		return i.Status == models.StatusPending && i.ObjectKey != nil && i.Filename == "t1.frx"
	})).Return(nil)

	svc := NewIngestService(NewPipelineService(), store, repo)
	upload, err := svc.CreateUpload(context.Background(), "t1.frx")
	require.NoError(t, err)

	assert.Equal(t, "https://bucket.example/upload", upload.URL)
	assert.Equal(t, "uploads/"+upload.ID+"/t1.frx", upload.Key)
	assert.Equal(t, 900, upload.ExpiresIn)
	repo.AssertExpectations(t)
}

func TestCreateUpload_UnsupportedExtension(t *testing.T) {
	svc := NewIngestService(NewPipelineService(), new(MockObjectStore), new(MockIngestRepository))
	_, err := svc.CreateUpload(context.Background(), "report.pdf")
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestCreateUpload_NoStore(t *testing.T) {
	svc := NewIngestService(NewPipelineService(), nil, new(MockIngestRepository))
	_, err := svc.CreateUpload(context.Background(), "t1.frx")
	assert.Error(t, err)
}
