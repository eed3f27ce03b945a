package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/unifra/internal/api/handlers"
	"github.com/RMahshie/unifra/internal/metrics"
	"github.com/RMahshie/unifra/internal/processing"
	"github.com/RMahshie/unifra/pkg/models"
)

// memRepository keeps ingestions in a map
type memRepository struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Ingestion
}

func newMemRepository() *memRepository {
	return &memRepository{rows: make(map[uuid.UUID]*models.Ingestion)}
}

func (r *memRepository) Create(ctx context.Context, ingestion *models.Ingestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ingestion
	r.rows[uuid.MustParse(ingestion.ID)] = &cp
	return nil
}

func (r *memRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ingestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *memRepository) ListByAsset(ctx context.Context, assetID string, limit int) ([]*models.Ingestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Ingestion{}
	for _, row := range r.rows {
		if row.AssetID != nil && *row.AssetID == assetID && len(out) < limit {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return models.ErrNotFound
	}
	row.Status = status
	return nil
}

func (r *memRepository) StoreNormalized(ctx context.Context, id uuid.UUID, result *models.IngestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return models.ErrNotFound
	}
	row.Status = models.StatusCompleted
	row.Format = &result.Format
	if result.ContentType != "" {
		row.ContentType = &result.ContentType
	}
	row.AssetID = &result.Record.AssetMetadata.AssetID
	row.Record = result.Record
	row.Normalized = result.Normalized
	return nil
}

func (r *memRepository) UpdateError(ctx context.Context, id uuid.UUID, stage, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return models.ErrNotFound
	}
	row.Status = models.StatusFailed
	row.ErrorStage = &stage
	row.ErrorMsg = &errorMsg
	return nil
}

func csvSweep(n int) []byte {
	var b strings.Builder
	b.WriteString("# Asset ID: TR042\nFrequency (Hz),Magnitude (dB),Phase (deg)\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d,%.1f,%.1f\n", 20000*(i+1), -10-float64(i), -float64(i))
	}
	return []byte(b.String())
}

func newTestServer(t *testing.T) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	router, api := NewRouter(RouterConfig{
		AllowedOrigins: []string{"http://localhost:5173"},
		Metrics:        m,
		Gatherer:       reg,
	})

	pipeline := processing.NewPipelineService(processing.WithMetrics(m))
	repo := newMemRepository()
	ingestSvc := processing.NewIngestService(pipeline, nil, repo)
	RegisterRoutes(api, handlers.NewIngestHandler(pipeline, ingestSvc, repo, 0))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, reg
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, Version, body.Version)
}

func TestIngestRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/ingest", map[string]any{
		"filename":  "tr042.csv",
		"content":   base64.StdEncoding.EncodeToString(csvSweep(12)),
		"normalize": false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.IngestResponseBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "csv", body.Format)
	assert.Equal(t, "extension", body.DetectionRule)
	require.NotNil(t, body.Record)
	assert.Equal(t, 12, body.Record.Measurement.Resolution)

	get, err := http.Get(srv.URL + "/api/records/" + body.ID)
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)

	list, err := http.Get(srv.URL + "/api/assets/TR042/records")
	require.NoError(t, err)
	defer list.Body.Close()
	var records struct {
		Records []*models.Ingestion `json:"records"`
	}
	require.NoError(t, json.NewDecoder(list.Body).Decode(&records))
	assert.Len(t, records.Records, 1)
}

func TestIngestRejectionIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/ingest", map[string]any{
		"filename": "short.csv",
		"content":  base64.StdEncoding.EncodeToString(csvSweep(9)),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.Contains(t, problem.Detail, "short.csv")
	assert.Contains(t, problem.Detail, "insufficient data")
}

func TestUnknownRecordIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/records/" + uuid.New().String())
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `unifra_http_requests_total{method="GET",route="/health",status_code="200"}`)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/ingest", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}
