package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RMahshie/unifra/internal/api/handlers"
	"github.com/RMahshie/unifra/internal/metrics"
	"github.com/RMahshie/unifra/pkg/models"
)

// Version is reported by the health endpoint and the OpenAPI document
const Version = "1.0.0"

// RouterConfig configures the HTTP router
type RouterConfig struct {
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the chi router with middleware and the huma API on top of it
func NewRouter(cfg RouterConfig) (*chi.Mux, huma.API) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(ZerologLogger())
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware)
	}
	router.Use(middleware.Compress(5))

	if cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	config := huma.DefaultConfig("UniFRA API", Version)
	config.DocsPath = "/api/docs"
	api := humachi.New(router, config)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		resp.Body.Version = Version
		resp.Body.Time = time.Now()
		return resp, nil
	})

	return router, api
}

// RegisterRoutes sets up all API routes
func RegisterRoutes(api huma.API, ingestHandler *handlers.IngestHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "supportedFormats",
		Method:      http.MethodGet,
		Path:        "/api/supported-formats",
		Summary:     "List supported formats",
		Description: "Returns the decoder format tags and the file extension table",
		Tags:        []string{"Ingest"},
	}, ingestHandler.SupportedFormats)

	huma.Register(api, huma.Operation{
		OperationID: "ingest",
		Method:      http.MethodPost,
		Path:        "/api/ingest",
		Summary:     "Ingest a file",
		Description: "Detects, decodes and validates an inline FRA file and stores the canonical record",
		Tags:        []string{"Ingest"},
	}, ingestHandler.Ingest)

	huma.Register(api, huma.Operation{
		OperationID: "ingestObject",
		Method:      http.MethodPost,
		Path:        "/api/ingest/object",
		Summary:     "Ingest an uploaded file",
		Description: "Runs the pipeline on a file uploaded through a pre-signed URL",
		Tags:        []string{"Ingest"},
	}, ingestHandler.IngestObject)

	huma.Register(api, huma.Operation{
		OperationID: "createUpload",
		Method:      http.MethodPost,
		Path:        "/api/uploads",
		Summary:     "Create an upload",
		Description: "Creates a pending ingestion and returns a pre-signed upload URL",
		Tags:        []string{"Ingest"},
	}, ingestHandler.CreateUpload)

	huma.Register(api, huma.Operation{
		OperationID: "getRecord",
		Method:      http.MethodGet,
		Path:        "/api/records/{id}",
		Summary:     "Get an ingestion",
		Description: "Returns the status and canonical record of an ingestion",
		Tags:        []string{"Records"},
	}, ingestHandler.GetRecord)

	huma.Register(api, huma.Operation{
		OperationID: "listAssetRecords",
		Method:      http.MethodGet,
		Path:        "/api/assets/{assetID}/records",
		Summary:     "List transformer records",
		Description: "Returns the newest ingestions of one transformer",
		Tags:        []string{"Records"},
	}, ingestHandler.ListAssetRecords)
}
