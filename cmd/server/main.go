package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/unifra/internal/api"
	"github.com/RMahshie/unifra/internal/api/handlers"
	"github.com/RMahshie/unifra/internal/config"
	"github.com/RMahshie/unifra/internal/metrics"
	"github.com/RMahshie/unifra/internal/normalize"
	"github.com/RMahshie/unifra/internal/processing"
	"github.com/RMahshie/unifra/internal/repository/postgres"
	"github.com/RMahshie/unifra/internal/storage"
)

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	zerolog.SetGlobalLevel(cfg.Server.LogLevel)

	ctx := context.Background()

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	repo := postgres.NewPostgresIngestRepository(db)

	store, err := newObjectStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to configure object storage")
	}

	// Pipeline
	m := metrics.New(prometheus.DefaultRegisterer)
	normalizer, err := normalize.New(cfg.Normalize, normalize.WithFallbackHook(m.RecordFallback))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create normalizer")
	}
	pipeline := processing.NewPipelineService(
		processing.WithNormalizer(normalizer),
		processing.WithMetrics(m),
		processing.WithConcurrency(cfg.Batch.Concurrency),
	)
	ingestSvc := processing.NewIngestService(pipeline, store, repo)

	// HTTP
	router, humaAPI := api.NewRouter(api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
	})
	api.RegisterRoutes(humaAPI, handlers.NewIngestHandler(pipeline, ingestSvc, repo, cfg.Server.MaxUploadBytes))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Server.Env).Msg("Starting UniFRA API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// newObjectStore selects the storage backend. "none" disables archiving and pre-signed uploads.
func newObjectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	switch cfg.Backend {
	case config.StorageMinio:
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKeyID,
			SecretKey: cfg.SecretAccessKey,
		})
	case config.StorageS3:
		return storage.NewS3Store(storage.S3Config{
			Bucket:    cfg.Bucket,
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKeyID,
			SecretKey: cfg.SecretAccessKey,
		})
	default:
		log.Warn().Msg("Object storage disabled")
		return nil, nil
	}
}
