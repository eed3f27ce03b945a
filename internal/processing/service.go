package processing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/RMahshie/unifra/internal/codec"
	"github.com/RMahshie/unifra/internal/codec/proprietary"
	"github.com/RMahshie/unifra/internal/detect"
	"github.com/RMahshie/unifra/internal/metrics"
	"github.com/RMahshie/unifra/internal/normalize"
	"github.com/RMahshie/unifra/internal/validate"
	"github.com/RMahshie/unifra/pkg/models"
)

// Pipeline stages reported in FileError
const (
	StageRead      = "read"
	StageDetect    = "detect"
	StageDecode    = "decode"
	StageValidate  = "validate"
	StageNormalize = "normalize"
)

const defaultConcurrency = 4

// FileError ties a pipeline failure to the file and stage that produced it
type FileError struct {
	Filename string
	Stage    string
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Filename, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Options select optional work per call
type Options struct {
	Normalize bool
}

// Result is the outcome of one file. Err is a *FileError when the file was rejected.
type Result struct {
	Filename   string
	Detection  detect.Detection
	Format     string
	Record     *models.Record
	Normalized *models.Record
	Err        error
}

// PipelineService runs files through detect, decode, validate and normalize
type PipelineService interface {
	ProcessFile(ctx context.Context, path string, opts Options) (*Result, error)
	ProcessBytes(ctx context.Context, name string, data []byte, opts Options) (*Result, error)
	ProcessBatch(ctx context.Context, paths []string, opts Options) []*Result
	Formats() []string
}

type pipelineService struct {
	codecs      *codec.Registry
	validator   *validate.Validator
	normalizer  *normalize.Normalizer
	metrics     *metrics.Metrics
	concurrency int
}

// Option customizes the pipeline service
type Option func(*pipelineService)

// WithNormalizer enables the normalize stage
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *pipelineService) { s.normalizer = n }
}

// WithMetrics records outcomes and stage timings
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *pipelineService) { s.metrics = m }
}

// WithConcurrency bounds the number of files ProcessBatch works on at once
func WithConcurrency(n int) Option {
	return func(s *pipelineService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRegistry replaces the default decoder registry
func WithRegistry(r *codec.Registry) Option {
	return func(s *pipelineService) { s.codecs = r }
}

// NewPipelineService creates a pipeline with every built-in decoder
func NewPipelineService(opts ...Option) PipelineService {
	s := &pipelineService{
		codecs:      codec.Default(),
		validator:   validate.New(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *pipelineService) Formats() []string {
	return s.codecs.Formats()
}

// ProcessFile reads path and runs it through the pipeline
func (s *pipelineService) ProcessFile(ctx context.Context, path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %s", models.ErrNotFound, path)
		}
		return s.reject(&Result{Filename: path}, StageRead, err)
	}
	return s.run(ctx, path, filepath.Base(path), data, opts)
}

// ProcessBytes runs an in-memory file through the pipeline. name drives
// extension-based detection and is recorded as the raw filename.
func (s *pipelineService) ProcessBytes(ctx context.Context, name string, data []byte, opts Options) (*Result, error) {
	return s.run(ctx, name, name, data, opts)
}

// ProcessBatch processes paths concurrently. Results keep the order of paths
// and one file's failure never stops the others.
func (s *pipelineService) ProcessBatch(ctx context.Context, paths []string, opts Options) []*Result {
	results := make([]*Result, len(paths))

	var group errgroup.Group
	group.SetLimit(s.concurrency)
	for i, path := range paths {
		group.Go(func() error {
			res, _ := s.ProcessFile(ctx, path, opts)
			results[i] = res
			return nil
		})
	}
	_ = group.Wait()

	return results
}

func (s *pipelineService) run(ctx context.Context, label, name string, data []byte, opts Options) (*Result, error) {
	res := &Result{Filename: label}
	logger := log.With().Str("file", label).Logger()

	// Step 1: Detect the format
	if err := ctx.Err(); err != nil {
		return s.reject(res, StageDetect, err)
	}
	start := time.Now()
	det, err := detect.Bytes(name, data)
	s.metrics.ObserveStage(StageDetect, time.Since(start))
	if err != nil {
		return s.reject(res, StageDetect, err)
	}
	res.Detection = det
	res.Format = det.Format

	if det.Format == detect.UnknownBinary {
		layout, err := proprietary.Sniff(data)
		if err != nil {
			return s.reject(res, StageDetect, fmt.Errorf("%w: no vendor signature matched", models.ErrUnsupportedFormat))
		}
		res.Format = layout.Name()
	}
	logger.Debug().Str("format", res.Format).Str("rule", string(det.Rule)).Msg("Format detected")

	// Step 2: Decode into a canonical record
	if err := ctx.Err(); err != nil {
		return s.reject(res, StageDecode, err)
	}
	decoder, err := s.codecs.Lookup(res.Format)
	if err != nil {
		return s.reject(res, StageDecode, err)
	}
	start = time.Now()
	rec, err := decoder.Decode(name, data)
	s.metrics.ObserveStage(StageDecode, time.Since(start))
	if err != nil {
		return s.reject(res, StageDecode, err)
	}

	// Step 3: Validate the record as decoded, then canonicalize it and
	// re-check, since dropping duplicates can leave too few points
	start = time.Now()
	err = s.validator.Check(rec)
	if err == nil {
		if err = models.CanonicalizeMeasurement(rec.Measurement); err == nil {
			err = s.validator.Check(rec)
		}
	}
	s.metrics.ObserveStage(StageValidate, time.Since(start))
	if err != nil {
		return s.reject(res, StageValidate, err)
	}
	res.Record = rec

	// Step 4: Normalize when requested
	if opts.Normalize && s.normalizer != nil {
		if err := ctx.Err(); err != nil {
			return s.reject(res, StageNormalize, err)
		}
		start = time.Now()
		normalized, err := s.normalizer.Normalize(rec)
		s.metrics.ObserveStage(StageNormalize, time.Since(start))
		if err != nil {
			return s.reject(res, StageNormalize, err)
		}
		res.Normalized = normalized
	}

	s.metrics.RecordIngest(res.Format, metrics.OutcomeSuccess)
	logger.Info().
		Str("format", res.Format).
		Int("points", len(rec.Measurement.Frequencies)).
		Bool("normalized", res.Normalized != nil).
		Msg("File ingested")
	return res, nil
}

func (s *pipelineService) reject(res *Result, stage string, err error) (*Result, error) {
	ferr := &FileError{Filename: res.Filename, Stage: stage, Err: err}
	res.Err = ferr

	outcome := metrics.OutcomeError
	if IsRejection(err) {
		outcome = metrics.OutcomeRejected
	}
	s.metrics.RecordIngest(res.Format, outcome)

	log.Warn().Err(err).Str("file", res.Filename).Str("stage", stage).Msg("File rejected")
	return res, ferr
}

// IsRejection reports whether err is one of the input-caused pipeline errors
func IsRejection(err error) bool {
	return errors.Is(err, models.ErrSignatureMismatch) ||
		errors.Is(err, models.ErrUnsupportedFormat) ||
		errors.Is(err, models.ErrMalformedRecord) ||
		errors.Is(err, models.ErrInsufficientData)
}
