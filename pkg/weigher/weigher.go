// Package weigher is the public entry point for estimating the mass of drawn
// sheet-metal parts from engineering drawings.
//
// Configuration and logging types are re-exported so callers outside this
// module can build a Weigher without importing internal packages.
package weigher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spherical/drawn-weight/internal/cache"
	"github.com/spherical/drawn-weight/internal/config"
	"github.com/spherical/drawn-weight/internal/domain"
	"github.com/spherical/drawn-weight/internal/export"
	"github.com/spherical/drawn-weight/internal/extract"
	"github.com/spherical/drawn-weight/internal/geometry"
	"github.com/spherical/drawn-weight/internal/llm"
	"github.com/spherical/drawn-weight/internal/observability"
	"github.com/spherical/drawn-weight/internal/pdf"
	"github.com/spherical/drawn-weight/internal/pipeline"
	"github.com/spherical/drawn-weight/internal/storage"
)

type (
	Config        = config.Config
	Logger        = observability.Logger
	LogConfig     = observability.LogConfig
	Result        = pipeline.Result
	DimensionSet  = domain.DimensionSet
	Breakdown     = domain.WeightBreakdown
	HistoryRecord = domain.HistoryRecord
	HistoryStore  = domain.HistoryStore
	VisionModel   = domain.VisionModel
	Exporter      = export.Service
)

// LoadConfig reads configuration from path, .env and the environment.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config { return config.DefaultConfig() }

// NewLogger builds a structured logger.
func NewLogger(cfg LogConfig) *Logger { return observability.NewLogger(cfg) }

// Option adjusts how New wires components.
type Option func(*options)

type options struct {
	models    []domain.VisionModel
	cache     cache.Client
	noHistory bool
}

// WithModels replaces the configured provider with explicit model handles.
func WithModels(models ...VisionModel) Option {
	return func(o *options) { o.models = models }
}

// WithCache supplies a cache client instead of building one from config.
func WithCache(c cache.Client) Option {
	return func(o *options) { o.cache = c }
}

// WithoutHistory skips opening the history database.
func WithoutHistory() Option {
	return func(o *options) { o.noHistory = true }
}

// Weigher owns every long-lived component of a run.
type Weigher struct {
	cfg          *Config
	logger       *Logger
	calculator   *geometry.Calculator
	orchestrator *extract.Orchestrator
	pipeline     *pipeline.Pipeline
	cache        cache.Client
	store        *storage.Store
	exporter     *export.Service
}

// New wires a Weigher from cfg. A nil logger discards output.
func New(cfg *Config, logger *Logger, opts ...Option) (*Weigher, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	w := &Weigher{
		cfg:        cfg,
		logger:     logger,
		calculator: geometry.NewCalculator(cfg.Material),
	}

	models := o.models
	if len(models) == 0 {
		var err error
		models, err = llm.NewModels(cfg.Extraction.Provider, cfg.Extraction.Models, llm.Options{
			Temperature:   cfg.Extraction.Temperature,
			OpenRouterURL: cfg.Extraction.OpenRouterURL,
		})
		if err != nil {
			return nil, err
		}
	}

	orchestrator, err := extract.NewOrchestrator(models,
		extract.WithAttemptTimeout(cfg.Extraction.AttemptTimeout),
		extract.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	w.orchestrator = orchestrator

	converter, err := pdf.NewConverter(pdf.Options{
		TempDir: cfg.Preprocess.TempDir,
		DPI:     cfg.Preprocess.DPI,
		Quality: cfg.Preprocess.JPEGQuality,
	}, logger)
	if err != nil {
		return nil, err
	}

	w.cache = o.cache
	if w.cache == nil {
		w.cache, err = cache.New(cache.Settings{
			Driver:     cfg.Cache.Driver,
			MaxEntries: cfg.Cache.MaxEntries,
			Redis: cache.RedisConfig{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
				PoolSize: cfg.Cache.Redis.PoolSize,
				Prefix:   cfg.Cache.Redis.Prefix,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
	}

	w.pipeline = pipeline.New(converter, orchestrator, w.calculator, pipeline.CacheOptions{
		Client:   w.cache,
		TTL:      cfg.Cache.TTL,
		Provider: cfg.Extraction.Provider,
		Models:   orchestrator.ModelNames(),
		Prompt:   orchestrator.Prompt(),
	}, logger)

	if !o.noHistory {
		if err := w.openHistory(); err != nil {
			w.Close()
			return nil, err
		}
	}

	return w, nil
}

func (w *Weigher) openHistory() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool := storage.PoolOptions{MaxOpenConns: w.cfg.Database.SQLite.MaxOpenConns}
	if w.cfg.Database.Driver == "postgres" {
		pool = storage.PoolOptions{
			MaxOpenConns:    w.cfg.Database.Postgres.MaxOpenConns,
			MaxIdleConns:    w.cfg.Database.Postgres.MaxIdleConns,
			ConnMaxLifetime: w.cfg.Database.Postgres.ConnMaxLifetime,
		}
	}

	store, err := storage.Open(ctx, w.cfg.Database.Driver, w.cfg.DatabaseDSN(), pool)
	if err != nil {
		return fmt.Errorf("history database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return err
	}

	w.store = store
	w.exporter = export.NewService(store.History(), w.logger)
	return nil
}

// Config returns the configuration the Weigher was built with.
func (w *Weigher) Config() *Config { return w.cfg }

// ModelNames returns the vision model fallback order.
func (w *Weigher) ModelNames() []string { return w.orchestrator.ModelNames() }

// Weigh runs one drawing. An empty credential falls back to the configured key.
func (w *Weigher) Weigh(ctx context.Context, path, credential string) (*Result, error) {
	if credential == "" {
		credential = w.cfg.Credential()
	}
	return w.pipeline.Run(ctx, path, credential)
}

// ComputeWeight runs only the calculator.
func (w *Weigher) ComputeWeight(dims DimensionSet) (*Breakdown, error) {
	return w.calculator.Compute(dims)
}

// ErrHistoryDisabled is returned when the Weigher was built WithoutHistory.
var ErrHistoryDisabled = errors.New("history is disabled")

// History returns the history store, or nil when disabled.
func (w *Weigher) History() HistoryStore {
	if w.store == nil {
		return nil
	}
	return w.store.History()
}

// Exporter returns the XLSX exporter, or nil when history is disabled.
func (w *Weigher) Exporter() *Exporter {
	return w.exporter
}

// Record saves a successful result for userID. Failed results are skipped
// and yield a nil record.
func (w *Weigher) Record(ctx context.Context, userID string, res *Result) (*HistoryRecord, error) {
	if !res.Succeeded() {
		return nil, nil
	}
	store := w.History()
	if store == nil {
		return nil, ErrHistoryDisabled
	}

	rec := &domain.HistoryRecord{
		UserID:        userID,
		Filename:      res.Filename,
		WeightKg:      *res.WeightKg,
		ExtractedData: res.Raw,
	}
	if res.Outcome != nil {
		rec.Model = res.Outcome.Model
	}
	if err := store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Close releases the cache and database.
func (w *Weigher) Close() error {
	var errs []error
	if w.cache != nil {
		errs = append(errs, w.cache.Close())
	}
	if w.store != nil {
		errs = append(errs, w.store.Close())
	}
	return errors.Join(errs...)
}
