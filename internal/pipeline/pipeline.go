// Package pipeline runs one drawing from file to weight.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spherical/drawn-weight/internal/cache"
	"github.com/spherical/drawn-weight/internal/domain"
	"github.com/spherical/drawn-weight/internal/extract"
	"github.com/spherical/drawn-weight/internal/observability"
)

// Result is the outcome of one run. WeightKg is nil whenever Failure is set.
type Result struct {
	Filename   string                    `json:"filename"`
	WeightKg   *float64                  `json:"calculated_weight_kg"`
	Dimensions domain.DimensionSet       `json:"dimensions"`
	Raw        map[string]any            `json:"extracted_data,omitempty"`
	Breakdown  *domain.WeightBreakdown   `json:"breakdown,omitempty"`
	Outcome    *domain.ExtractionOutcome `json:"outcome,omitempty"`
	Failure    string                    `json:"failure,omitempty"`
	Elapsed    time.Duration             `json:"elapsed"`
}

// Succeeded reports whether a weight was produced.
func (r *Result) Succeeded() bool {
	return r != nil && r.WeightKg != nil
}

// CacheOptions enables extraction caching. Scope values are folded into the
// cache key so a change of provider, models or prompt never reuses entries.
type CacheOptions struct {
	Client   cache.Client
	TTL      time.Duration
	Provider string
	Models   []string
	Prompt   string
}

// Pipeline wires preprocessing, extraction and calculation.
type Pipeline struct {
	preprocessor domain.Preprocessor
	extractor    domain.Extractor
	calculator   domain.Calculator
	cache        CacheOptions
	logger       *observability.Logger
}

// New creates a pipeline. A zero CacheOptions disables caching.
func New(pre domain.Preprocessor, ext domain.Extractor, calc domain.Calculator, cacheOpts CacheOptions, logger *observability.Logger) *Pipeline {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Pipeline{
		preprocessor: pre,
		extractor:    ext,
		calculator:   calc,
		cache:        cacheOpts,
		logger:       logger.WithOperation("pipeline"),
	}
}

// cachedExtraction is the payload stored per successful extraction.
type cachedExtraction struct {
	Model  string         `json:"model"`
	Fields map[string]any `json:"fields"`
}

// Run processes inputPath. Extraction exhaustion and calculation failures
// are reported through Result.Failure; errors are reserved for bad input,
// configuration, I/O and cancellation.
func (p *Pipeline) Run(ctx context.Context, inputPath, credential string) (*Result, error) {
	start := time.Now()
	logger := p.logger.WithContext(ctx)

	if strings.TrimSpace(credential) == "" {
		return nil, domain.ConfigError("an API key is required for extraction", domain.ErrMissingCredential)
	}

	raster, err := p.preprocessor.ToRaster(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := raster.Release(); err != nil {
			logger.Warn().Err(err).Str("path", raster.Path).Msg("Failed to release raster")
		}
	}()

	data, err := os.ReadFile(raster.Path)
	if err != nil {
		return nil, domain.IOError("Failed to read raster image", err)
	}
	image := domain.Image{Data: data, MIMEType: raster.MIMEType}

	result := &Result{Filename: filepath.Base(inputPath)}
	defer func() { result.Elapsed = time.Since(start) }()

	key := p.cacheKey(data)
	outcome := p.lookup(ctx, key)
	if outcome == nil {
		outcome, err = p.extractor.Extract(ctx, image, credential)
		if err != nil {
			return nil, err
		}
		if outcome.Succeeded() {
			p.store(ctx, key, outcome)
		}
	}
	result.Outcome = outcome

	if !outcome.Succeeded() {
		result.Failure = outcome.FailureString()
		logger.Warn().
			Str("file", result.Filename).
			Str("failure", result.Failure).
			Int("attempts", len(outcome.Attempts)).
			Msg("Extraction produced no dimensions")
		return result, nil
	}

	result.Raw = outcome.Fields
	result.Dimensions = extract.Normalize(outcome.Fields)

	breakdown, err := p.calculator.Compute(result.Dimensions)
	if err != nil {
		result.Failure = failureString(err)
		logger.Warn().
			Str("file", result.Filename).
			Str("model", outcome.Model).
			Str("failure", result.Failure).
			Msg("Weight calculation failed")
		return result, nil
	}

	result.Breakdown = breakdown
	kg := breakdown.MassKg
	result.WeightKg = &kg

	logger.Info().
		Str("file", result.Filename).
		Str("model", outcome.Model).
		Bool("cached", outcome.Cached).
		Float64("weight_kg", kg).
		Dur("elapsed", time.Since(start)).
		Msg("Weight calculated")
	return result, nil
}

func failureString(err error) string {
	msg := err.Error()
	var de *domain.DomainError
	if errors.As(err, &de) {
		msg = de.Message
	}
	return domain.FailureCode(err) + ": " + msg
}

func (p *Pipeline) cacheKey(image []byte) string {
	if p.cache.Client == nil {
		return ""
	}
	return cache.ExtractionKey(image, p.cache.Provider, p.cache.Models, p.cache.Prompt)
}

// lookup returns a cached outcome, or nil on a miss. Cache errors count as misses.
func (p *Pipeline) lookup(ctx context.Context, key string) *domain.ExtractionOutcome {
	if key == "" {
		return nil
	}

	var hit cachedExtraction
	if err := cache.GetJSON(ctx, p.cache.Client, key, &hit); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			p.logger.Warn().Err(err).Msg("Extraction cache unavailable")
		}
		return nil
	}
	if len(hit.Fields) == 0 {
		return nil
	}

	p.logger.Debug().Str("model", hit.Model).Msg("Extraction cache hit")
	return &domain.ExtractionOutcome{
		Model:  hit.Model,
		Fields: hit.Fields,
		Cached: true,
	}
}

func (p *Pipeline) store(ctx context.Context, key string, outcome *domain.ExtractionOutcome) {
	if key == "" {
		return
	}
	payload := cachedExtraction{Model: outcome.Model, Fields: outcome.Fields}
	if err := cache.SetJSON(ctx, p.cache.Client, key, payload, p.cache.TTL); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to cache extraction")
	}
}
