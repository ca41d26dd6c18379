package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spherical/drawn-weight/internal/domain"
	"github.com/spherical/drawn-weight/internal/llm"
	"github.com/spherical/drawn-weight/internal/observability"
)

// DefaultAttemptTimeout bounds a single model call.
const DefaultAttemptTimeout = 60 * time.Second

// Orchestrator tries each configured vision model in order until one returns
// a usable dimension object. Each model is attempted at most once per run.
type Orchestrator struct {
	models         []domain.VisionModel
	prompt         string
	attemptTimeout time.Duration
	logger         *observability.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithAttemptTimeout overrides the per-attempt deadline.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.attemptTimeout = d
		}
	}
}

// WithPrompt overrides the extraction prompt.
func WithPrompt(prompt string) Option {
	return func(o *Orchestrator) {
		if prompt != "" {
			o.prompt = prompt
		}
	}
}

// WithLogger sets the logger used for attempt records.
func WithLogger(logger *observability.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates an orchestrator over models, tried in slice order.
func NewOrchestrator(models []domain.VisionModel, opts ...Option) (*Orchestrator, error) {
	if len(models) == 0 {
		return nil, domain.ConfigError("extraction needs at least one model", domain.ErrNoModelsConfigured)
	}

	o := &Orchestrator{
		models:         append([]domain.VisionModel(nil), models...),
		prompt:         llm.BuildPrompt(),
		attemptTimeout: DefaultAttemptTimeout,
		logger:         observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithOperation("extract")
	return o, nil
}

// ModelNames returns the fallback order.
func (o *Orchestrator) ModelNames() []string {
	names := make([]string, len(o.models))
	for i, m := range o.models {
		names[i] = m.Name()
	}
	return names
}

// Prompt returns the prompt sent with every image.
func (o *Orchestrator) Prompt() string {
	return o.prompt
}

// Extract runs the fallback loop. An exhausted run is not an error: the
// outcome carries the last failure reason. The only error is cancellation
// of ctx, returned together with the attempts made so far.
func (o *Orchestrator) Extract(ctx context.Context, image domain.Image, credential string) (*domain.ExtractionOutcome, error) {
	outcome := &domain.ExtractionOutcome{}
	logger := o.logger.WithContext(ctx)

	for i, model := range o.models {
		if err := ctx.Err(); err != nil {
			return outcome, domain.ExtractionError("extraction cancelled", err)
		}

		start := time.Now()
		fields, text, reason, callErr := o.attempt(ctx, model, image, credential)
		record := domain.AttemptRecord{
			Index:   i,
			Model:   model.Name(),
			Reason:  reason,
			Elapsed: time.Since(start),
		}
		if callErr != nil {
			record.Error = callErr.Error()
		}
		outcome.Attempts = append(outcome.Attempts, record)

		var event *observability.LogEvent
		if reason == "" {
			event = logger.Info()
		} else {
			event = logger.Warn().Err(callErr)
		}
		event.
			Str("model", record.Model).
			Int("attempt", i).
			Str("reason", string(reason)).
			Dur("elapsed", record.Elapsed).
			Msg("Extraction attempt")

		if reason == "" {
			outcome.Model = record.Model
			outcome.Fields = fields
			outcome.RawText = text
			outcome.Reason = ""
			return outcome, nil
		}
		outcome.Reason = reason

		if err := ctx.Err(); err != nil {
			return outcome, domain.ExtractionError("extraction cancelled", err)
		}
	}

	logger.Warn().
		Int("attempts", len(outcome.Attempts)).
		Str("reason", string(outcome.Reason)).
		Msg("No model succeeded")
	return outcome, nil
}

// attempt makes one model call. reason is empty on success.
func (o *Orchestrator) attempt(ctx context.Context, model domain.VisionModel, image domain.Image, credential string) (map[string]any, string, domain.FailureReason, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	text, err := model.Generate(attemptCtx, credential, o.prompt, image)
	if err != nil {
		return nil, text, llm.Classify(err), err
	}

	fields, reason, err := parseResponse(text)
	return fields, text, reason, err
}

// parseResponse turns response text into a field mapping, or a failure reason.
func parseResponse(text string) (map[string]any, domain.FailureReason, error) {
	cleaned := llm.StripFences(text)
	if cleaned == "" {
		return nil, domain.ReasonEmptyResponse, fmt.Errorf("response has no content")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, domain.ReasonMalformedResponse, fmt.Errorf("decode response: %w", err)
	}
	if dec.More() {
		return nil, domain.ReasonMalformedResponse, fmt.Errorf("trailing data after JSON value")
	}

	fields, ok := decoded.(map[string]any)
	if !ok {
		return nil, domain.ReasonMalformedResponse, fmt.Errorf("response is %T, not an object", decoded)
	}
	if len(fields) == 0 {
		return nil, domain.ReasonEmptyResponse, fmt.Errorf("response object is empty")
	}
	if err := validateDimensions(fields); err != nil {
		return nil, domain.ReasonMalformedResponse, fmt.Errorf("schema: %w", err)
	}
	return fields, "", nil
}
