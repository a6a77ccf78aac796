// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/backends"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxConcurrency = 2
	DefaultMaxVariations  = 8
	DefaultAttemptTimeout = 15 * time.Minute

	cancelledBeforeDispatch = "cancelled before dispatch"
)

// Persister copies a remote locator into durable storage. A nil asset with a
// nil error means the locator is a placeholder that is not worth persisting.
type Persister interface {
	Persist(ctx context.Context, locator, tenant, creative string, iteration int) (*model.PersistedAsset, error)
}

// AttemptRecorder writes one ledger row per attempt.
type AttemptRecorder interface {
	Record(ctx context.Context, rec model.AttemptRecord) error
}

// EventPublisher announces completed generations.
type EventPublisher interface {
	Publish(ctx context.Context, event any, attributes map[string]string) (string, error)
}

// GenerationCompleted is the event published after every orchestration call.
type GenerationCompleted struct {
	TenantID         string                `json:"tenant_id"`
	CreativeID       string                `json:"creative_id"`
	Backend          model.BackendIdentity `json:"backend"`
	RequestedBackend string                `json:"requested_backend"`
	Success          bool                  `json:"success"`
	Variations       int                   `json:"variations"`
	Persisted        int                   `json:"persisted"`
	StoragePaths     []string              `json:"storage_paths"`
	CompletedAt      time.Time             `json:"completed_at"`
}

// GenerationOrchestrator fans a request out into N variation attempts on a
// bounded worker pool and aggregates the results in iteration order.
type GenerationOrchestrator struct {
	registry       *backends.Registry
	persister      Persister
	recorder       AttemptRecorder
	events         EventPublisher
	maxConcurrency int
	maxVariations  int
	attemptTimeout time.Duration
	tracer         trace.Tracer
	attempts       metric.Int64Counter
	failures       metric.Int64Counter
	persisted      metric.Int64Counter
}

type OrchestratorOption func(*GenerationOrchestrator)

func WithAttemptRecorder(r AttemptRecorder) OrchestratorOption {
	return func(o *GenerationOrchestrator) { o.recorder = r }
}

func WithEventPublisher(p EventPublisher) OrchestratorOption {
	return func(o *GenerationOrchestrator) { o.events = p }
}

// WithLimits applies the orchestration section of the configuration. Zero values
// keep the defaults.
func WithLimits(cfg cloud.Orchestration) OrchestratorOption {
	return func(o *GenerationOrchestrator) {
		if cfg.MaxConcurrency > 0 {
			o.maxConcurrency = cfg.MaxConcurrency
		}
		if cfg.MaxVariations > 0 {
			o.maxVariations = cfg.MaxVariations
		}
		if cfg.AttemptTimeoutSeconds > 0 {
			o.attemptTimeout = time.Duration(cfg.AttemptTimeoutSeconds) * time.Second
		}
	}
}

func NewGenerationOrchestrator(registry *backends.Registry, persister Persister, opts ...OrchestratorOption) *GenerationOrchestrator {
	out := &GenerationOrchestrator{
		registry:       registry,
		persister:      persister,
		maxConcurrency: DefaultMaxConcurrency,
		maxVariations:  DefaultMaxVariations,
		attemptTimeout: DefaultAttemptTimeout,
		tracer:         otel.Tracer(meterName),
	}
	for _, opt := range opts {
		opt(out)
	}
	meter := otel.Meter(meterName)
	out.attempts, _ = meter.Int64Counter("orchestrator.attempts")
	out.failures, _ = meter.Int64Counter("orchestrator.attempt.failures")
	out.persisted, _ = meter.Int64Counter("orchestrator.assets.persisted")
	return out
}

// Registry exposes the backend registry the orchestrator dispatches to.
func (o *GenerationOrchestrator) Registry() *backends.Registry {
	return o.registry
}

func (o *GenerationOrchestrator) MaxVariations() int {
	return o.maxVariations
}

type attemptJob struct {
	iteration int
	seed      int64
}

// Generate runs req.VariationCount attempts. The error is non-nil only for a
// request rejected by pre-flight validation; every later failure is reported in
// the per-iteration results.
func (o *GenerationOrchestrator) Generate(ctx context.Context, req model.GenerationRequest) (*model.AggregateResult, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}

	adapter := o.registry.Select(req.BackendName)
	backend := adapter.Identity()
	seeds := drawSeeds(req.VariationCount, req.Spec)

	ctx, span := o.tracer.Start(ctx, "orchestrator_generate")
	span.SetAttributes(
		attribute.String("backend", string(backend)),
		attribute.String("tenant_id", req.TenantID),
		attribute.String("creative_id", req.CreativeID),
		attribute.Int("variations", req.VariationCount),
	)
	defer span.End()

	jobs := make(chan attemptJob, req.VariationCount)
	results := make(chan model.IterationResult, req.VariationCount)
	var wg sync.WaitGroup

	workers := min(o.maxConcurrency, req.VariationCount)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					results <- o.cancelled(ctx, req, backend, job)
					continue
				}
				results <- o.runAttempt(ctx, req, adapter, job)
			}
		}()
	}

	for i := 1; i <= req.VariationCount; i++ {
		jobs <- attemptJob{iteration: i, seed: seeds[i-1]}
	}
	close(jobs)
	wg.Wait()
	close(results)

	aggregate := &model.AggregateResult{
		Success:           true,
		Backend:           backend,
		RequestedBackend:  req.BackendName,
		TenantID:          req.TenantID,
		CreativeID:        req.CreativeID,
		Results:           make([]model.IterationResult, req.VariationCount),
		SupportedBackends: o.registry.Supported(),
	}
	for r := range results {
		aggregate.Results[r.Iteration-1] = r
		if !r.Success {
			aggregate.Success = false
		}
	}

	if !aggregate.Success {
		span.SetStatus(codes.Error, "one or more attempts failed")
	}
	o.publish(ctx, aggregate)
	return aggregate, nil
}

func (o *GenerationOrchestrator) validate(req model.GenerationRequest) error {
	if req.VariationCount < 1 || req.VariationCount > o.maxVariations {
		return model.NewValidationError("variations", fmt.Sprintf("must be between 1 and %d, got %d", o.maxVariations, req.VariationCount))
	}
	if err := model.ValidateSegment("tenant_id", req.TenantID); err != nil {
		return err
	}
	if err := model.ValidateSegment("creative_id", req.CreativeID); err != nil {
		return err
	}
	return req.Spec.Validate()
}

// drawSeeds returns one seed per iteration. A pinned seed is reused; drawn seeds
// are distinct within the call.
func drawSeeds(n int, spec model.GenerationSpec) []int64 {
	out := make([]int64, 0, n)
	if spec.HasSeed() {
		for range n {
			out = append(out, spec.SeedValue())
		}
		return out
	}
	seen := make(map[int64]struct{}, n)
	for len(out) < n {
		s := backends.DrawSeed()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func (o *GenerationOrchestrator) cancelled(ctx context.Context, req model.GenerationRequest, backend model.BackendIdentity, job attemptJob) model.IterationResult {
	o.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", string(backend))))
	now := time.Now()
	result := model.IterationResult{
		Iteration: job.iteration,
		Seed:      job.seed,
		Message:   cancelledBeforeDispatch,
	}
	o.record(context.WithoutCancel(ctx), req, backend, result, now, now)
	return result
}

func (o *GenerationOrchestrator) runAttempt(parent context.Context, req model.GenerationRequest, adapter backends.Adapter, job attemptJob) model.IterationResult {
	backend := adapter.Identity()
	// In-flight attempts outlive a cancelled caller so that downloads and uploads
	// finish; the attempt timeout still bounds them.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), o.attemptTimeout)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, fmt.Sprintf("attempt_%03d", job.iteration))
	span.SetAttributes(attribute.Int("iteration", job.iteration), attribute.Int64("seed", job.seed))
	defer span.End()

	backendAttr := metric.WithAttributes(attribute.String("backend", string(backend)))
	o.attempts.Add(ctx, 1, backendAttr)
	started := time.Now()

	outcome := adapter.Generate(ctx, req.Spec.WithSeed(job.seed), req.Assets)
	result := model.IterationResult{
		Iteration: job.iteration,
		Success:   outcome.Success,
		JobID:     outcome.JobID,
		Seed:      job.seed,
		Message:   outcome.Message,
		Params:    outcome.Params,
	}

	if !outcome.Success {
		o.failures.Add(ctx, 1, backendAttr)
		span.SetStatus(codes.Error, outcome.Message)
		slog.WarnContext(ctx, "generation attempt failed", "backend", backend, "iteration", job.iteration, "message", outcome.Message)
		o.record(ctx, req, backend, result, started, time.Now())
		return result
	}

	locator := outcome.RemoteLocator
	result.RemoteLocator = &locator

	if o.persister != nil {
		asset, err := o.persister.Persist(ctx, locator, req.TenantID, req.CreativeID, job.iteration)
		switch {
		case err != nil:
			result.Message = fmt.Sprintf("%s; persistence failed: %v", outcome.Message, err)
			span.RecordError(err)
			slog.ErrorContext(ctx, "persisting generated asset failed", "locator", locator, "iteration", job.iteration, "error", err)
		case asset != nil:
			path := asset.Path
			result.StoragePath = &path
			if asset.URL != "" {
				url := asset.URL
				result.PersistedURL = &url
			}
			o.persisted.Add(ctx, 1, backendAttr)
		}
	}

	span.SetStatus(codes.Ok, "")
	o.record(ctx, req, backend, result, started, time.Now())
	return result
}

func (o *GenerationOrchestrator) record(ctx context.Context, req model.GenerationRequest, backend model.BackendIdentity, r model.IterationResult, started, finished time.Time) {
	if o.recorder == nil {
		return
	}
	params, _ := json.Marshal(r.Params)
	rec := model.AttemptRecord{
		AttemptID:        uuid.NewString(),
		TenantID:         req.TenantID,
		CreativeID:       req.CreativeID,
		Iteration:        r.Iteration,
		Backend:          string(backend),
		RequestedBackend: req.BackendName,
		Seed:             r.Seed,
		Success:          r.Success,
		RemoteLocator:    deref(r.RemoteLocator),
		PersistedURL:     deref(r.PersistedURL),
		StoragePath:      deref(r.StoragePath),
		JobID:            r.JobID,
		Message:          r.Message,
		Params:           string(params),
		StartedAt:        started.UTC(),
		FinishedAt:       finished.UTC(),
	}
	if err := o.recorder.Record(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "failed to record attempt", "iteration", r.Iteration, "error", err)
	}
}

func (o *GenerationOrchestrator) publish(ctx context.Context, agg *model.AggregateResult) {
	if o.events == nil {
		return
	}
	event := GenerationCompleted{
		TenantID:         agg.TenantID,
		CreativeID:       agg.CreativeID,
		Backend:          agg.Backend,
		RequestedBackend: agg.RequestedBackend,
		Success:          agg.Success,
		Variations:       len(agg.Results),
		Persisted:        agg.SuccessfulAssets(),
		StoragePaths:     make([]string, 0, len(agg.Results)),
		CompletedAt:      time.Now().UTC(),
	}
	for _, r := range agg.Results {
		if r.StoragePath != nil {
			event.StoragePaths = append(event.StoragePaths, *r.StoragePath)
		}
	}
	id, err := o.events.Publish(context.WithoutCancel(ctx), event, map[string]string{
		"event":       "generation.completed",
		"tenant_id":   agg.TenantID,
		"creative_id": agg.CreativeID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish completion event", "error", err)
		return
	}
	slog.DebugContext(ctx, "completion event published", "message_id", id)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
