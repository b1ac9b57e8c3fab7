// Package coordinator fans one match out to every active model and collects
// the per-model outcomes.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/af-corp/prediction-orchestrator/internal/failure"
	"github.com/af-corp/prediction-orchestrator/internal/parser"
	"github.com/af-corp/prediction-orchestrator/internal/router"
	"github.com/af-corp/prediction-orchestrator/internal/store"
	"github.com/af-corp/prediction-orchestrator/internal/telemetry"
	"github.com/af-corp/prediction-orchestrator/internal/types"
	"github.com/af-corp/prediction-orchestrator/internal/validate"
)

// Caller runs a provider call with fallback.
type Caller interface {
	CallWithFallback(ctx context.Context, p router.Provider, systemPrompt, userPrompt string) (router.Outcome, error)
}

// HealthTracker is the part of health.Tracker the coordinator uses.
type HealthTracker interface {
	IsActive(ctx context.Context, modelID string) bool
	RecordSuccess(ctx context.Context, modelID string) error
	RecordFailure(ctx context.Context, modelID, reason string, kind failure.Kind) error
}

type PredictionStore interface {
	Save(ctx context.Context, p types.Prediction, meta store.Meta) error
	LogAttempt(ctx context.Context, a types.Attempt) error
}

type SpendRecorder interface {
	Record(ctx context.Context, modelID string, costUSD float64, usedFallback bool) error
}

// Options wires a Coordinator. Spend and Metrics may be nil.
type Options struct {
	Registry       *router.Registry
	Caller         Caller
	Health         HealthTracker
	Store          PredictionStore
	Spend          SpendRecorder
	Metrics        *telemetry.Metrics
	MaxConcurrency int
}

type Coordinator struct {
	registry       atomic.Pointer[router.Registry]
	caller         Caller
	health         HealthTracker
	store          PredictionStore
	spend          SpendRecorder
	metrics        *telemetry.Metrics
	maxConcurrency int
}

func New(opts Options) *Coordinator {
	c := &Coordinator{
		caller:         opts.Caller,
		health:         opts.Health,
		store:          opts.Store,
		spend:          opts.Spend,
		metrics:        opts.Metrics,
		maxConcurrency: opts.MaxConcurrency,
	}
	c.registry.Store(opts.Registry)
	return c
}

// SetRegistry swaps the provider set used by subsequent batches.
func (c *Coordinator) SetRegistry(r *router.Registry) {
	c.registry.Store(r)
}

func (c *Coordinator) Registry() *router.Registry {
	return c.registry.Load()
}

// PredictAll asks every active model for a prediction of one match. Models run
// concurrently and independently: a failing or panicking model never cancels
// its siblings. The result is keyed by the requested model id.
func (c *Coordinator) PredictAll(ctx context.Context, match types.MatchContext) map[string]types.Attempt {
	start := time.Now()
	batchID := uuid.NewString()
	reg := c.registry.Load()

	var selected []router.Provider
	for _, p := range reg.Active() {
		if c.health.IsActive(ctx, p.ID()) {
			selected = append(selected, p)
			continue
		}
		slog.Info("skipping auto-disabled model", "model_id", p.ID(), "match_id", match.MatchID)
	}

	system, user := SystemPrompt(), UserPrompt(match)
	results := make(map[string]types.Attempt, len(selected))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem chan struct{}
	)
	if c.maxConcurrency > 0 {
		sem = make(chan struct{}, c.maxConcurrency)
	}

	for _, p := range selected {
		wg.Add(1)
		go func(p router.Provider) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			a := c.safeAttempt(ctx, reg, batchID, match, p, system, user)

			mu.Lock()
			results[p.ID()] = a
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	succeeded := 0
	for _, a := range results {
		if a.OK() {
			succeeded++
		}
	}
	slog.Info("batch completed",
		"batch_id", batchID,
		"match_id", match.MatchID,
		"models", len(selected),
		"succeeded", succeeded,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if c.metrics != nil {
		c.metrics.RecordBatch(float64(time.Since(start).Milliseconds()))
	}
	return results
}

func (c *Coordinator) safeAttempt(ctx context.Context, reg *router.Registry, batchID string, match types.MatchContext, p router.Provider, system, user string) (a types.Attempt) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("prediction attempt panicked", "model_id", p.ID(), "panic", r)
			a = c.fail(context.WithoutCancel(ctx),
				types.Attempt{BatchID: batchID, MatchID: match.MatchID, ModelID: p.ID()},
				start, fmt.Errorf("panic: %v", r), false)
		}
	}()
	return c.attempt(ctx, reg, batchID, match, p, system, user)
}

// attempt runs call → parse → validate → persist → health for one model.
func (c *Coordinator) attempt(ctx context.Context, reg *router.Registry, batchID string, match types.MatchContext, p router.Provider, system, user string) types.Attempt {
	start := time.Now()
	a := types.Attempt{BatchID: batchID, MatchID: match.MatchID, ModelID: p.ID()}
	expected := []string{match.MatchID}
	// Bookkeeping must land even if the caller gave up on the batch.
	bg := context.WithoutCancel(ctx)

	out, err := c.caller.CallWithFallback(ctx, p, system, user)
	if err != nil {
		// Failures caused by the caller going away are not charged to the model.
		return c.fail(bg, a, start, err, ctx.Err() == nil)
	}

	a.UsedFallback = out.UsedFallback
	a.ServedBy = out.ServedBy
	a.RawResponse = out.Completion.Content
	a.Usage = out.Completion.Usage
	a.EstimatedCost = servingProvider(reg, p, out).EstimateCost(a.Usage.PromptTokens, a.Usage.CompletionTokens)

	parsed := parser.Parse(out.Completion.Content, expected)
	if err := parsed.Err(); err != nil {
		return c.fail(bg, a, start, err, true)
	}
	if c.metrics != nil {
		c.metrics.RecordParseStrategy(parsed.Strategy)
	}

	preds, rejected := validate.ValidateAll(parsed.Candidates, expected)
	if len(preds) == 0 {
		return c.fail(bg, a, start, validate.Merge(rejected), true)
	}
	if len(rejected) > 0 {
		slog.Warn("dropped invalid candidates",
			"model_id", p.ID(),
			"match_id", match.MatchID,
			"error", validate.Merge(rejected),
		)
	}

	for _, pred := range preds {
		meta := store.Meta{BatchID: batchID, ModelID: p.ID(), UsedFallback: out.UsedFallback}
		if err := c.store.Save(bg, pred, meta); err != nil {
			return c.fail(bg, a, start, &persistError{err: err}, false)
		}
	}
	a.Predictions = preds

	if err := c.health.RecordSuccess(bg, p.ID()); err != nil {
		slog.Error("failed to record model success", "model_id", p.ID(), "error", err)
	}
	return c.finish(bg, a, start)
}

// fail records a failed attempt. Health is only touched when the failure can be
// attributed to the model, never for our own persistence errors.
func (c *Coordinator) fail(ctx context.Context, a types.Attempt, start time.Time, err error, chargeModel bool) types.Attempt {
	kind := failure.Classify(err)
	var pe *persistError
	if errors.As(err, &pe) {
		kind = failure.KindPersistence
	}

	a.Err = err
	a.ErrorKind = string(kind)
	a.Predictions = nil

	slog.Warn("prediction attempt failed",
		"model_id", a.ModelID,
		"match_id", a.MatchID,
		"used_fallback", a.UsedFallback,
		"error_kind", kind,
		"error", failure.Truncate(err.Error(), 300),
	)

	if chargeModel {
		if herr := c.health.RecordFailure(ctx, a.ModelID, err.Error(), kind); herr != nil {
			slog.Error("failed to record model failure", "model_id", a.ModelID, "error", herr)
		}
	}
	return c.finish(ctx, a, start)
}

func (c *Coordinator) finish(ctx context.Context, a types.Attempt, start time.Time) types.Attempt {
	a.Duration = time.Since(start)

	if c.spend != nil && a.EstimatedCost > 0 {
		if err := c.spend.Record(ctx, a.ModelID, a.EstimatedCost, a.UsedFallback); err != nil {
			slog.Warn("failed to record spend", "model_id", a.ModelID, "error", err)
		}
	}
	if err := c.store.LogAttempt(ctx, a); err != nil {
		slog.Warn("failed to log attempt", "model_id", a.ModelID, "error", err)
	}
	if c.metrics != nil {
		outcome := "success"
		if !a.OK() {
			outcome = a.ErrorKind
		}
		c.metrics.RecordAttempt(telemetry.AttemptLabels{
			Model:            a.ModelID,
			Outcome:          outcome,
			UsedFallback:     a.UsedFallback,
			PromptTokens:     a.Usage.PromptTokens,
			CompletionTokens: a.Usage.CompletionTokens,
			CostUSD:          a.EstimatedCost,
		})
	}
	return a
}

// servingProvider prices a call by the endpoint that actually answered.
func servingProvider(reg *router.Registry, p router.Provider, out router.Outcome) router.Provider {
	if !out.UsedFallback {
		return p
	}
	if served, ok := reg.Get(out.ServedBy); ok {
		return served
	}
	return p
}

type persistError struct{ err error }

func (e *persistError) Error() string { return "persist prediction: " + e.err.Error() }
func (e *persistError) Unwrap() error { return e.err }
