package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/af-corp/prediction-orchestrator/internal/config"
	"github.com/af-corp/prediction-orchestrator/internal/failure"
	"github.com/af-corp/prediction-orchestrator/internal/telemetry"
)

// Status is a record together with the tracker's verdict on it.
type Status struct {
	Record
	Active bool `json:"active"`
	// ProbationAt is when an auto-disabled model becomes eligible again.
	ProbationAt time.Time `json:"probation_at,omitzero"`
}

// Tracker applies the auto-disable policy on top of a Store.
//
// A model is auto-disabled once it accumulates FailureThreshold consecutive
// model-specific failures. It stays out of batches until Cooldown has passed
// since its last failure, then runs on probation: the next success clears the
// flag, the next counted failure restarts the cooldown.
type Tracker struct {
	store     Store
	threshold int
	cooldown  time.Duration
	metrics   *telemetry.Metrics
	now       func() time.Time
}

func NewTracker(store Store, cfg config.HealthConfig, metrics *telemetry.Metrics) *Tracker {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	return &Tracker{
		store:     store,
		threshold: threshold,
		cooldown:  cfg.Cooldown,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Register creates records for models seen for the first time.
func (t *Tracker) Register(ctx context.Context, modelIDs ...string) error {
	for _, id := range modelIDs {
		if err := t.store.Register(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) RecordSuccess(ctx context.Context, modelID string) error {
	if _, err := t.store.RecordSuccess(ctx, modelID, t.now()); err != nil {
		return err
	}
	t.setActive(modelID, true)
	return nil
}

// RecordFailure always stamps the failure time and reason, but only failures
// of a model-specific kind move the consecutive counter.
func (t *Tracker) RecordFailure(ctx context.Context, modelID, reason string, kind failure.Kind) error {
	res, err := t.store.RecordFailure(ctx, modelID, Failure{
		At:        t.now(),
		Reason:    failure.Truncate(reason, 500),
		Kind:      kind,
		Counted:   failure.IsModelSpecific(kind),
		Threshold: t.threshold,
	})
	if err != nil {
		return err
	}

	if res.Disabled {
		slog.Warn("model auto-disabled",
			"model_id", modelID,
			"consecutive_failures", res.Record.ConsecutiveFailures,
			"error_kind", kind,
			"reason", res.Record.LastFailureReason,
			"cooldown", t.cooldown,
		)
		if t.metrics != nil {
			t.metrics.RecordAutoDisabled(modelID)
		}
	}
	return nil
}

// IsActive reports whether the model may take part in the next batch. Store
// errors fail open: a model is never silently dropped because the health
// database is unreachable.
func (t *Tracker) IsActive(ctx context.Context, modelID string) bool {
	rec, err := t.store.Get(ctx, modelID)
	if err != nil {
		slog.Error("health lookup failed, treating model as active",
			"model_id", modelID,
			"error", err,
		)
		return true
	}
	return t.active(rec)
}

func (t *Tracker) active(rec Record) bool {
	if !rec.AutoDisabled {
		return true
	}
	return !t.now().Before(rec.DisabledAt.Add(t.cooldown))
}

// Reenable clears the auto-disabled flag after manual re-verification.
func (t *Tracker) Reenable(ctx context.Context, modelID string) (Status, error) {
	rec, err := t.store.Reenable(ctx, modelID)
	if err != nil {
		return Status{}, fmt.Errorf("reenable %s: %w", modelID, err)
	}
	slog.Info("model re-enabled", "model_id", modelID)
	t.setActive(modelID, true)
	return t.status(rec), nil
}

func (t *Tracker) Get(ctx context.Context, modelID string) (Status, error) {
	rec, err := t.store.Get(ctx, modelID)
	if err != nil {
		return Status{}, err
	}
	return t.status(rec), nil
}

func (t *Tracker) List(ctx context.Context) ([]Status, error) {
	recs, err := t.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, len(recs))
	for i, rec := range recs {
		out[i] = t.status(rec)
	}
	return out, nil
}

func (t *Tracker) status(rec Record) Status {
	s := Status{Record: rec, Active: t.active(rec)}
	if rec.AutoDisabled {
		s.ProbationAt = rec.DisabledAt.Add(t.cooldown)
	}
	return s
}

func (t *Tracker) setActive(modelID string, active bool) {
	if t.metrics != nil {
		t.metrics.SetModelActive(modelID, active)
	}
}
