// Package health tracks consecutive model failures and auto-disables models
// that repeatedly fail in ways that point at the model itself.
package health

import (
	"context"
	"errors"
	"time"

	"github.com/af-corp/prediction-orchestrator/internal/failure"
)

// ErrNotFound is returned for a model that was never registered.
var ErrNotFound = errors.New("model health record not found")

// Record is the persisted health state of one model. Records are created on
// registration and never deleted.
type Record struct {
	ModelID             string    `json:"model_id"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	AutoDisabled        bool      `json:"auto_disabled"`
	LastFailureAt       time.Time `json:"last_failure_at,omitzero"`
	// DisabledAt is the last counted failure while disabled; cooldown runs from it.
	DisabledAt          time.Time `json:"disabled_at,omitzero"`
	LastSuccessAt       time.Time `json:"last_success_at,omitzero"`
	LastFailureReason   string    `json:"last_failure_reason,omitempty"`
	LastErrorKind       string    `json:"last_error_kind,omitempty"`
}

// Failure describes one failed attempt to be applied to a record.
type Failure struct {
	At     time.Time
	Reason string
	Kind   failure.Kind
	// Counted failures increment the consecutive counter.
	Counted   bool
	Threshold int
}

// FailureResult is the record after a failure was applied. Disabled is true only
// on the transition into auto-disabled.
type FailureResult struct {
	Record   Record
	Disabled bool
}

// Store persists health records. Every method must be atomic per model so that
// concurrent batches never lose an update.
type Store interface {
	Register(ctx context.Context, modelID string) error
	RecordSuccess(ctx context.Context, modelID string, at time.Time) (Record, error)
	RecordFailure(ctx context.Context, modelID string, f Failure) (FailureResult, error)
	Reenable(ctx context.Context, modelID string) (Record, error)
	Get(ctx context.Context, modelID string) (Record, error)
	List(ctx context.Context) ([]Record, error)
}
