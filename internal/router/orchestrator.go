package router

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/af-corp/prediction-orchestrator/internal/failure"
	"github.com/af-corp/prediction-orchestrator/internal/telemetry"
	"github.com/af-corp/prediction-orchestrator/internal/types"
)

// Outcome is a successful call. ServedBy is the id of the provider that actually
// answered and must never leave the service.
type Outcome struct {
	Completion   *types.Completion
	UsedFallback bool
	ServedBy     string
}

// Orchestrator calls a provider and, on any failure, its configured fallback
// exactly once. The resolver can be swapped at runtime on config reload.
type Orchestrator struct {
	resolver atomic.Pointer[Resolver]
	metrics  *telemetry.Metrics
}

func NewOrchestrator(resolver *Resolver, metrics *telemetry.Metrics) *Orchestrator {
	o := &Orchestrator{metrics: metrics}
	o.resolver.Store(resolver)
	return o
}

// SetResolver replaces the fallback mapping used by subsequent calls.
func (o *Orchestrator) SetResolver(r *Resolver) {
	o.resolver.Store(r)
}

func (o *Orchestrator) Resolver() *Resolver {
	return o.resolver.Load()
}

// CallWithFallback never retries the primary; its retry budget is spent inside
// the provider. With no usable fallback the primary's error is returned as is.
// If the fallback fails too the result is a *failure.FallbackExhaustedError.
func (o *Orchestrator) CallWithFallback(ctx context.Context, p Provider, systemPrompt, userPrompt string) (Outcome, error) {
	completion, err := p.PredictBatch(ctx, systemPrompt, userPrompt)
	if err == nil {
		return Outcome{Completion: completion, ServedBy: p.ID()}, nil
	}

	// A cancelled caller is not a provider fault; don't spend a fallback on it.
	if ctx.Err() != nil {
		slog.Info("provider call abandoned",
			"model_id", p.ID(),
			"error", ctx.Err(),
		)
		return Outcome{}, err
	}

	kind := failure.Classify(err)
	slog.Warn("provider call failed",
		"model_id", p.ID(),
		"error_kind", kind,
		"error", failure.Truncate(err.Error(), 300),
	)

	secondary, ok := o.resolver.Load().Resolve(p.ID())
	if !ok {
		o.recordFallback(p.ID(), "unavailable")
		return Outcome{}, err
	}

	slog.Info("falling back",
		"model_id", p.ID(),
		"fallback_id", secondary.ID(),
		"error_kind", kind,
	)

	completion, fbErr := secondary.PredictBatch(ctx, systemPrompt, userPrompt)
	if fbErr != nil {
		o.recordFallback(p.ID(), "exhausted")
		slog.Error("fallback also failed",
			"model_id", p.ID(),
			"fallback_id", secondary.ID(),
			"error_kind", failure.Classify(fbErr),
			"error", failure.Truncate(fbErr.Error(), 300),
		)
		return Outcome{}, &failure.FallbackExhaustedError{
			PrimaryID:   p.ID(),
			FallbackID:  secondary.ID(),
			PrimaryErr:  err,
			FallbackErr: fbErr,
		}
	}

	o.recordFallback(p.ID(), "served")
	return Outcome{Completion: completion, UsedFallback: true, ServedBy: secondary.ID()}, nil
}

func (o *Orchestrator) recordFallback(modelID, result string) {
	if o.metrics != nil {
		o.metrics.RecordFallback(modelID, result)
	}
}
