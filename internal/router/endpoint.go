package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/af-corp/prediction-orchestrator/internal/config"
	"github.com/af-corp/prediction-orchestrator/internal/failure"
	"github.com/af-corp/prediction-orchestrator/internal/ratelimit"
	"github.com/af-corp/prediction-orchestrator/internal/router/adapters"
	"github.com/af-corp/prediction-orchestrator/internal/telemetry"
	"github.com/af-corp/prediction-orchestrator/internal/types"
)

// EndpointConfig is everything NewEndpoint needs. Throttle and Gate may be nil.
type EndpointConfig struct {
	ID            string
	Backend       string
	Model         config.ModelConfig
	Adapter       adapters.ProviderAdapter
	Throttle      ratelimit.Throttle
	Gate          *ratelimit.Gate
	Orchestration config.OrchestrationConfig
	Metrics       *telemetry.Metrics
}

// Endpoint is a Provider that calls one upstream model through a vendor adapter,
// retrying transient failures with exponential backoff.
type Endpoint struct {
	id          string
	displayName string
	backend     string
	upstream    string
	reasoning   bool
	pricing     config.PriceEntry
	timeout     time.Duration
	temperature float64
	maxTokens   int
	retry       config.RetryConfig

	adapter  adapters.ProviderAdapter
	throttle ratelimit.Throttle
	gate     *ratelimit.Gate
	metrics  *telemetry.Metrics
}

func NewEndpoint(c EndpointConfig) *Endpoint {
	timeout := c.Orchestration.DefaultTimeout
	if c.Model.Reasoning && c.Orchestration.ReasoningTimeout > 0 {
		timeout = c.Orchestration.ReasoningTimeout
	}
	if c.Model.Timeout > 0 {
		timeout = c.Model.Timeout
	}

	name := c.Model.DisplayName
	if name == "" {
		name = c.ID
	}

	return &Endpoint{
		id:          c.ID,
		displayName: name,
		backend:     c.Backend,
		upstream:    c.Model.Model,
		reasoning:   c.Model.Reasoning,
		pricing:     c.Model.Pricing,
		timeout:     timeout,
		temperature: c.Orchestration.Temperature,
		maxTokens:   c.Orchestration.MaxTokens,
		retry:       c.Orchestration.Retry,
		adapter:     c.Adapter,
		throttle:    c.Throttle,
		gate:        c.Gate,
		metrics:     c.Metrics,
	}
}

func (e *Endpoint) ID() string                    { return e.id }
func (e *Endpoint) DisplayName() string           { return e.displayName }
func (e *Endpoint) Backend() string               { return e.backend }
func (e *Endpoint) SupportsReasoningOutput() bool { return e.reasoning }
func (e *Endpoint) Timeout() time.Duration        { return e.timeout }

// EstimateCost prices are USD per million tokens.
func (e *Endpoint) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*e.pricing.Input/1_000_000 +
		float64(outputTokens)*e.pricing.Output/1_000_000
}

// PredictBatch sends one chat completion and returns the raw completion. Errors
// are wrapped but not classified.
func (e *Endpoint) PredictBatch(ctx context.Context, systemPrompt, userPrompt string) (*types.Completion, error) {
	temperature := e.temperature
	req := &types.CompletionRequest{
		Model: e.upstream,
		Messages: []types.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: &temperature,
	}
	if e.maxTokens > 0 {
		maxTokens := e.maxTokens
		req.MaxTokens = &maxTokens
	}

	bo := &retryAfterBackOff{BackOff: e.newBackOff(), max: e.retry.MaxInterval}
	var (
		completion *types.Completion
		calls      int
	)
	op := func() error {
		calls++
		c, err := e.call(ctx, req)
		if err == nil {
			completion = c
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		var st *failure.StatusError
		switch {
		case errors.As(err, &st):
			if !st.Transient() {
				return backoff.Permanent(err)
			}
			bo.hint = st.RetryAfter
		case errors.Is(err, failure.ErrEmptyResponse), errors.Is(err, errBuildRequest):
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("provider call failed, retrying",
			"model_id", e.id,
			"backend", e.backend,
			"attempt", calls,
			"wait", wait,
			"error", err,
		)
	}

	start := time.Now()
	err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)

	status := "success"
	if err != nil {
		status = string(failure.Classify(err))
	}
	if e.metrics != nil {
		e.metrics.RecordProviderCall(telemetry.ProviderLabels{
			Model:      e.id,
			Backend:    e.backend,
			Status:     status,
			DurationMs: float64(time.Since(start).Milliseconds()),
			Retries:    calls - 1,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("%s via %s: %w", e.id, e.backend, err)
	}
	return completion, nil
}

var errBuildRequest = errors.New("build provider request")

// call performs exactly one HTTP round trip under the per-call timeout.
func (e *Endpoint) call(ctx context.Context, req *types.CompletionRequest) (*types.Completion, error) {
	if e.throttle != nil {
		if err := e.throttle.Wait(ctx); err != nil {
			return nil, fmt.Errorf("throttle: %w", err)
		}
	}
	if err := e.gate.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("concurrency gate: %w", err)
	}
	defer e.gate.Release()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	httpReq, err := e.adapter.TransformRequest(callCtx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBuildRequest, err)
	}
	resp, err := e.adapter.SendRequest(httpReq)
	if err != nil {
		return nil, err
	}
	return e.adapter.TransformResponse(callCtx, resp)
}

func (e *Endpoint) newBackOff() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	if e.retry.InitialInterval > 0 {
		expo.InitialInterval = e.retry.InitialInterval
	}
	if e.retry.MaxInterval > 0 {
		expo.MaxInterval = e.retry.MaxInterval
	}
	if e.retry.Multiplier > 0 {
		expo.Multiplier = e.retry.Multiplier
	}
	expo.RandomizationFactor = e.retry.RandomizationFactor
	// The retry count bounds the loop, the per-call timeout bounds each attempt.
	expo.MaxElapsedTime = 0
	expo.Reset()

	return backoff.WithMaxRetries(expo, uint64(max(e.retry.MaxRetries, 0)))
}

// retryAfterBackOff stretches the next wait to a server-provided Retry-After,
// capped at max.
type retryAfterBackOff struct {
	backoff.BackOff
	max  time.Duration
	hint time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.hint > next {
		next = b.hint
		if b.max > 0 && next > b.max {
			next = b.max
		}
	}
	b.hint = 0
	return next
}
