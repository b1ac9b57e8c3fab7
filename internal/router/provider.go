package router

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/af-corp/prediction-orchestrator/internal/config"
	"github.com/af-corp/prediction-orchestrator/internal/ratelimit"
	"github.com/af-corp/prediction-orchestrator/internal/router/adapters"
	"github.com/af-corp/prediction-orchestrator/internal/telemetry"
	"github.com/af-corp/prediction-orchestrator/internal/types"
)

// Provider is one callable model endpoint. Providers are built once from static
// configuration and are safe for concurrent use.
type Provider interface {
	ID() string
	DisplayName() string
	// Backend names the vendor backend the provider calls.
	Backend() string
	SupportsReasoningOutput() bool
	PredictBatch(ctx context.Context, systemPrompt, userPrompt string) (*types.Completion, error)
	// EstimateCost returns the USD cost of a call with the given token counts.
	EstimateCost(inputTokens, outputTokens int) float64
}

// Registry is an immutable set of providers keyed by model id.
type Registry struct {
	providers map[string]Provider
	// credentials reports per backend whether an API key is configured.
	credentials map[string]bool
	// inactive models only serve as fallback targets.
	inactive map[string]bool
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{
		providers:   make(map[string]Provider, len(providers)),
		credentials: make(map[string]bool),
	}
	for _, p := range providers {
		r.providers[p.ID()] = p
		r.credentials[p.Backend()] = true
	}
	return r
}

func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// IDs returns all model ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Active returns the providers that take part in batches, sorted by id.
func (r *Registry) Active() []Provider {
	var out []Provider
	for _, id := range r.IDs() {
		if !r.inactive[id] {
			out = append(out, r.providers[id])
		}
	}
	return out
}

// HasCredential reports whether the backend behind a provider can be called.
func (r *Registry) HasCredential(p Provider) bool {
	return r.credentials[p.Backend()]
}

// BuildOptions carries the shared dependencies of every endpoint.
type BuildOptions struct {
	Orchestration config.OrchestrationConfig
	// Redis, when set, makes backend throttles shared across replicas.
	Redis   *redis.Client
	Metrics *telemetry.Metrics
}

// BuildFromConfig builds one endpoint per configured model. Models on the same
// backend share its HTTP client, throttle and concurrency gate.
func BuildFromConfig(provCfg *config.ProvidersConfig, modelsCfg *config.ModelsConfig, opts BuildOptions) (*Registry, error) {
	type backend struct {
		adapter  adapters.ProviderAdapter
		throttle ratelimit.Throttle
		gate     *ratelimit.Gate
	}
	backends := make(map[string]backend, len(provCfg.Providers))
	credentials := make(map[string]bool, len(provCfg.Providers))

	for name, cfg := range provCfg.Providers {
		client := &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxConcurrent,
				MaxIdleConnsPerHost: cfg.MaxConcurrent,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}

		var adapter adapters.ProviderAdapter
		switch cfg.Type {
		case "openai", "together":
			adapter = adapters.NewOpenAIAdapter(cfg, client)
		case "synthetic":
			adapter = adapters.NewSyntheticAdapter(cfg, client)
		case "anthropic":
			adapter = adapters.NewAnthropicAdapter(cfg, client)
		default:
			// Fall back to OpenAI-compatible for unknown types
			adapter = adapters.NewOpenAIAdapter(cfg, client)
		}

		backends[name] = backend{
			adapter:  adapter,
			throttle: ratelimit.NewThrottle(name, cfg.RequestsPerSecond, cfg.Burst, opts.Redis),
			gate:     ratelimit.NewGate(cfg.MaxConcurrent),
		}
		credentials[name] = cfg.HasCredential()
	}

	registry := &Registry{
		providers:   make(map[string]Provider, len(modelsCfg.Models)),
		credentials: credentials,
		inactive:    make(map[string]bool),
	}
	for _, id := range modelsCfg.IDs() {
		mc := modelsCfg.Models[id]
		b, ok := backends[mc.Provider]
		if !ok {
			return nil, fmt.Errorf("model %q references unknown provider %q", id, mc.Provider)
		}
		if !mc.IsActive() {
			registry.inactive[id] = true
		}
		registry.providers[id] = NewEndpoint(EndpointConfig{
			ID:            id,
			Backend:       mc.Provider,
			Model:         mc,
			Adapter:       b.adapter,
			Throttle:      b.throttle,
			Gate:          b.gate,
			Orchestration: opts.Orchestration,
			Metrics:       opts.Metrics,
		})
	}
	return registry, nil
}
