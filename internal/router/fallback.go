package router

import (
	"fmt"
	"sort"

	"github.com/af-corp/prediction-orchestrator/internal/config"
	"github.com/af-corp/prediction-orchestrator/internal/failure"
)

// CredentialCheck reports whether a provider can be called right now.
type CredentialCheck func(Provider) bool

// Resolver maps a primary model to the single model that stands in for it.
// It is immutable once built.
type Resolver struct {
	mappings      map[string]string
	registry      *Registry
	hasCredential CredentialCheck
}

// NewResolver validates every mapping against the registry and returns a single
// *failure.ConfigError listing all violations. A nil credentialCheck uses the
// registry's view of configured API keys.
func NewResolver(mappings map[string]string, registry *Registry, credentialCheck CredentialCheck) (*Resolver, error) {
	if credentialCheck == nil {
		credentialCheck = registry.HasCredential
	}

	primaries := make([]string, 0, len(mappings))
	for p := range mappings {
		primaries = append(primaries, p)
	}
	sort.Strings(primaries)

	var problems []string
	for _, primary := range primaries {
		target := mappings[primary]
		if _, ok := registry.Get(primary); !ok {
			problems = append(problems, fmt.Sprintf("fallback source %q is not a configured model", primary))
		}
		if _, ok := registry.Get(target); !ok {
			problems = append(problems, fmt.Sprintf("fallback for %q points at unknown model %q", primary, target))
			continue
		}
		if target == primary {
			problems = append(problems, fmt.Sprintf("model %q falls back to itself", primary))
			continue
		}
		next, chained := mappings[target]
		switch {
		case chained && next == primary:
			// Report each pair once
			if primary < target {
				problems = append(problems, fmt.Sprintf("models %q and %q fall back to each other", primary, target))
			}
		case chained:
			problems = append(problems, fmt.Sprintf("fallback target %q of %q has its own fallback %q; chains are not followed", target, primary, next))
		}
	}

	if len(problems) > 0 {
		return nil, &failure.ConfigError{Problems: problems, ValidIDs: registry.IDs()}
	}

	copied := make(map[string]string, len(mappings))
	for k, v := range mappings {
		copied[k] = v
	}
	return &Resolver{mappings: copied, registry: registry, hasCredential: credentialCheck}, nil
}

// Resolve returns the stand-in for primaryID, or false when there is no mapping
// or its backend has no credential.
func (r *Resolver) Resolve(primaryID string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	target, ok := r.mappings[primaryID]
	if !ok {
		return nil, false
	}
	p, ok := r.registry.Get(target)
	if !ok || !r.hasCredential(p) {
		return nil, false
	}
	return p, true
}

// Mappings returns a copy of the validated primary → fallback edges.
func (r *Resolver) Mappings() map[string]string {
	out := make(map[string]string, len(r.mappings))
	for k, v := range r.mappings {
		out[k] = v
	}
	return out
}

// Build builds the registry and its resolver from one configuration snapshot.
// Callers either get both or an error; a reload that fails here must keep the
// previous pair.
func Build(provCfg *config.ProvidersConfig, modelsCfg *config.ModelsConfig, opts BuildOptions) (*Registry, *Resolver, error) {
	reg, err := BuildFromConfig(provCfg, modelsCfg, opts)
	if err != nil {
		return nil, nil, err
	}
	res, err := NewResolver(modelsCfg.Fallbacks, reg, nil)
	if err != nil {
		return nil, nil, err
	}
	return reg, res, nil
}
