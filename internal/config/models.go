package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/af-corp/prediction-orchestrator/internal/failure"
)

type ModelsConfig struct {
	Models map[string]ModelConfig `yaml:"models"`
	// Fallbacks maps a primary model id to the single model that stands in for it.
	Fallbacks map[string]string `yaml:"fallbacks"`
}

type ModelConfig struct {
	DisplayName string `yaml:"display_name"`
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Reasoning   bool   `yaml:"reasoning"`
	// Active defaults to true. Inactive models are never fanned out to but may
	// still serve as a fallback target.
	Active  *bool         `yaml:"active,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Pricing PriceEntry    `yaml:"pricing"`
}

func (m ModelConfig) IsActive() bool {
	return m.Active == nil || *m.Active
}

// PriceEntry is USD per million tokens.
type PriceEntry struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// IDs returns the configured model ids in sorted order.
func (mc *ModelsConfig) IDs() []string {
	ids := make([]string, 0, len(mc.Models))
	for id := range mc.Models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidateModels checks that every model points at a configured backend. Fallback
// graph checks need the built registry and live in the router.
func ValidateModels(models *ModelsConfig, providers *ProvidersConfig) error {
	var problems []string
	for _, id := range models.IDs() {
		m := models.Models[id]
		if m.Model == "" {
			problems = append(problems, fmt.Sprintf("model %q has no upstream model name", id))
		}
		if _, ok := providers.Providers[m.Provider]; !ok {
			problems = append(problems, fmt.Sprintf("model %q references unknown provider %q", id, m.Provider))
		}
	}
	if len(problems) > 0 {
		return &failure.ConfigError{Problems: problems, ValidIDs: models.IDs()}
	}
	return nil
}
