package config

type ProvidersConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one vendor backend (Synthetic, Together, ...). Several
// models usually share a backend.
type ProviderConfig struct {
	Type              string            `yaml:"type"`
	BaseURL           string            `yaml:"base_url"`
	APIKey            string            `yaml:"api_key"`
	APIVersion        string            `yaml:"api_version,omitempty"`
	MaxConcurrent     int               `yaml:"max_concurrent"`
	RequestsPerSecond float64           `yaml:"requests_per_second"`
	Burst             int               `yaml:"burst"`
	Headers           map[string]string `yaml:"headers,omitempty"`
}

// HasCredential reports whether the backend can be called at all.
func (p ProviderConfig) HasCredential() bool {
	return p.APIKey != ""
}
