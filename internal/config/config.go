package config

import (
	"strconv"
	"time"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Screening     ScreeningConfig     `yaml:"screening"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	dsn := "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + strconv.Itoa(d.Port) + "/" + d.Name + "?sslmode=disable"
	if d.MaxOpenConns > 0 {
		dsn += "&pool_max_conns=" + strconv.Itoa(d.MaxOpenConns)
	}
	if d.MaxIdleConns > 0 {
		dsn += "&pool_min_conns=" + strconv.Itoa(d.MaxIdleConns)
	}
	if d.ConnMaxLifetime > 0 {
		dsn += "&pool_max_conn_lifetime=" + d.ConnMaxLifetime.String()
	}
	return dsn
}

type RedisConfig struct {
	Addresses []string `yaml:"addresses"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	PoolSize  int      `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

type OrchestrationConfig struct {
	// MaxConcurrency bounds in-flight model calls per batch. Zero means unbounded.
	MaxConcurrency   int           `yaml:"max_concurrency"`
	DefaultTimeout   time.Duration `yaml:"default_timeout"`
	ReasoningTimeout time.Duration `yaml:"reasoning_timeout"`
	Temperature      float64       `yaml:"temperature"`
	MaxTokens        int           `yaml:"max_tokens"`
	Retry            RetryConfig   `yaml:"retry"`
	Health           HealthConfig  `yaml:"health"`
}

type RetryConfig struct {
	MaxRetries          int           `yaml:"max_retries"`
	InitialInterval     time.Duration `yaml:"initial_interval"`
	MaxInterval         time.Duration `yaml:"max_interval"`
	Multiplier          float64       `yaml:"multiplier"`
	RandomizationFactor float64       `yaml:"randomization_factor"`
}

type HealthConfig struct {
	// Store is "postgres" or "memory".
	Store            string        `yaml:"store"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// ScreeningConfig controls the instruction-pattern check on inbound match fields.
type ScreeningConfig struct {
	Enabled        bool    `yaml:"enabled"`
	BlockThreshold float64 `yaml:"block_threshold"`
	FlagThreshold  float64 `yaml:"flag_threshold"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     300 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "predictions",
			User:            "predictor",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addresses: []string{"localhost:6379"},
			DB:        0,
			PoolSize:  50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		Orchestration: OrchestrationConfig{
			MaxConcurrency:   16,
			DefaultTimeout:   60 * time.Second,
			ReasoningTimeout: 90 * time.Second,
			Temperature:      0.3,
			MaxTokens:        4096,
			Retry: RetryConfig{
				MaxRetries:          3,
				InitialInterval:     time.Second,
				MaxInterval:         10 * time.Second,
				Multiplier:          2,
				RandomizationFactor: 0.5,
			},
			Health: HealthConfig{
				Store:            "postgres",
				FailureThreshold: 5,
				Cooldown:         time.Hour,
			},
		},
		Screening: ScreeningConfig{
			Enabled:        true,
			BlockThreshold: 0.9,
			FlagThreshold:  0.7,
		},
	}
}
