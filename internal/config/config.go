package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Bank       BankConfig       `koanf:"bank"`
	Models     ModelsConfig     `koanf:"models"`
	Routing    RoutingConfig    `koanf:"routing"`
	Compliance ComplianceConfig `koanf:"compliance"`
	Engine     EngineConfig     `koanf:"engine"`
	Store      StoreConfig      `koanf:"store"`
	Aggregator AggregatorConfig `koanf:"aggregator"`
	Ingress    IngressConfig    `koanf:"ingress"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type BankConfig struct {
	Name      string `koanf:"name"`
	DefaultID string `koanf:"default_id"`
}

type ModelsConfig struct {
	Default             string          `koanf:"default"`
	Fallback            string          `koanf:"fallback"`
	Embedding           string          `koanf:"embedding"`
	MaxFallbackAttempts int             `koanf:"max_fallback_attempts"`
	Registry            []ModelRegistry `koanf:"registry"`
}

type ModelRegistry struct {
	Name           string `koanf:"name"`
	Provider       string `koanf:"provider"`
	BaseURL        string `koanf:"base_url"`
	APIKey         string `koanf:"api_key"`
	RequestTimeout string `koanf:"request_timeout"`
}

type RoutingConfig struct {
	Strategy      string  `koanf:"strategy"` // "keyword" | "vector"
	MinConfidence float64 `koanf:"min_confidence"`
}

type ComplianceConfig struct {
	RedactPatterns []string `koanf:"redact_patterns"`
}

type EngineConfig struct {
	TurnDeadline           string `koanf:"turn_deadline"`
	HistoryLimit           int    `koanf:"history_limit"`
	WriteRetryMax          int    `koanf:"write_retry_max"`
	WriteRetryBackoff      string `koanf:"write_retry_backoff"`
	GenerationRetryMax     int    `koanf:"generation_retry_max"`
	GenerationMaxTokens    int    `koanf:"generation_max_tokens"`
	GenerationTemperature  float64 `koanf:"generation_temperature"`
}

type StoreConfig struct {
	Path         string `koanf:"path"`
	LockTimeout  string `koanf:"lock_timeout"`
	LockRetry    string `koanf:"lock_retry"`
	LockMaxRetry int    `koanf:"lock_max_retry"`
}

type AggregatorConfig struct {
	Schedule          string `koanf:"schedule"`
	ReconcileSchedule string `koanf:"reconcile_schedule"`
}

type IngressConfig struct {
	IdempotencyPath string `koanf:"idempotency_path"`
	IdempotencyTTL  string `koanf:"idempotency_ttl"`
}

const (
	DefaultServerPort            = 8080
	DefaultServerLogLevel        = "info"
	DefaultServerReadTimeout     = "10s"
	DefaultServerWriteTimeout    = "30s"
	DefaultServerIdleTimeout     = "60s"
	DefaultServerShutdownTimeout = "5s"

	DefaultBankName = "your bank"
	DefaultBankID   = "default"

	DefaultModelDefault             = "asi1-mini"
	DefaultModelFallback            = "claude-3-5-haiku-latest"
	DefaultModelEmbedding           = "text-embedding-3-small"
	DefaultModelMaxFallbackAttempts = 2
	DefaultASIOneBaseURL            = "https://api.asi1.ai/v1"
	DefaultModelRequestTimeout      = "30s"

	DefaultRoutingStrategy      = "keyword"
	DefaultRoutingMinConfidence = 0.25

	DefaultEngineTurnDeadline          = "45s"
	DefaultEngineHistoryLimit          = 15
	DefaultEngineWriteRetryMax         = 3
	DefaultEngineWriteRetryBackoff     = "100ms"
	DefaultEngineGenerationRetryMax    = 1
	DefaultEngineGenerationMaxTokens   = 200
	DefaultEngineGenerationTemperature = 0.3

	DefaultStoreLockTimeout  = "30s"
	DefaultStoreLockRetry    = "100ms"
	DefaultStoreLockMaxRetry = 300

	DefaultAggregatorSchedule          = "10 0 * * *"
	DefaultAggregatorReconcileSchedule = "*/15 * * * *"

	DefaultIngressIdempotencyTTL = "24h"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	dataDir := filepath.Join(os.Getenv("HOME"), ".tellerline")

	defaults := map[string]interface{}{
		"server.port":              DefaultServerPort,
		"server.log_level":         DefaultServerLogLevel,
		"server.read_timeout":      DefaultServerReadTimeout,
		"server.write_timeout":     DefaultServerWriteTimeout,
		"server.idle_timeout":      DefaultServerIdleTimeout,
		"server.shutdown_timeout":  DefaultServerShutdownTimeout,
		"bank.name":                DefaultBankName,
		"bank.default_id":          DefaultBankID,
		"models.default":           DefaultModelDefault,
		"models.fallback":          DefaultModelFallback,
		"models.embedding":         DefaultModelEmbedding,
		"models.max_fallback_attempts": DefaultModelMaxFallbackAttempts,
		"models.registry": []ModelRegistry{
			{Name: DefaultModelDefault, Provider: "openai", BaseURL: DefaultASIOneBaseURL},
			{Name: DefaultModelFallback, Provider: "anthropic"},
		},
		"routing.strategy":              DefaultRoutingStrategy,
		"routing.min_confidence":        DefaultRoutingMinConfidence,
		"compliance.redact_patterns":    []string{`\b\d{3}-\d{2}-\d{4}\b`, `\b(?:\d[ -]*?){13,16}\b`},
		"engine.turn_deadline":          DefaultEngineTurnDeadline,
		"engine.history_limit":          DefaultEngineHistoryLimit,
		"engine.write_retry_max":        DefaultEngineWriteRetryMax,
		"engine.write_retry_backoff":    DefaultEngineWriteRetryBackoff,
		"engine.generation_retry_max":   DefaultEngineGenerationRetryMax,
		"engine.generation_max_tokens":  DefaultEngineGenerationMaxTokens,
		"engine.generation_temperature": DefaultEngineGenerationTemperature,
		"store.path":                    filepath.Join(dataDir, "tellerline.db"),
		"store.lock_timeout":            DefaultStoreLockTimeout,
		"store.lock_retry":              DefaultStoreLockRetry,
		"store.lock_max_retry":          DefaultStoreLockMaxRetry,
		"aggregator.schedule":           DefaultAggregatorSchedule,
		"aggregator.reconcile_schedule": DefaultAggregatorReconcileSchedule,
		"ingress.idempotency_path":      filepath.Join(dataDir, "deliveries.json"),
		"ingress.idempotency_ttl":       DefaultIngressIdempotencyTTL,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".tellerline", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("TELLERLINE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TELLERLINE_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.Models.Registry {
		if m.Provider == "" {
			cfg.Models.Registry[i].Provider = "openai"
		}
	}

	// Inject standard env vars when the registry omits keys.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "openai" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("ASI_ONE_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "openai" && m.BaseURL == DefaultASIOneBaseURL && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "anthropic" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}

	return &cfg, nil
}
