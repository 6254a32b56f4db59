package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "convosphere.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CONVOSPHERE_PORT")
	setString(&cfg.Server.CORSOrigin, "CONVOSPHERE_CORS_ORIGIN")
	setString(&cfg.Logging.Level, "CONVOSPHERE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CONVOSPHERE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CONVOSPHERE_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "CONVOSPHERE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CONVOSPHERE_BREAKER_TIMEOUT")
	setString(&cfg.Defaults.Provider, "CONVOSPHERE_DEFAULT_PROVIDER")
	setString(&cfg.Defaults.Model, "CONVOSPHERE_DEFAULT_MODEL")
	setInt(&cfg.Defaults.MaxTokens, "CONVOSPHERE_DEFAULT_MAX_TOKENS")
	setInt(&cfg.RAG.TopK, "CONVOSPHERE_RAG_TOP_K")
	setInt(&cfg.RAG.TokenBudget, "CONVOSPHERE_RAG_TOKEN_BUDGET")
	setDuration(&cfg.RAG.Timeout, "CONVOSPHERE_RAG_TIMEOUT")
	setDuration(&cfg.RAG.CacheTTL, "CONVOSPHERE_RAG_CACHE_TTL")
	setInt(&cfg.Tools.MaxIterations, "CONVOSPHERE_TOOLS_MAX_ITERATIONS")
	setDuration(&cfg.Tools.Timeout, "CONVOSPHERE_TOOLS_TIMEOUT")
	setFloat64(&cfg.Budget.HardDailyUSD, "CONVOSPHERE_BUDGET_HARD_DAILY_USD")
	setFloat64(&cfg.Budget.HardMonthlyUSD, "CONVOSPHERE_BUDGET_HARD_MONTHLY_USD")
	setFloat64(&cfg.Budget.SoftDailyUSD, "CONVOSPHERE_BUDGET_SOFT_DAILY_USD")
	setInt(&cfg.Budget.ExpectedOutTokens, "CONVOSPHERE_BUDGET_EXPECTED_OUT_TOKENS")
	setString(&cfg.NATS.URL, "NATS_URL")
	setDuration(&cfg.NATS.Timeout, "CONVOSPHERE_NATS_TIMEOUT")
	setInt64(&cfg.Cache.L1MaxSizeMB, "CONVOSPHERE_CACHE_L1_SIZE_MB")
	setBool(&cfg.OTel.Enabled, "CONVOSPHERE_OTEL_ENABLED")
	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	// Per-provider API keys: CONVOSPHERE_PROVIDER_<NAME>_API_KEY would
	// require dynamic lookup; instead each configured provider may point
	// its api_key at an env reference of the form "env:VAR_NAME".
	for name, p := range cfg.Providers {
		if len(p.APIKey) > 4 && p.APIKey[:4] == "env:" {
			p.APIKey = os.Getenv(p.APIKey[4:])
			cfg.Providers[name] = p
		}
	}
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.RAG.TopK < 1 {
		return errors.New("rag.top_k must be >= 1")
	}
	if cfg.RAG.TokenBudget < 1 {
		return errors.New("rag.token_budget must be >= 1")
	}
	if cfg.Tools.MaxIterations < 1 {
		return errors.New("tools.max_iterations must be >= 1")
	}
	for name, p := range cfg.Providers {
		if p.BaseURL == "" {
			return fmt.Errorf("providers.%s.base_url is required", name)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
