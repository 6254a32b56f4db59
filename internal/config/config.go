// Package config provides hierarchical configuration loading for ConvoSphere.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the AI orchestration core.
type Config struct {
	Server    Server              `yaml:"server"`
	Logging   Logging             `yaml:"logging"`
	Breaker   Breaker             `yaml:"breaker"`
	Providers map[string]Provider `yaml:"providers"`
	Defaults  Defaults            `yaml:"defaults"`
	RAG       RAG                 `yaml:"rag"`
	Tools     Tools               `yaml:"tools"`
	Budget    Budget              `yaml:"budget"`
	NATS      NATS                `yaml:"nats"`
	Cache     Cache               `yaml:"cache"`
	OTel      OTel                `yaml:"otel"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration for provider HTTP calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Provider configures one upstream model provider.
type Provider struct {
	BaseURL     string           `yaml:"base_url"`
	APIKey      string           `yaml:"api_key"`
	Enabled     bool             `yaml:"enabled"`
	Timeout     time.Duration    `yaml:"timeout"`
	Streaming   bool             `yaml:"streaming"`
	ToolCalling bool             `yaml:"tool_calling"`
	Embeddings  bool             `yaml:"embeddings"`
	Models      map[string]Model `yaml:"models"`
}

// Model holds per-model pricing in USD per million tokens.
type Model struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// Defaults applied by the request builder when the caller leaves
// fields unspecified.
type Defaults struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// RAG holds retrieval enrichment configuration.
type RAG struct {
	TopK        int           `yaml:"top_k"`
	TokenBudget int           `yaml:"token_budget"`
	Timeout     time.Duration `yaml:"timeout"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// Tools holds tool-loop configuration.
type Tools struct {
	MaxIterations int           `yaml:"max_iterations"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Budget holds cost enforcement configuration. Zero disables a limit.
type Budget struct {
	HardDailyUSD   float64 `yaml:"hard_daily_usd"`
	HardMonthlyUSD float64 `yaml:"hard_monthly_usd"`
	SoftDailyUSD   float64 `yaml:"soft_daily_usd"`
	// ExpectedOutTokens is used for pre-call estimates when the caller
	// sets no max_tokens.
	ExpectedOutTokens int `yaml:"expected_out_tokens"`
}

// NATS holds connection configuration for the retrieval and tool
// execution collaborators.
type NATS struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Cache holds L1 cache configuration.
type Cache struct {
	L1MaxSizeMB int64 `yaml:"l1_max_size_mb"`
}

// OTel holds OpenTelemetry exporter configuration.
type OTel struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// DefaultConfig returns a Config with sensible default values for local development.
func DefaultConfig() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
		},
		Logging: Logging{
			Level:   "info",
			Service: "convosphere-ai",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Defaults: Defaults{
			Temperature: 0.7,
			MaxTokens:   1024,
		},
		RAG: RAG{
			TopK:        5,
			TokenBudget: 2048,
			Timeout:     10 * time.Second,
			CacheTTL:    5 * time.Minute,
		},
		Tools: Tools{
			MaxIterations: 5,
			Timeout:       60 * time.Second,
		},
		Budget: Budget{
			ExpectedOutTokens: 512,
		},
		NATS: NATS{
			URL:     "nats://localhost:4222",
			Timeout: 30 * time.Second,
		},
		Cache: Cache{
			L1MaxSizeMB: 64,
		},
		OTel: OTel{
			Endpoint: "localhost:4317",
		},
	}
}
