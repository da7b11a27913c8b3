package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	PostgresDSN string `yaml:"postgres_dsn"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	OllamaURL        string `yaml:"ollama_url"`
	OllamaEmbedModel string `yaml:"ollama_embed_model"`

	GeminiURL    string `yaml:"gemini_url"`
	GeminiModel  string `yaml:"gemini_model"`
	GeminiAPIKey string `yaml:"gemini_api_key"`

	QdrantURL        string `yaml:"qdrant_url"`
	QdrantCollection string `yaml:"qdrant_collection"`

	RetrievalK      int     `yaml:"retrieval_k"`
	MaxResults      int     `yaml:"max_results"`
	MaxPerSource    int     `yaml:"max_per_source"`
	MaxDistance     float64 `yaml:"max_distance"`
	MaxContextChars int     `yaml:"max_context_chars"`

	GatewayTimeoutSeconds int `yaml:"gateway_timeout_seconds"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

func (c Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutSeconds) * time.Second
}

// Load reads configuration from the environment. When CONFIG_FILE points
// at a YAML file its values are applied first and environment variables
// override them.
func Load() (Config, error) {
	cfg := Config{
		APIPort:  "8080",
		LogLevel: "info",

		PostgresDSN: "",

		NATSURL:     "",
		NATSSubject: "answers.run.completed",

		OllamaURL:        "http://localhost:11434",
		OllamaEmbedModel: "nomic-embed-text",

		GeminiURL:    "https://generativelanguage.googleapis.com",
		GeminiModel:  "gemini-2.0-flash",
		GeminiAPIKey: "",

		QdrantURL:        "http://localhost:6333",
		QdrantCollection: "advisories",

		RetrievalK:      25,
		MaxResults:      8,
		MaxPerSource:    3,
		MaxDistance:     0.75,
		MaxContextChars: 12000,

		GatewayTimeoutSeconds: 60,

		RateLimitRPS:   10,
		RateLimitBurst: 20,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.APIPort = envStr("API_PORT", cfg.APIPort)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)

	cfg.PostgresDSN = envStr("POSTGRES_DSN", cfg.PostgresDSN)

	cfg.NATSURL = envStr("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = envStr("NATS_SUBJECT", cfg.NATSSubject)

	cfg.OllamaURL = envStr("OLLAMA_URL", cfg.OllamaURL)
	cfg.OllamaEmbedModel = envStr("OLLAMA_EMBED_MODEL", cfg.OllamaEmbedModel)

	cfg.GeminiURL = envStr("GEMINI_URL", cfg.GeminiURL)
	cfg.GeminiModel = envStr("GEMINI_MODEL", cfg.GeminiModel)
	cfg.GeminiAPIKey = envStr("GEMINI_API_KEY", cfg.GeminiAPIKey)

	cfg.QdrantURL = envStr("QDRANT_URL", cfg.QdrantURL)
	cfg.QdrantCollection = envStr("QDRANT_COLLECTION", cfg.QdrantCollection)

	cfg.RetrievalK = envInt("RETRIEVAL_K", cfg.RetrievalK)
	cfg.MaxResults = envInt("MAX_RESULTS", cfg.MaxResults)
	cfg.MaxPerSource = envInt("MAX_PER_SOURCE", cfg.MaxPerSource)
	cfg.MaxDistance = envFloat("MAX_DISTANCE", cfg.MaxDistance)
	cfg.MaxContextChars = envInt("MAX_CONTEXT_CHARS", cfg.MaxContextChars)

	cfg.GatewayTimeoutSeconds = envInt("GATEWAY_TIMEOUT_SECONDS", cfg.GatewayTimeoutSeconds)

	cfg.RateLimitRPS = envFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = envInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("retrieval_k must be positive, got %d", c.RetrievalK)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive, got %d", c.MaxResults)
	}
	return nil
}

func envStr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
