// Package config loads the service configuration from a YAML file with
// environment variable overrides for deployment-specific values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port         int     `yaml:"port"`
	CORSOrigin   string  `yaml:"cors_origin"`
	MaxUploadMiB int64   `yaml:"max_upload_mib"`
	IngestRate   float64 `yaml:"ingest_rate"`
	IngestBurst  int     `yaml:"ingest_burst"`
}

// QdrantConfig contains connection details for the vector store.
type QdrantConfig struct {
	Addr string `yaml:"addr"`
}

// Neo4jConfig contains connection details for the document registry.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// OllamaConfig configures the embedding backend.
type OllamaConfig struct {
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// LLMConfig configures the answer-generation backend.
type LLMConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// NATSConfig configures the lifecycle event publisher. URL may be empty,
// in which case events are disabled.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// ChunkingConfig configures the text splitter.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// ChatConfig configures retrieval and generation.
type ChatConfig struct {
	TopK              int `yaml:"top_k"`
	SearchTimeoutSecs int `yaml:"search_timeout_secs"`
	AnswerTimeoutSecs int `yaml:"answer_timeout_secs"`
}

// Config is the root configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Neo4j    Neo4jConfig    `yaml:"neo4j"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	LLM      LLMConfig      `yaml:"llm"`
	NATS     NATSConfig     `yaml:"nats"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Chat     ChatConfig     `yaml:"chat"`
}

// Load reads a config from path. A missing file yields defaults. Environment
// variables override file values either way.
func Load(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:         8000,
			CORSOrigin:   "*",
			MaxUploadMiB: 10,
			IngestRate:   0.5,
			IngestBurst:  3,
		},
		Qdrant: QdrantConfig{Addr: "localhost:6334"},
		Neo4j:  Neo4jConfig{URI: "bolt://localhost:7687", User: "neo4j"},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		LLM: LLMConfig{
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "gpt-4o-mini",
		},
		Chunking: ChunkingConfig{Size: 1000, Overlap: 200},
		Chat:     ChatConfig{TopK: 5, SearchTimeoutSecs: 10, AnswerTimeoutSecs: 60},
	}
}

func applyEnv(cfg *Config) {
	envStr("DOCTALK_QDRANT_ADDR", &cfg.Qdrant.Addr)
	envStr("DOCTALK_NEO4J_URI", &cfg.Neo4j.URI)
	envStr("DOCTALK_NEO4J_USER", &cfg.Neo4j.User)
	envStr("DOCTALK_NEO4J_PASSWORD", &cfg.Neo4j.Password)
	envStr("DOCTALK_OLLAMA_URL", &cfg.Ollama.BaseURL)
	envStr("DOCTALK_OLLAMA_MODEL", &cfg.Ollama.Model)
	envStr("DOCTALK_LLM_BASE_URL", &cfg.LLM.BaseURL)
	envStr("DOCTALK_LLM_MODEL", &cfg.LLM.Model)
	envStr("DOCTALK_NATS_URL", &cfg.NATS.URL)
	envStr("DOCTALK_CORS_ORIGIN", &cfg.HTTP.CORSOrigin)
	envInt("DOCTALK_PORT", &cfg.HTTP.Port)
	envInt("DOCTALK_OLLAMA_DIMENSIONS", &cfg.Ollama.Dimensions)
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Chunking.Size <= 0 {
		return fmt.Errorf("config: chunking.size must be positive, got %d", cfg.Chunking.Size)
	}
	if cfg.Chunking.Overlap < 0 || cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return fmt.Errorf("config: chunking.overlap must be in [0, size), got %d", cfg.Chunking.Overlap)
	}
	if cfg.Ollama.Dimensions <= 0 {
		return fmt.Errorf("config: ollama.dimensions must be positive, got %d", cfg.Ollama.Dimensions)
	}
	if cfg.Chat.TopK <= 0 {
		return fmt.Errorf("config: chat.top_k must be positive, got %d", cfg.Chat.TopK)
	}
	return nil
}

// APIKey resolves the generation API key from the configured env var.
func (c *Config) APIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}
