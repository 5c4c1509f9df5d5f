// Package config loads the kisan configuration file and exports its values
// as environment variables. Precedence: defaults → file → env vars. Env vars
// always win, so every component keeps reading its settings from the
// environment.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. KISAN_CONFIG environment variable
//  3. ~/.kisan/config.yaml
//  4. ./kisan.yaml, then ./kisan.toml
//
// Files ending in .toml are parsed as TOML, everything else as YAML.
// A .env file in the working directory is loaded before the config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	Model     ModelConfig     `yaml:"model" toml:"model"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Index     IndexConfig     `yaml:"index" toml:"index"`
	Advisory  AdvisoryConfig  `yaml:"advisory" toml:"advisory"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	History   HistoryConfig   `yaml:"history" toml:"history"`
	Tracing   TracingConfig   `yaml:"tracing" toml:"tracing"`
}

// ModelConfig holds chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, ark, gemini.
	Provider    string       `yaml:"provider" toml:"provider"`
	MaxTokens   int          `yaml:"max_tokens" toml:"max_tokens"`
	Temperature float32      `yaml:"temperature" toml:"temperature"`
	Ollama      OllamaConfig `yaml:"ollama" toml:"ollama"`
	OpenAI      OpenAIConfig `yaml:"openai" toml:"openai"`
	Azure       AzureConfig  `yaml:"azure" toml:"azure"`
	Ark         ArkConfig    `yaml:"ark" toml:"ark"`
	Gemini      GeminiConfig `yaml:"gemini" toml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	Host  string `yaml:"host" toml:"host"`
	Model string `yaml:"model" toml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey  string `yaml:"api_key" toml:"api_key"`
	Model   string `yaml:"model" toml:"model"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey     string `yaml:"api_key" toml:"api_key"`
	Endpoint   string `yaml:"endpoint" toml:"endpoint"`
	Deployment string `yaml:"deployment" toml:"deployment"`
	APIVersion string `yaml:"api_version" toml:"api_version"`
}

// ArkConfig holds Volcengine Ark provider settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey  string `yaml:"api_key" toml:"api_key"`
	Model   string `yaml:"model" toml:"model"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	Model  string `yaml:"model" toml:"model"`
}

// EmbeddingConfig holds query embedding settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" toml:"provider"`
	Model      string `yaml:"model" toml:"model"`
	Dimensions int    `yaml:"dimensions" toml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey   string `yaml:"api_key" toml:"api_key"`
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
}

// IndexConfig selects and configures the vector index.
type IndexConfig struct {
	// Backend is qdrant, memory, or none.
	Backend string `yaml:"backend" toml:"backend"`
	// Snapshot is a JSONL file of pre-embedded chunks for the memory backend.
	Snapshot string       `yaml:"snapshot" toml:"snapshot"`
	Qdrant   QdrantConfig `yaml:"qdrant" toml:"qdrant"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host       string `yaml:"host" toml:"host"`
	Port       int    `yaml:"port" toml:"port"`
	Collection string `yaml:"collection" toml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	TLS    bool   `yaml:"tls" toml:"tls"`
}

// AdvisoryConfig tunes the answer pipeline.
type AdvisoryConfig struct {
	TopK              int     `yaml:"top_k" toml:"top_k"`
	MaxK              int     `yaml:"max_k" toml:"max_k"`
	ContextBudget     int     `yaml:"context_budget" toml:"context_budget"`
	BudgetUnit        string  `yaml:"budget_unit" toml:"budget_unit"`
	DocumentShare     float64 `yaml:"document_share" toml:"document_share"`
	HistoryShare      float64 `yaml:"history_share" toml:"history_share"`
	HistoryTurns      int     `yaml:"history_turns" toml:"history_turns"`
	RetrievalTimeout  string  `yaml:"retrieval_timeout" toml:"retrieval_timeout"`
	GenerationTimeout string  `yaml:"generation_timeout" toml:"generation_timeout"`
	RetryBackoff      string  `yaml:"retry_backoff" toml:"retry_backoff"`
	ConfidenceHigh    int     `yaml:"confidence_high" toml:"confidence_high"`
	ConfidenceMedium  int     `yaml:"confidence_medium" toml:"confidence_medium"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var KISAN_API_KEY.
	APIKey    string  `yaml:"api_key" toml:"api_key"`
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" toml:"rate_burst"`
	// RequestTimeout is a duration string, e.g. "3m".
	RequestTimeout string `yaml:"request_timeout" toml:"request_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// HistoryConfig holds conversation storage settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path.
	DBPath string `yaml:"db_path" toml:"db_path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	PublicKey string `yaml:"public_key" toml:"public_key"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	Host      string `yaml:"host" toml:"host"`
}

// envMapping maps config fields to the env vars components read.
// Only non-empty file values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"OPENAI_BASE_URL", func(c *Config) string { return c.Model.OpenAI.BaseURL }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"KISAN_INDEX", func(c *Config) string { return c.Index.Backend }},
	{"KISAN_INDEX_SNAPSHOT", func(c *Config) string { return c.Index.Snapshot }},
	{"QDRANT_HOST", func(c *Config) string { return c.Index.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Index.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Index.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Index.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Index.Qdrant.TLS) }},
	{"KISAN_TOP_K", func(c *Config) string { return intStr(c.Advisory.TopK) }},
	{"KISAN_MAX_K", func(c *Config) string { return intStr(c.Advisory.MaxK) }},
	{"KISAN_CONTEXT_BUDGET", func(c *Config) string { return intStr(c.Advisory.ContextBudget) }},
	{"KISAN_BUDGET_UNIT", func(c *Config) string { return c.Advisory.BudgetUnit }},
	{"KISAN_DOCUMENT_SHARE", func(c *Config) string { return floatStr(c.Advisory.DocumentShare) }},
	{"KISAN_HISTORY_SHARE", func(c *Config) string { return floatStr(c.Advisory.HistoryShare) }},
	{"KISAN_HISTORY_TURNS", func(c *Config) string { return intStr(c.Advisory.HistoryTurns) }},
	{"KISAN_RETRIEVAL_TIMEOUT", func(c *Config) string { return c.Advisory.RetrievalTimeout }},
	{"KISAN_GENERATION_TIMEOUT", func(c *Config) string { return c.Advisory.GenerationTimeout }},
	{"KISAN_RETRY_BACKOFF", func(c *Config) string { return c.Advisory.RetryBackoff }},
	{"KISAN_CONFIDENCE_HIGH", func(c *Config) string { return intStr(c.Advisory.ConfidenceHigh) }},
	{"KISAN_CONFIDENCE_MEDIUM", func(c *Config) string { return intStr(c.Advisory.ConfidenceMedium) }},
	{"KISAN_HOST", func(c *Config) string { return c.Server.Host }},
	{"KISAN_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"KISAN_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"KISAN_RATE_LIMIT", func(c *Config) string { return floatStr(c.Server.RateLimit) }},
	{"KISAN_RATE_BURST", func(c *Config) string { return intStr(c.Server.RateBurst) }},
	{"KISAN_REQUEST_TIMEOUT", func(c *Config) string { return c.Server.RequestTimeout }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"KISAN_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// without overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the config file and applies non-empty values as environment
// variables. Returns the path that was loaded, or "" if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no config file found, using env vars only")
		return "", nil
	}

	cfg, err := Parse(path)
	if err != nil {
		return "", err
	}

	applied := 0
	for _, m := range envMapping {
		v := m.value(cfg)
		if v == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue
		}
		if err := os.Setenv(m.envKey, v); err != nil {
			return "", fmt.Errorf("config: set %s: %w", m.envKey, err)
		}
		applied++
	}

	log.Info("config: loaded config file",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)
	return path, nil
}

// Parse decodes the file at path. The format follows the extension.
func Parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if exists(explicit) {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("KISAN_CONFIG"); envPath != "" && exists(envPath) {
		return envPath
	}

	if home, err := os.UserHomeDir(); err == nil {
		if p := filepath.Join(home, ".kisan", "config.yaml"); exists(p) {
			return p
		}
	}

	for _, p := range []string{"kisan.yaml", "kisan.toml"} {
		if exists(p) {
			return p
		}
	}
	return ""
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func floatStr(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
