// Package config loads application configuration with multi-source
// priority:
//
//  1. Environment variables (PREPBOT_ prefix, runtime override)
//  2. Config file (~/.prepbot/config.yaml)
//  3. Defaults (sensible enough for a quick start)
//
// Sensitive values (API keys, database password) are never logged.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for Go-idiomatic checking with errors.Is.
var (
	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidHistorySize indicates the history capacity is out of range.
	ErrInvalidHistorySize = errors.New("invalid history size")

	// ErrInvalidMessageLimit indicates the outgoing message limit is invalid.
	ErrInvalidMessageLimit = errors.New("invalid message limit")

	// ErrInvalidTopK indicates the retrieval depth is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")
)

// Supported AI providers.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Postgres holds the knowledge-base connection settings.
type Postgres struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the settings as a pgx connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// Config is the application configuration.
type Config struct {
	// AI provider and models.
	Provider      string
	ModelName     string
	EmbedderModel string
	GeminiAPIKey  string
	OllamaHost    string

	// Knowledge base.
	Postgres Postgres

	// Pipeline tuning.
	HistorySize     int
	TopK            int
	ContextMaxChars int
	MessageLimit    int

	// Transport.
	ListenAddr string

	// Ingestion.
	IngestDataDir string
}

// Load reads configuration from all sources and validates the result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", "googleai/gemini-2.5-flash")
	v.SetDefault("embedder_model", "text-embedding-004")
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "prepbot")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "prepbot")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("history_size", 12)
	v.SetDefault("top_k", 5)
	v.SetDefault("context_max_chars", 6000)
	v.SetDefault("message_limit", 4096)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("ingest_data_dir", "data")

	v.SetEnvPrefix("PREPBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, ".prepbot"))
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; defaults and env cover everything.
	}

	cfg := &Config{
		Provider:      v.GetString("provider"),
		ModelName:     v.GetString("model_name"),
		EmbedderModel: v.GetString("embedder_model"),
		GeminiAPIKey:  v.GetString("gemini_api_key"),
		OllamaHost:    v.GetString("ollama_host"),
		Postgres: Postgres{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetInt("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			DBName:   v.GetString("postgres.dbname"),
			SSLMode:  v.GetString("postgres.sslmode"),
		},
		HistorySize:     v.GetInt("history_size"),
		TopK:            v.GetInt("top_k"),
		ContextMaxChars: v.GetInt("context_max_chars"),
		MessageLimit:    v.GetInt("message_limit"),
		ListenAddr:      v.GetString("listen_addr"),
		IngestDataDir:   v.GetString("ingest_data_dir"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs range and format checks with clear error messages.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("%w: %q (want %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOllama)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEmbedderModel)
	}
	if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.Postgres.Port)
	}
	if c.HistorySize < 1 || c.HistorySize > 1000 {
		return fmt.Errorf("%w: %d (want 1-1000)", ErrInvalidHistorySize, c.HistorySize)
	}
	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: %d (want 1-50)", ErrInvalidTopK, c.TopK)
	}
	if c.MessageLimit < 64 {
		return fmt.Errorf("%w: %d (want >= 64)", ErrInvalidMessageLimit, c.MessageLimit)
	}
	return nil
}
