// Package config provides application configuration management.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.thapargpt/config.yaml)
//  3. Default values
//
// Validation is fail-fast: Load returns an error for any invalid value,
// including an embedder dimension that does not match the vector schema.
// That is a deployment mistake, never a per-request condition.
//
// Security: sensitive fields (PostgresPassword) are masked in MarshalJSON.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"encoding/json"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidTopK indicates the retrieval top-K is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidContextBudget indicates the context budget is not positive.
	ErrInvalidContextBudget = errors.New("invalid context budget")

	// ErrInvalidEmbedderDimension indicates the configured embedder produces
	// vectors incompatible with the indexed knowledge base.
	ErrInvalidEmbedderDimension = errors.New("incompatible embedder dimension")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidTimeout indicates a stage timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// text-embedding-004 outputs 768 dimensions, matching the vector(768)
	// column in the documents migration.
	DefaultEmbedderModel = "text-embedding-004"

	// VectorDimension is the dimensionality the knowledge base was indexed
	// with. The embedder must produce exactly this many dimensions.
	VectorDimension = 768

	// DefaultTopK is the number of passages retrieved per query.
	DefaultTopK = 3

	// MaxTopK bounds caller-supplied top-K values.
	MaxTopK = 10
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON.
type Config struct {
	// AI provider and model configuration
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.0-flash"
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Retrieval configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`
	TopK              int    `mapstructure:"top_k" json:"top_k"`
	ContextBudget     int    `mapstructure:"context_budget" json:"context_budget"`   // max chars of assembled context
	MaxEmbedChars     int    `mapstructure:"max_embed_chars" json:"max_embed_chars"` // embed input truncation (tail)
	MaxPromptChars    int    `mapstructure:"max_prompt_chars" json:"max_prompt_chars"`
	MaxHistoryTurns   int    `mapstructure:"max_history_turns" json:"max_history_turns"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Per-stage timeouts (seconds)
	ExtractTimeoutSec  int `mapstructure:"extract_timeout_sec" json:"extract_timeout_sec"`
	SearchTimeoutSec   int `mapstructure:"search_timeout_sec" json:"search_timeout_sec"`
	GenerateTimeoutSec int `mapstructure:"generate_timeout_sec" json:"generate_timeout_sec"`

	// Generation rate limiting
	RatePerSecond float64 `mapstructure:"rate_per_second" json:"rate_per_second"`
	RateBurst     int     `mapstructure:"rate_burst" json:"rate_burst"`

	// Indexing
	CorpusDir string `mapstructure:"corpus_dir" json:"corpus_dir"` // directory of cleaned .txt documents
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".thapargpt")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("model_name", "gemini-2.0-flash")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)

	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimension", VectorDimension)
	viper.SetDefault("top_k", DefaultTopK)
	viper.SetDefault("context_budget", 6000)
	viper.SetDefault("max_embed_chars", 8000)
	viper.SetDefault("max_prompt_chars", 24000)
	viper.SetDefault("max_history_turns", 5)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "thapargpt")
	viper.SetDefault("postgres_password", "thapargpt_dev_password")
	viper.SetDefault("postgres_db_name", "thapargpt")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("extract_timeout_sec", 30)
	viper.SetDefault("search_timeout_sec", 10)
	viper.SetDefault("generate_timeout_sec", 60)

	viper.SetDefault("rate_per_second", 2.0)
	viper.SetDefault("rate_burst", 4)

	viper.SetDefault("corpus_dir", "./structured_data")
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by the Genkit Google AI plugin, not via
// Viper; Validate only checks its presence.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "THAPARGPT_MODEL_NAME")
	mustBind("embedder_model", "THAPARGPT_EMBEDDER_MODEL")
	mustBind("postgres_host", "THAPARGPT_POSTGRES_HOST")
	mustBind("postgres_port", "THAPARGPT_POSTGRES_PORT")
	mustBind("postgres_user", "THAPARGPT_POSTGRES_USER")
	mustBind("postgres_password", "THAPARGPT_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "THAPARGPT_POSTGRES_DB")
	mustBind("corpus_dir", "THAPARGPT_CORPUS_DIR")
}

// Validate checks configuration values and fails fast on the first problem.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be 0.0-2.0)", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidModelName)
	}
	// The knowledge base was indexed at VectorDimension; any other value is
	// a deployment mistake, not something to discover one request at a time.
	if c.EmbedderDimension != VectorDimension {
		return fmt.Errorf("%w: configured %d, index built with %d",
			ErrInvalidEmbedderDimension, c.EmbedderDimension, VectorDimension)
	}
	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidTopK, c.TopK, MaxTopK)
	}
	if c.ContextBudget < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidContextBudget, c.ContextBudget)
	}
	if c.MaxEmbedChars < 1 || c.MaxPromptChars < 1 || c.MaxHistoryTurns < 0 {
		return fmt.Errorf("%w: embed/prompt/history limits must be positive", ErrInvalidContextBudget)
	}
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.ExtractTimeoutSec < 1 || c.SearchTimeoutSec < 1 || c.GenerateTimeoutSec < 1 {
		return fmt.Errorf("%w: stage timeouts must be positive", ErrInvalidTimeout)
	}
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrMissingAPIKey)
	}
	return nil
}

// ConnString returns the PostgreSQL connection string.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// ExtractTimeout returns the attachment-extraction stage timeout.
func (c *Config) ExtractTimeout() time.Duration {
	return time.Duration(c.ExtractTimeoutSec) * time.Second
}

// SearchTimeout returns the vector-search stage timeout.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutSec) * time.Second
}

// GenerateTimeout returns the generation stage timeout.
func (c *Config) GenerateTimeout() time.Duration {
	return time.Duration(c.GenerateTimeoutSec) * time.Second
}

// FullModelName returns the provider-qualified model name for Genkit,
// e.g. "googleai/gemini-2.0-flash".
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "googleai/" + c.ModelName
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 chars or
// fewer are fully masked to prevent substring matching; longer ones keep the
// first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
