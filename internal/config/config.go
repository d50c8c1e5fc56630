// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.atlas/config.yaml)
//  3. Default values
//
// Sensitive fields (database password, JWT secret) are masked in
// MarshalJSON so a Config can be logged safely. Validation uses sentinel
// errors so callers can check categories with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidHistoryTTL indicates the history TTL is out of range.
	ErrInvalidHistoryTTL = errors.New("invalid history TTL")

	// ErrInvalidToolRounds indicates max_tool_rounds is out of range.
	ErrInvalidToolRounds = errors.New("invalid max tool rounds")

	// ErrMissingJWTSecret indicates auth is enabled without a signing secret.
	ErrMissingJWTSecret = errors.New("missing JWT secret")

	// ErrInvalidJWTSecret indicates the JWT secret is too short.
	ErrInvalidJWTSecret = errors.New("invalid JWT secret")

	// ErrMissingProfileBaseURL indicates the seat-profile base URL is unset.
	ErrMissingProfileBaseURL = errors.New("missing seat profile base URL")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	// providerGoogleAI is the genkit plugin prefix for gemini models.
	providerGoogleAI = "googleai"
)

// History defaults and bounds.
const (
	// DefaultHistoryTTL matches the original deployment's session expiry.
	DefaultHistoryTTL = time.Hour

	// DefaultMaxHistoryMessages is the default number of prior messages
	// loaded into the model context.
	DefaultMaxHistoryMessages int32 = 100

	// MaxAllowedHistoryMessages is the absolute maximum to prevent OOM.
	MaxAllowedHistoryMessages int32 = 10000
)

// ProfileConfig configures the downstream seat-profile HTTP adapter.
type ProfileConfig struct {
	BaseURL   string `mapstructure:"base_url" json:"base_url"`
	TimeoutMs int    `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// TracingConfig configures OTLP trace export to a local agent.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	AgentHost   string `mapstructure:"agent_host" json:"agent_host"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider  string `mapstructure:"provider" json:"provider"`     // "gemini" (default), "ollama", "openai"
	ModelName string `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash", "gpt-4o-mini"

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Orchestration configuration
	MaxToolRounds int `mapstructure:"max_tool_rounds" json:"max_tool_rounds"` // tool dispatch rounds per question
	ToolTimeoutMs int `mapstructure:"tool_timeout_ms" json:"tool_timeout_ms"` // per-tool invocation budget

	// Conversation history configuration
	HistoryTTLMinutes  int   `mapstructure:"history_ttl_minutes" json:"history_ttl_minutes"`
	MaxHistoryMessages int32 `mapstructure:"max_history_messages" json:"max_history_messages"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// RAG configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	RAGTopK       int    `mapstructure:"rag_top_k" json:"rag_top_k"`

	// Downstream service configuration
	Profile ProfileConfig `mapstructure:"profile" json:"profile"`

	// Auth configuration (serve mode)
	AuthDisabled bool   `mapstructure:"auth_disabled" json:"auth_disabled"` // dev only: skip bearer validation
	JWTSecret    string `mapstructure:"jwt_secret" json:"jwt_secret"`       // SENSITIVE: masked in MarshalJSON

	// HTTP server configuration
	HTTPAddr    string   `mapstructure:"http_addr" json:"http_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Observability configuration
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".atlas")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use defaults
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

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Orchestration defaults: one dispatch round reproduces the two-call
	// protocol (initial model call, tool dispatch, one follow-up call).
	viper.SetDefault("max_tool_rounds", 1)
	viper.SetDefault("tool_timeout_ms", 20000)

	// History defaults
	viper.SetDefault("history_ttl_minutes", int(DefaultHistoryTTL/time.Minute))
	viper.SetDefault("max_history_messages", DefaultMaxHistoryMessages)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "atlas")
	viper.SetDefault("postgres_password", "atlas_dev_password")
	viper.SetDefault("postgres_db_name", "atlas")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// RAG defaults
	viper.SetDefault("embedder_model", "gemini-embedding-001")
	viper.SetDefault("rag_top_k", 3)

	// Seat profile defaults
	viper.SetDefault("profile.base_url", "")
	viper.SetDefault("profile.timeout_ms", 20000)

	// Server defaults
	viper.SetDefault("http_addr", ":8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:4200"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 60)
	viper.SetDefault("auth_disabled", false)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.agent_host", "localhost:4318")
	viper.SetDefault("tracing.service_name", "atlas-gateway")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
// Secrets only come in via env, never the config file in production.
func bindEnvVariables() {
	// Hardcoded keys can't fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("http_addr", "ATLAS_HTTP_ADDR")
	mustBind("jwt_secret", "ATLAS_JWT_SECRET")
	mustBind("auth_disabled", "ATLAS_AUTH_DISABLED")
	mustBind("cors_origins", "ATLAS_CORS_ORIGINS")
	mustBind("trust_proxy", "ATLAS_TRUST_PROXY")
	mustBind("rate_burst", "ATLAS_RATE_BURST")
	mustBind("provider", "ATLAS_PROVIDER")
	mustBind("model_name", "ATLAS_MODEL_NAME")
	mustBind("ollama_host", "ATLAS_OLLAMA_HOST")
	mustBind("profile.base_url", "ATLAS_PROFILE_BASE_URL")

	// NOTE: GEMINI_API_KEY / OPENAI_API_KEY are read directly by the
	// genkit provider plugins, not via viper. Validate() checks presence.
}

// HistoryTTL returns the conversation inactivity window as a Duration.
func (c *Config) HistoryTTL() time.Duration {
	if c.HistoryTTLMinutes <= 0 {
		return DefaultHistoryTTL
	}
	return time.Duration(c.HistoryTTLMinutes) * time.Minute
}

// ToolTimeout returns the per-tool invocation budget as a Duration.
func (c *Config) ToolTimeout() time.Duration {
	if c.ToolTimeoutMs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.ToolTimeoutMs) * time.Millisecond
}

// FullModelName returns the provider-qualified model name for genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return providerGoogleAI + "/" + c.ModelName
	}
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are
// fully masked; longer ones keep the first and last two characters for
// debugging utility. This defends against accidental logging only — if
// logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.JWTSecret = maskSecret(a.JWTSecret)
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
