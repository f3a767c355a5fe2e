// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Completion providers.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	StorageBackend  string
	DBPath          string
	SweepInterval   time.Duration
	LogFile         string
	LLM             LLMConfig
	Prompt          PromptConfig
	RateLimit       RateLimitConfig
	BasicAuth       BasicAuthConfig
	ConversationLog ConversationLogConfig
	Telemetry       TelemetryConfig
}

// LLMConfig configures the completion gateway.
type LLMConfig struct {
	Provider    string
	APIKey      string
	APIURL      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration // 0 = no client-side timeout
	MaxRPS      float64       // 0 = unlimited
}

// PromptConfig holds environment-level prompt defaults.
type PromptConfig struct {
	ChildDefault    string
	ParentDefault   string
	BuiltinFallback bool
}

// RateLimitConfig controls the per-client request limiter.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
	FailOpen          bool
}

// BasicAuthConfig enables the single-credential deployment variant.
// Auth is active only when User is set.
type BasicAuthConfig struct {
	User         string
	Password     string
	PasswordHash string
}

// Enabled reports whether basic auth gating is configured.
func (b BasicAuthConfig) Enabled() bool {
	return b.User != ""
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Path      string
	QueueSize int
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled bool
	Dir     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	childDefault := getEnv("CHILD_PROMPT", "")
	if childDefault == "" {
		childDefault = getEnv("MASTER_PROMPT", "")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageSQLite)),
		DBPath:         getEnv("DB_PATH", "./data/dreamtales.db"),
		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		LogFile:        getEnv("LOG_FILE", ""),
		LLM: LLMConfig{
			Provider:    strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			APIURL:      getEnv("LLM_API_URL", "https://api.openai.com/v1/chat/completions"),
			Model:       getEnv("LLM_MODEL", "gpt-4o"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:     getEnvDuration("LLM_TIMEOUT", 0),
			MaxRPS:      getEnvFloat("LLM_MAX_RPS", 0),
		},
		Prompt: PromptConfig{
			ChildDefault:    childDefault,
			ParentDefault:   getEnv("PARENT_PROMPT", ""),
			BuiltinFallback: getEnvBool("PROMPT_BUILTIN_FALLBACK", true),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			FailOpen:          getEnvBool("RATE_LIMIT_FAIL_OPEN", true),
		},
		BasicAuth: BasicAuthConfig{
			User:         getEnv("BASIC_AUTH_USER", ""),
			Password:     getEnv("BASIC_AUTH_PASSWORD", ""),
			PasswordHash: getEnv("BASIC_AUTH_PASSWORD_HASH", ""),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Path:      getEnv("CONVERSATION_LOG_PATH", "./data/logs/conversations.ndjson"),
			QueueSize: queueSize,
		},
		Telemetry: TelemetryConfig{
			Enabled: getEnvBool("TELEMETRY_ENABLED", false),
			Dir:     getEnv("TELEMETRY_DIR", "./data/telemetry"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.StorageBackend {
	case StorageSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageSQLite, StorageMemory, c.StorageBackend)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY must be set when LLM_PROVIDER=%s", ProviderOpenAI)
		}
		if c.LLM.APIURL == "" {
			return fmt.Errorf("LLM_API_URL cannot be empty")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderMock, c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be > 0")
	}
	if c.LLM.MaxRPS < 0 {
		return fmt.Errorf("LLM_MAX_RPS cannot be negative")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.BasicAuth.Enabled() && c.BasicAuth.Password == "" && c.BasicAuth.PasswordHash == "" {
		return fmt.Errorf("BASIC_AUTH_PASSWORD or BASIC_AUTH_PASSWORD_HASH must be set with BASIC_AUTH_USER")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Path == "" {
		return fmt.Errorf("CONVERSATION_LOG_PATH cannot be empty")
	}
	if c.Telemetry.Enabled && c.Telemetry.Dir == "" {
		return fmt.Errorf("TELEMETRY_DIR cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go duration strings ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
