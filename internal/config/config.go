// Package config provides configuration management for Coref. Settings come
// from an optional YAML file plus environment variables with the COREF_
// prefix; the environment always wins, and every option has a sensible
// default so a bare binary starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Coref service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	Security SecurityConfig `yaml:"security"`
	Limits   LimitsConfig   `yaml:"limits"`
	Backup   BackupConfig   `yaml:"backup"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"` // default: 127.0.0.1
	Port int    `yaml:"port"` // default: 6060
}

// StorageConfig contains session blob storage configuration.
type StorageConfig struct {
	// Engine selects the blob store backend: sqlite, postgres, or memory
	// (default: sqlite).
	Engine string `yaml:"engine"`

	// DataPath is the directory for the SQLite database (default: ./data).
	DataPath string `yaml:"data_path"`

	// PostgresDSN is the connection string for the postgres engine.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LLMConfig contains reply-generation provider configuration.
type LLMConfig struct {
	Provider     string `yaml:"provider"`       // ollama (default) or openai
	OllamaURL    string `yaml:"ollama_url"`     // default: http://localhost:11434
	OllamaModel  string `yaml:"ollama_model"`   // default: qwen2.5:7b
	OpenAIAPIKey string `yaml:"openai_api_key"`
	OpenAIModel  string `yaml:"openai_model"` // default: gpt-4o-mini
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	// Mode is development (no auth) or production (Bearer token required).
	Mode string `yaml:"mode"`

	// APIToken is the Bearer token accepted in production mode.
	APIToken string `yaml:"api_token"`

	// AllowedOrigins lists the Origin header values accepted on the
	// dashboard WebSocket endpoint (default: localhost on the default
	// port). COREF_ALLOWED_ORIGINS takes a comma-separated list.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LimitsConfig contains request and memory bounds.
type LimitsConfig struct {
	// RequestsPerSec is the sustained request rate (default: 50).
	RequestsPerSec float64 `yaml:"requests_per_sec"`

	// Burst is the rate limiter burst size (default: 100).
	Burst int `yaml:"burst"`

	// SummaryEntities bounds the "Recently Mentioned" summary section
	// (default: 5).
	SummaryEntities int `yaml:"summary_entities"`

	// SessionCacheSize is the LRU cache size for hydrated sessions
	// (default: 256).
	SessionCacheSize int `yaml:"session_cache_size"`
}

// BackupConfig contains session database snapshot settings. Snapshots only
// apply to the sqlite storage engine.
type BackupConfig struct {
	// Enabled turns periodic snapshots on (default: false).
	Enabled bool `yaml:"enabled"`

	// Dir is the snapshot directory (default: {data_path}/backups).
	Dir string `yaml:"dir"`

	// IntervalHours between snapshots (default: 6).
	IntervalHours int `yaml:"interval_hours"`

	// Keep is the number of snapshots retained (default: 14).
	Keep int `yaml:"keep"`
}

// LoadConfig loads configuration from environment variables with defaults.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()
	applyEnv(cfg)
	return cfg, nil
}

// LoadConfigFile loads configuration from a YAML file, then applies
// environment variable overrides on top. A missing file is an error; use
// LoadConfig when no file is expected.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// defaultConfig returns the built-in defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 6060,
		},
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		LLM: LLMConfig{
			Provider:    "ollama",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "qwen2.5:7b",
			OpenAIModel: "gpt-4o-mini",
		},
		Security: SecurityConfig{
			Mode: "development",
			AllowedOrigins: []string{
				"http://localhost:6060",
				"http://127.0.0.1:6060",
			},
		},
		Limits: LimitsConfig{
			RequestsPerSec:   50,
			Burst:            100,
			SummaryEntities:  5,
			SessionCacheSize: 256,
		},
		Backup: BackupConfig{
			IntervalHours: 6,
			Keep:          14,
		},
	}
}

// applyEnv overlays COREF_ environment variables onto cfg.
func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("COREF_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("COREF_PORT", cfg.Server.Port)

	cfg.Storage.Engine = getEnv("COREF_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("COREF_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("COREF_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.LLM.Provider = getEnv("COREF_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.OllamaURL = getEnv("COREF_OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.OllamaModel = getEnv("COREF_OLLAMA_MODEL", cfg.LLM.OllamaModel)
	cfg.LLM.OpenAIAPIKey = getEnv("COREF_OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.OpenAIModel = getEnv("COREF_OPENAI_MODEL", cfg.LLM.OpenAIModel)

	cfg.Security.Mode = getEnv("COREF_SECURITY_MODE", cfg.Security.Mode)
	cfg.Security.APIToken = getEnv("COREF_API_TOKEN", cfg.Security.APIToken)
	cfg.Security.AllowedOrigins = getEnvList("COREF_ALLOWED_ORIGINS", cfg.Security.AllowedOrigins)

	cfg.Limits.RequestsPerSec = getEnvFloat("COREF_REQUESTS_PER_SEC", cfg.Limits.RequestsPerSec)
	cfg.Limits.Burst = getEnvInt("COREF_BURST", cfg.Limits.Burst)
	cfg.Limits.SummaryEntities = getEnvInt("COREF_SUMMARY_ENTITIES", cfg.Limits.SummaryEntities)
	cfg.Limits.SessionCacheSize = getEnvInt("COREF_SESSION_CACHE_SIZE", cfg.Limits.SessionCacheSize)

	cfg.Backup.Enabled = getEnvBool("COREF_BACKUP_ENABLED", cfg.Backup.Enabled)
	cfg.Backup.Dir = getEnv("COREF_BACKUP_DIR", cfg.Backup.Dir)
	cfg.Backup.IntervalHours = getEnvInt("COREF_BACKUP_INTERVAL_HOURS", cfg.Backup.IntervalHours)
	cfg.Backup.Keep = getEnvInt("COREF_BACKUP_KEEP", cfg.Backup.Keep)
}

// Validate checks for configuration combinations that cannot work.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite", "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: postgres engine requires COREF_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}

	if c.Security.Mode == "production" && c.Security.APIToken == "" {
		return fmt.Errorf("config: production mode requires COREF_API_TOKEN")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}

	// The rate limiter derives its interval by dividing through this
	// value; zero or negative rates produce a meaningless limiter.
	if c.Limits.RequestsPerSec <= 0 {
		return fmt.Errorf("config: requests_per_sec must be positive, got %v", c.Limits.RequestsPerSec)
	}

	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable or returns a
// default value. Blank items are dropped.
func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
