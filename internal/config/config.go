package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for dealbot.
type Config struct {
	General   GeneralConfig             `json:"general"`
	Store     StoreConfig               `json:"store"`
	Providers map[string]ProviderConfig `json:"providers"`
	Assistant AssistantConfig           `json:"assistant"`
	Channels  ChannelsConfig            `json:"channels"`
	Metrics   MetricsConfig             `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel           string `json:"logLevel"`
	DefaultProvider    string `json:"defaultProvider"`
	MaxConcurrentTurns int    `json:"maxConcurrentTurns"`
}

// StoreConfig selects and configures the relational backend.
type StoreConfig struct {
	Driver   string         `json:"driver"` // "sqlite" | "postgres"
	SQLite   SQLiteConfig   `json:"sqlite"`
	Postgres PostgresConfig `json:"postgres"`
}

type SQLiteConfig struct {
	DBPath string `json:"dbPath"`
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbName"`
	SSLMode  string `json:"sslMode"`
}

type ProviderConfig struct {
	Enabled      bool   `json:"enabled"`
	APIBase      string `json:"apiBase,omitempty"`
	APIKey       string `json:"apiKey,omitempty"`
	DefaultModel string `json:"defaultModel,omitempty"`
}

// AssistantConfig tunes the compose step of every turn.
type AssistantConfig struct {
	Temperature            float64 `json:"temperature"`
	MaxOutputTokens        int     `json:"maxOutputTokens"`
	UrgencyWindowHours     int     `json:"urgencyWindowHours"`     // "Ending Soon" threshold
	GenerateTimeoutSeconds int     `json:"generateTimeoutSeconds"` // bound around each model call
}

type ChannelsConfig struct {
	Web       WebConfig       `json:"web"`
	WebSocket WebSocketConfig `json:"websocket"`
	CLI       CLIConfig       `json:"cli"`
	Telegram  TelegramConfig  `json:"telegram,omitempty"`
}

type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type WebSocketConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom,omitempty"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}

// DefaultConfigDir returns the default config directory (~/.dealbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dealbot"
	}
	return filepath.Join(home, ".dealbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Store.SQLite.DBPath = ExpandPath(cfg.Store.SQLite.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.MaxConcurrentTurns < 1 || cfg.General.MaxConcurrentTurns > 100 {
		errs = append(errs, "general.maxConcurrentTurns must be between 1 and 100")
	}

	switch cfg.Store.Driver {
	case "sqlite", "postgres":
		// valid
	default:
		errs = append(errs, "store.driver must be one of: sqlite, postgres")
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.SQLite.DBPath == "" {
		errs = append(errs, "store.sqlite.dbPath is required for the sqlite driver")
	}
	if cfg.Store.Driver == "postgres" && cfg.Store.Postgres.DBName == "" {
		errs = append(errs, "store.postgres.dbName is required for the postgres driver")
	}

	if cfg.Assistant.Temperature < 0 || cfg.Assistant.Temperature > 2 {
		errs = append(errs, "assistant.temperature must be between 0 and 2")
	}
	if cfg.Assistant.MaxOutputTokens < 1 {
		errs = append(errs, "assistant.maxOutputTokens must be >= 1")
	}
	if cfg.Assistant.UrgencyWindowHours < 1 {
		errs = append(errs, "assistant.urgencyWindowHours must be >= 1")
	}
	if cfg.Assistant.GenerateTimeoutSeconds < 1 {
		errs = append(errs, "assistant.generateTimeoutSeconds must be >= 1")
	}

	if cfg.Channels.Web.Port < 0 || cfg.Channels.Web.Port > 65535 {
		errs = append(errs, "channels.web.port must be between 0 and 65535")
	}
	if cfg.Channels.WebSocket.Port < 0 || cfg.Channels.WebSocket.Port > 65535 {
		errs = append(errs, "channels.websocket.port must be between 0 and 65535")
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required when telegram is enabled")
	}

	if cfg.General.DefaultProvider != "" {
		if _, ok := cfg.Providers[cfg.General.DefaultProvider]; !ok {
			errs = append(errs, fmt.Sprintf("general.defaultProvider references unknown provider: %s", cfg.General.DefaultProvider))
		}
	}
	for name, pc := range cfg.Providers {
		if pc.Enabled && name != "gemini" && pc.APIBase == "" {
			errs = append(errs, fmt.Sprintf("providers.%s: apiBase is required", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
