package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agenthubhq/agenthub-cli/internal/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Review  ReviewConfig  `mapstructure:"review" yaml:"review"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Debug   DebugConfig   `mapstructure:"debug" yaml:"debug"`
	Theme   ThemeConfig   `mapstructure:"theme" yaml:"theme"`
}

// BackendConfig configures the marketplace API connection
type BackendConfig struct {
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string `mapstructure:"api_key" yaml:"api_key"`
	Credentials string `mapstructure:"credentials" yaml:"credentials"` // "api_key" (default) or "agenthub"
}

// ReviewConfig configures the expert review polling loop
type ReviewConfig struct {
	PollIntervalSeconds    int    `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	MaxConsecutiveFailures int    `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
	MaxPolls               int    `mapstructure:"max_polls" yaml:"max_polls"`
	DefaultPriority        string `mapstructure:"default_priority" yaml:"default_priority"` // "standard" or "high"
}

// HistoryConfig configures local execution history
type HistoryConfig struct {
	Enabled  bool `mapstructure:"enabled" yaml:"enabled"`
	MaxCount int  `mapstructure:"max_count" yaml:"max_count"` // Executions to keep before cleanup
}

// DebugConfig configures debug log collection
type DebugConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"` // Enable per-conversation debug logs
	Dir     string `mapstructure:"dir" yaml:"dir"`     // Override default directory
}

// ThemeConfig allows customization of UI colors
// Colors can be ANSI color numbers (0-255) or hex codes (#RRGGBB)
type ThemeConfig struct {
	Primary   string `mapstructure:"primary" yaml:"primary"`   // main accent (commands, highlights)
	Secondary string `mapstructure:"secondary" yaml:"secondary"` // secondary accent (headers, borders)
	Success   string `mapstructure:"success" yaml:"success"`   // success states
	Error     string `mapstructure:"error" yaml:"error"`     // error states
	Warning   string `mapstructure:"warning" yaml:"warning"`   // warnings
	Muted     string `mapstructure:"muted" yaml:"muted"`     // dimmed text
	Text      string `mapstructure:"text" yaml:"text"`      // primary text
}

func Load() (*Config, error) {
	configPath, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath(".")

	// Set defaults
	viper.SetDefault("backend.base_url", "https://api.agenthub.dev")
	viper.SetDefault("review.poll_interval_seconds", 5)
	viper.SetDefault("review.max_consecutive_failures", 12)
	viper.SetDefault("review.max_polls", 720)
	viper.SetDefault("review.default_priority", "standard")
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.max_count", 1000)

	// Read config file (optional - won't error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := resolveBackendCredentials(&cfg.Backend); err != nil {
		return nil, fmt.Errorf("backend credentials: %w", err)
	}
	cfg.Backend.BaseURL = expandEnv(cfg.Backend.BaseURL)
	cfg.Debug.Dir = expandEnv(cfg.Debug.Dir)

	return &cfg, nil
}

// ApplyOverrides applies command-line overrides to the config.
// Empty values leave the config untouched.
func (c *Config) ApplyOverrides(baseURL, priority string) {
	if baseURL != "" {
		c.Backend.BaseURL = baseURL
	}
	if priority != "" {
		c.Review.DefaultPriority = priority
	}
}

// Resolver returns a credential resolver for the configured backend.
// With an API key configured (or in the environment) the key is served
// directly; otherwise resolution falls through to the shared AgentHub
// credential chain.
func (c *Config) Resolver() credentials.Resolver {
	if c.Backend.APIKey != "" {
		return credentials.Static(c.Backend.APIKey)
	}
	return credentials.GetAgentHubToken
}

// resolveBackendCredentials resolves marketplace API credentials
func resolveBackendCredentials(cfg *BackendConfig) error {
	switch cfg.Credentials {
	case "agenthub":
		token, err := credentials.GetAgentHubToken()
		if err != nil {
			return err
		}
		cfg.APIKey = token
	default:
		// Default: "api_key" - use config value or environment variable
		cfg.APIKey = expandEnv(cfg.APIKey)
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("AGENTHUB_API_KEY")
		}
	}
	return nil
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigDir returns the XDG config directory for agenthub.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "agenthub"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "agenthub"), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// GetDebugDir returns the XDG data directory for agenthub debug logs.
// Uses $XDG_DATA_HOME if set, otherwise ~/.local/share
func GetDebugDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "agenthub", "debug")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "agenthub-debug") // fallback
	}
	return filepath.Join(homeDir, ".local", "share", "agenthub", "debug")
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// NeedsSetup returns true if config file doesn't exist
func NeedsSetup() bool {
	return !Exists()
}

// Save writes the config to disk
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`backend:
  base_url: %s
  # api_key: set here, or via AGENTHUB_API_KEY, or use credentials: agenthub
  # credentials: agenthub

review:
  poll_interval_seconds: %d
  default_priority: %s

history:
  enabled: %t
  max_count: %d

debug:
  enabled: %t
`, cfg.Backend.BaseURL, cfg.Review.PollIntervalSeconds, cfg.Review.DefaultPriority, cfg.History.Enabled, cfg.History.MaxCount, cfg.Debug.Enabled)

	return os.WriteFile(path, []byte(content), 0600)
}
