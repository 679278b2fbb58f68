package cmd

import (
	"fmt"
	"time"

	"github.com/agenthubhq/agenthub-cli/internal/chat"
	"github.com/agenthubhq/agenthub-cli/internal/config"
	"github.com/agenthubhq/agenthub-cli/internal/debuglog"
	"github.com/agenthubhq/agenthub-cli/internal/execution"
	"github.com/agenthubhq/agenthub-cli/internal/review"
	"github.com/agenthubhq/agenthub-cli/internal/ui"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(baseURLFlag, "")
	initThemeFromConfig(cfg)
	return cfg, nil
}

func initThemeFromConfig(cfg *config.Config) {
	ui.InitTheme(ui.ThemeConfig{
		Primary:   cfg.Theme.Primary,
		Secondary: cfg.Theme.Secondary,
		Success:   cfg.Theme.Success,
		Error:     cfg.Theme.Error,
		Warning:   cfg.Theme.Warning,
		Muted:     cfg.Theme.Muted,
		Text:      cfg.Theme.Text,
	})
}

func newChatClient(cfg *config.Config) *chat.Client {
	return chat.NewClient(cfg.Backend.BaseURL, cfg.Resolver())
}

func newReviewBackend(cfg *config.Config) *review.Client {
	return review.NewClient(cfg.Backend.BaseURL, cfg.Resolver())
}

func reviewConfigFrom(cfg *config.Config) review.Config {
	return review.Config{
		PollInterval:           time.Duration(cfg.Review.PollIntervalSeconds) * time.Second,
		MaxConsecutiveFailures: cfg.Review.MaxConsecutiveFailures,
		MaxPolls:               cfg.Review.MaxPolls,
	}
}

func getExecutionStore(cfg *config.Config) (execution.Store, error) {
	return execution.NewStore(execution.Config{
		Enabled:  cfg.History.Enabled,
		MaxCount: cfg.History.MaxCount,
	})
}

// newDebugLogger returns nil when debug logging is disabled; the logger is
// nil-safe so callers pass it through unconditionally.
func newDebugLogger(cfg *config.Config, conversationID string) *debuglog.Logger {
	if !cfg.Debug.Enabled {
		return nil
	}
	dir := cfg.Debug.Dir
	if dir == "" {
		dir = config.GetDebugDir()
	}
	logger, err := debuglog.New(dir, conversationID)
	if err != nil {
		// Debug logging is best-effort; a failure never blocks the chat.
		return nil
	}
	return logger
}
