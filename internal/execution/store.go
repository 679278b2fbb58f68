package execution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store is the interface for execution history persistence.
type Store interface {
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)

	// UpdateOutput freezes the decoded answer once a stream completes.
	UpdateOutput(ctx context.Context, r *Record) error

	// UpdateReview persists the review fields after a workflow transition.
	UpdateReview(ctx context.Context, r *Record) error

	List(ctx context.Context, opts ListOptions) ([]Summary, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*Record, error)

	Close() error
}

// ListOptions configures execution listing.
type ListOptions struct {
	ConversationID string       // Filter by conversation
	ReviewStatus   ReviewStatus // Filter by review status
	Limit          int          // Max results (0 = use default)
	Offset         int          // Pagination offset
}

// Config holds execution history configuration.
type Config struct {
	Enabled  bool `mapstructure:"enabled"`   // Master switch
	MaxCount int  `mapstructure:"max_count"` // Keep at most N executions (0=unlimited)
}

// DefaultConfig returns the default history configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		MaxCount: 0,
	}
}

// GetDataDir returns the XDG data directory for agenthub.
// Uses $XDG_DATA_HOME if set, otherwise ~/.local/share
func GetDataDir() (string, error) {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "agenthub"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "agenthub"), nil
}

// GetDBPath returns the path to the executions database.
func GetDBPath() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "executions.db"), nil
}

// NewStore creates a new Store based on the configuration.
// If history is disabled, returns a no-op store.
func NewStore(cfg Config) (Store, error) {
	if !cfg.Enabled {
		return &NoopStore{}, nil
	}
	return NewSQLiteStore(cfg)
}
