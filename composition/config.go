package composition

import (
	"go.uber.org/zap"

	"github.com/wippyai/duce/errors"
)

// DefaultMaxFreeSyncChannels is the default cap on pooled free synchronous
// channels.
const DefaultMaxFreeSyncChannels = 3

// Config holds channel manager configuration
type Config struct {
	// MaxFreeSyncChannels caps the free synchronous channel queue. A
	// released channel that does not fit is closed. Zero disables pooling.
	MaxFreeSyncChannels int

	// Logger overrides the package logger for the manager and its channels.
	Logger *zap.Logger
}

// DefaultConfig returns default manager configuration
func DefaultConfig() Config {
	return Config{
		MaxFreeSyncChannels: DefaultMaxFreeSyncChannels,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxFreeSyncChannels < 0 {
		return errors.InvalidInput(errors.PhaseManager, "negative MaxFreeSyncChannels")
	}
	return nil
}
