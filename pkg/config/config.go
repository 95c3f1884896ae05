// Package config loads process-wide settings from the environment.
// The values are read once at startup and threaded explicitly into the
// components that need them; nothing here is a mutable global.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the settings shared by all squish commands.
type Config struct {
	// MaxThreads bounds the worker pool used for parallel file
	// processing during pack and unpack.
	MaxThreads int `envconfig:"MAX_THREADS" default:"30"`
}

// Load reads configuration from SQUISH_-prefixed environment variables,
// falling back to defaults.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("squish", &c); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if c.MaxThreads < 1 {
		c.MaxThreads = 1
	}
	return c, nil
}
