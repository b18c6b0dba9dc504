package keyhint

import (
	"github.com/hazyhaar/keyhint/keyhint/internal/config"
)

// Config is the top-level keyhint configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls the Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PageConfig is a page to drive.
type PageConfig = config.PageConfig

// HintsConfig holds the hint engine settings.
type HintsConfig = config.HintsConfig

// LoadConfigFile reads and validates a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a valid configuration with no pages.
func DefaultConfig() *Config {
	return config.Default()
}
