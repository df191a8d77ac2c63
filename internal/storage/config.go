// Manages storage configuration stored in config.json.

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const configFileName = "config.json"

// Config controls where collections are stored and how saves are scheduled.
// Loaded from config.json in the data directory, created with defaults if
// missing.
type Config struct {
	// FileName is the logical file the wallet list is stored in, without
	// extension.
	FileName string `json:"file_name"`

	// SaveDelayMs is how long the writer waits after the first save request
	// so that a burst of mutations results in a single write.
	SaveDelayMs int `json:"save_delay_ms"`

	// MinSaveIntervalMs is the minimum time between two writes.
	// 0 means unlimited.
	MinSaveIntervalMs int `json:"min_save_interval_ms"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		FileName:          "MultiSigWallets",
		SaveDelayMs:       100,
		MinSaveIntervalMs: 1000,
	}
}

// SaveDelay returns SaveDelayMs as a duration.
func (c *Config) SaveDelay() time.Duration {
	return time.Duration(c.SaveDelayMs) * time.Millisecond
}

// MinSaveInterval returns MinSaveIntervalMs as a duration.
func (c *Config) MinSaveInterval() time.Duration {
	return time.Duration(c.MinSaveIntervalMs) * time.Millisecond
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.FileName == "" {
		return errors.New("file_name is required")
	}
	if strings.ContainsAny(c.FileName, `/\`) || c.FileName == "." || c.FileName == ".." {
		return fmt.Errorf("file_name must be a plain file name, got %q", c.FileName)
	}
	if c.SaveDelayMs < 0 {
		return errors.New("save_delay_ms must be non-negative")
	}
	if c.MinSaveIntervalMs < 0 {
		return errors.New("min_save_interval_ms must be non-negative")
	}
	return nil
}

// LoadConfig loads configuration from dataDir/config.json.
// Creates the file with defaults if it doesn't exist.
func LoadConfig(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, configFileName)
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", configFileName, err)
		}
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configFileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", configFileName, err)
	}
	return &cfg, nil
}

// Save saves configuration to dataDir/config.json.
func (c *Config) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dataDir, configFileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configFileName, err)
	}
	return nil
}
