package ml

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// BaseConfig provides common configuration functionality
type BaseConfig struct {
	ConfigPath string `json:"-"`
}

// LoadConfig loads configuration from a file, falling back to environment variables
func (c *BaseConfig) LoadConfig(configPath string, envPrefix string, config interface{}) error {
	// Try to load from file first
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read %s config: %w", envPrefix, err)
		}
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse %s config: %w", envPrefix, err)
		}
		slog.Debug("Loaded model configuration from file", "backend", envPrefix, "path", configPath)
		return nil
	}

	// Try default config file in config directory
	defaultPath := filepath.Join("config", fmt.Sprintf("%s.json", envPrefix))
	if data, err := os.ReadFile(defaultPath); err == nil {
		if err := json.Unmarshal(data, config); err == nil {
			slog.Debug("Loaded model configuration from default file", "backend", envPrefix, "path", defaultPath)
			return nil
		}
	}

	// Fall back to environment variables
	slog.Debug("Using environment variables for model configuration", "backend", envPrefix)
	return nil
}
