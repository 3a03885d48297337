package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port      string `json:"port" yaml:"port"`
		StaticDir string `json:"static_dir" yaml:"static_dir"`
		Debug     bool   `json:"debug" yaml:"debug"`
	} `json:"server" yaml:"server"`

	Database struct {
		Path string `json:"path" yaml:"path"`
	} `json:"database" yaml:"database"`

	Log struct {
		Level  string `json:"level" yaml:"level"`
		Format string `json:"format" yaml:"format"` // "text" or "json"
		File   string `json:"file" yaml:"file"`
	} `json:"log" yaml:"log"`

	Session struct {
		Driver string `json:"driver" yaml:"driver"` // "memory", "sqlite" or "redis"
		Redis  struct {
			Addr     string `json:"addr" yaml:"addr"`
			Password string `json:"password" yaml:"password"`
			DB       int    `json:"db" yaml:"db"`
			Prefix   string `json:"prefix" yaml:"prefix"`
		} `json:"redis" yaml:"redis"`
	} `json:"session" yaml:"session"`

	Analysis struct {
		BaseURL        string `json:"base_url" yaml:"base_url"`
		AnalyzePath    string `json:"analyze_path" yaml:"analyze_path"`
		HistoryPath    string `json:"history_path" yaml:"history_path"`
		TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	} `json:"analysis" yaml:"analysis"`

	Imaging struct {
		JPEGQuality  int `json:"jpeg_quality" yaml:"jpeg_quality"`
		MaxDimension int `json:"max_dimension" yaml:"max_dimension"` // 0 keeps camera captures at full size
	} `json:"imaging" yaml:"imaging"`

	Translation struct {
		SourceLang       string `json:"source_lang" yaml:"source_lang"`
		TargetLang       string `json:"target_lang" yaml:"target_lang"`
		DictionaryFile   string `json:"dictionary_file" yaml:"dictionary_file"`
		Workers          int    `json:"workers" yaml:"workers"`
		RequireUnmetered bool   `json:"require_unmetered" yaml:"require_unmetered"`
		Prepare          bool   `json:"prepare" yaml:"prepare"` // provision both directions at startup
	} `json:"translation" yaml:"translation"`

	ML struct {
		Type       string `json:"type" yaml:"type"` // "google" or "openai"
		ConfigPath string `json:"config_path" yaml:"config_path"`
	} `json:"ml" yaml:"ml"`
}

// AnalysisTimeout returns the submission timeout as a duration.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutSeconds) * time.Second
}

// LoadConfig loads configuration from a JSON or YAML file, then applies
// environment overrides and defaults.
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env is fine; the process environment is used as-is
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&config)
	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("MEALDOSE_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("MEALDOSE_ANALYSIS_URL"); v != "" {
		c.Analysis.BaseURL = v
	}
	if v := os.Getenv("MEALDOSE_TARGET_LANG"); v != "" {
		c.Translation.TargetLang = v
	}
	if v := os.Getenv("MEALDOSE_SESSION_DRIVER"); v != "" {
		c.Session.Driver = v
	}
	if v := os.Getenv("MEALDOSE_REDIS_ADDR"); v != "" {
		c.Session.Redis.Addr = v
	}
	if v := os.Getenv("MEALDOSE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func applyDefaults(c *Config) {
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "./static"
	}
	if c.Database.Path == "" {
		c.Database.Path = "mealdose.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Session.Driver == "" {
		c.Session.Driver = "sqlite"
	}
	if c.Analysis.AnalyzePath == "" {
		c.Analysis.AnalyzePath = "/api/v1/meals/analyze"
	}
	if c.Analysis.HistoryPath == "" {
		c.Analysis.HistoryPath = "/api/v1/meals/history"
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		c.Analysis.TimeoutSeconds = 30
	}
	if c.Imaging.JPEGQuality == 0 {
		c.Imaging.JPEGQuality = 90
	}
	if c.Translation.SourceLang == "" {
		c.Translation.SourceLang = "en"
	}
	if c.Translation.TargetLang == "" {
		c.Translation.TargetLang = "es"
	}
	if c.Translation.Workers <= 0 {
		c.Translation.Workers = 4
	}
	if c.ML.Type == "" {
		c.ML.Type = "google"
	}
}

// Validate reports settings the process cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is not set in config file")
	}
	if c.Analysis.BaseURL == "" {
		return fmt.Errorf("analysis base_url is not set in config file")
	}
	if c.Imaging.JPEGQuality < 1 || c.Imaging.JPEGQuality > 100 {
		return fmt.Errorf("imaging jpeg_quality must be between 1 and 100, got %d", c.Imaging.JPEGQuality)
	}
	return nil
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("MEALDOSE_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}
