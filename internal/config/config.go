// Package config provides configuration loading and structs for the Mitsuke server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Encoder  EncoderConfig  `yaml:"encoder"`
	Expander ExpanderConfig `yaml:"expander"`
	Session  SessionConfig  `yaml:"session"`
	Search   SearchConfig   `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the persisted index pair and the keyword index.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	VectorIndexPath  string `yaml:"vector_index_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
	UploadDir        string `yaml:"upload_dir"`
}

// CatalogConfig holds catalog source locations.
type CatalogConfig struct {
	CSVPath    string `yaml:"csv_path"`
	ImagesPath string `yaml:"images_path"`
	MaxItems   int    `yaml:"max_items"`
}

// EncoderConfig holds settings for the joint text/image embedding service.
// An empty BaseURL selects the deterministic in-process encoder.
type EncoderConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	CacheSize      int    `yaml:"cache_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ExpanderConfig holds settings for the query expansion model.
type ExpanderConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Disabled       bool   `yaml:"disabled"`
}

// SessionConfig holds conversation memory settings.
type SessionConfig struct {
	TTLMinutes   int `yaml:"ttl_minutes"`
	SweepMinutes int `yaml:"sweep_minutes"`
	MaxHistory   int `yaml:"max_history"`
}

// SearchConfig holds retrieval depths, caps, and fusion weights.
type SearchConfig struct {
	ImageTopK     int     `yaml:"image_top_k"`
	TextTopK      int     `yaml:"text_top_k"`
	GroupItemCap  int     `yaml:"group_item_cap"`
	MaxSubQueries int     `yaml:"max_sub_queries"`
	MinImageScore float64 `yaml:"min_image_score"`
	TextWeight    float64 `yaml:"text_weight"`
	ImageWeight   float64 `yaml:"image_weight"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Catalog.CSVPath = expandPath(cfg.Catalog.CSVPath, configDir)
	cfg.Catalog.ImagesPath = expandPath(cfg.Catalog.ImagesPath, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
