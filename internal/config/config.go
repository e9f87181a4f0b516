// Package config resolves tool configuration from archive.yaml and the
// environment. Precedence, lowest to highest: built-in defaults, the YAML
// file, environment variables (optionally loaded from a .env file), CLI
// flags applied by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks for the config file when no explicit path
// is given.
const DefaultPath = "archive.yaml"

// Config holds the archive tool's settings.
type Config struct {
	// BooksDir is the directory of per-book JSON exports.
	BooksDir string `yaml:"booksDir"`
	// IndexPath is where the consolidated index document is written.
	IndexPath string `yaml:"indexPath"`
	// DatabasePath is the optional run-history database; empty disables it.
	DatabasePath string `yaml:"databasePath"`
}

// Default returns the built-in configuration, matching the archive's
// historical layout.
func Default() *Config {
	return &Config{
		BooksDir:  "books",
		IndexPath: filepath.Join("ui", "data", "index.json"),
	}
}

// Load reads the configuration. A missing file is only an error when the
// path was requested explicitly. Environment variables LIBBY_BOOKS_DIR,
// LIBBY_INDEX_PATH and LIBBY_DB_PATH override file values; a .env file in
// the working directory is honored.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best effort; absent .env is fine

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// optional default config, keep defaults
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if v := os.Getenv("LIBBY_BOOKS_DIR"); v != "" {
		cfg.BooksDir = v
	}
	if v := os.Getenv("LIBBY_INDEX_PATH"); v != "" {
		cfg.IndexPath = v
	}
	if v := os.Getenv("LIBBY_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	return cfg, nil
}
