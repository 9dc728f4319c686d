// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

// Package config provides centralized configuration for all Lookalike
// components: input tables, feature vocabulary, pipeline policies, the
// DuckDB store, the HTTP server, and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Input      InputConfig      `koanf:"input"`
	Vocabulary VocabularyConfig `koanf:"vocabulary"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Database   DatabaseConfig   `koanf:"database"`
	Server     ServerConfig     `koanf:"server"`
	API        APIConfig        `koanf:"api"`
	Security   SecurityConfig   `koanf:"security"`
	Output     OutputConfig     `koanf:"output"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// InputConfig locates the three raw CSV tables.
type InputConfig struct {
	// CustomersPath is the customers CSV file path.
	CustomersPath string `koanf:"customers_path"`

	// ProductsPath is the products CSV file path.
	ProductsPath string `koanf:"products_path"`

	// TransactionsPath is the transactions CSV file path.
	TransactionsPath string `koanf:"transactions_path"`
}

// VocabularyConfig pins the one-hot vocabularies to an explicit, versioned
// list instead of run-time discovery. Empty lists fall back to the sorted
// vocabulary discovered in the data, which is only safe for batch use where
// fit and scoring share one input.
type VocabularyConfig struct {
	// Version identifies the vocabulary revision recorded with results.
	Version int `koanf:"version"`

	// Regions is the enumerated region list.
	Regions []string `koanf:"regions"`

	// Categories is the enumerated product category list.
	Categories []string `koanf:"categories"`

	// UnseenPolicy controls values outside the vocabulary: "other" maps
	// them to a shared bucket, "reject" fails the run.
	UnseenPolicy string `koanf:"unseen_policy"`
}

// PipelineConfig controls feature building, similarity, and ranking.
type PipelineConfig struct {
	// ReferenceTime is the fixed instant T used for every "days since"
	// computation in one run, RFC3339. Empty means the caller supplies it
	// (cmd/lookalike defaults to the current time at startup).
	ReferenceTime string `koanf:"reference_time"`

	// TopN is the number of lookalikes returned per customer.
	TopN int `koanf:"top_n"`

	// NumWorkers is the number of parallel workers for similarity rows.
	// 0 means runtime.NumCPU().
	NumWorkers int `koanf:"num_workers"`

	// MissingPolicy selects the aggregate policy for customers without
	// transactions: "drop" excludes them from the feature table entirely,
	// "zero_fill" keeps them with zeroed aggregates. The two are
	// semantically different and not interchangeable.
	MissingPolicy string `koanf:"missing_policy"`

	// Streaming computes top-N row-at-a-time without materializing the
	// full similarity matrix. Same external contract, lower memory.
	Streaming bool `koanf:"streaming"`
}

// DatabaseConfig configures the embedded DuckDB store.
type DatabaseConfig struct {
	// Path is the DuckDB database file path. ":memory:" for in-memory.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// ServerConfig configures the HTTP query server.
type ServerConfig struct {
	// Enabled starts the HTTP server after the batch run completes.
	Enabled bool `koanf:"enabled"`

	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig bounds API responses.
type APIConfig struct {
	// DefaultK is the lookalike count when the request omits k.
	DefaultK int `koanf:"default_k"`

	// MaxK is the upper bound on per-request lookalike count.
	MaxK int `koanf:"max_k"`

	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig configures rate limiting and CORS for the API.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// OutputConfig controls result persistence.
type OutputConfig struct {
	// Path is the JSON result file path.
	Path string `koanf:"path"`

	// PersistToDatabase also writes ranked lists to the DuckDB
	// lookalike_results table.
	PersistToDatabase bool `koanf:"persist_to_database"`
}

// LoggingConfig configures the zerolog global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateInput(); err != nil {
		return err
	}
	if err := c.validateVocabulary(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateInput() error {
	if c.Input.CustomersPath == "" {
		return fmt.Errorf("INPUT_CUSTOMERS_PATH is required")
	}
	if c.Input.ProductsPath == "" {
		return fmt.Errorf("INPUT_PRODUCTS_PATH is required")
	}
	if c.Input.TransactionsPath == "" {
		return fmt.Errorf("INPUT_TRANSACTIONS_PATH is required")
	}
	return nil
}

func (c *Config) validateVocabulary() error {
	switch c.Vocabulary.UnseenPolicy {
	case "other", "reject":
		return nil
	default:
		return fmt.Errorf("VOCABULARY_UNSEEN_POLICY must be 'other' or 'reject', got %q", c.Vocabulary.UnseenPolicy)
	}
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.TopN <= 0 {
		return fmt.Errorf("PIPELINE_TOP_N must be positive, got %d", c.Pipeline.TopN)
	}
	if c.Pipeline.NumWorkers < 0 {
		return fmt.Errorf("PIPELINE_NUM_WORKERS must be >= 0, got %d", c.Pipeline.NumWorkers)
	}
	switch c.Pipeline.MissingPolicy {
	case "drop", "zero_fill":
	default:
		return fmt.Errorf("PIPELINE_MISSING_POLICY must be 'drop' or 'zero_fill', got %q", c.Pipeline.MissingPolicy)
	}
	if c.Pipeline.ReferenceTime != "" {
		if _, err := time.Parse(time.RFC3339, c.Pipeline.ReferenceTime); err != nil {
			return fmt.Errorf("PIPELINE_REFERENCE_TIME must be RFC3339: %w", err)
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.DefaultK <= 0 || c.API.MaxK <= 0 {
		return fmt.Errorf("API_DEFAULT_K and API_MAX_K must be positive")
	}
	if c.API.DefaultK > c.API.MaxK {
		return fmt.Errorf("API_DEFAULT_K (%d) must not exceed API_MAX_K (%d)", c.API.DefaultK, c.API.MaxK)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled", "":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console", "":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got %q", c.Logging.Format)
	}
}

// ReferenceInstant parses the configured reference time, or returns the
// supplied fallback when unset. The fallback is how "now" enters the
// pipeline at the outermost boundary only.
func (c *Config) ReferenceInstant(fallback time.Time) (time.Time, error) {
	if c.Pipeline.ReferenceTime == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, c.Pipeline.ReferenceTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse reference time: %w", err)
	}
	return t, nil
}
