// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

// Package store wraps the embedded DuckDB database. It owns the raw CSV
// parsing mechanics (delegated to DuckDB's typed read_csv), the schema
// normalization of the three input tables, the product/customer inner
// join on transactions, and the persistence of lookalike results and
// fitted scaler parameters.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/commercelens/lookalike/internal/config"
	"github.com/commercelens/lookalike/internal/logging"
)

// Store wraps the DuckDB connection and provides data access methods.
type Store struct {
	conn   *sql.DB
	cfg    *config.DatabaseConfig
	logger zerolog.Logger
}

// Open creates a new database connection and initializes the schema.
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for file-backed databases.
	if cfg.Path != ":memory:" && cfg.Path != "" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		conn:   conn,
		cfg:    cfg,
		logger: logging.With().Str("component", "store").Logger(),
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Msg("database opened")

	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Conn exposes the underlying connection for read-only queries in tests.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// initSchema creates the normalized tables and the result tables.
func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			customer_id   VARCHAR PRIMARY KEY,
			customer_name VARCHAR NOT NULL,
			region        VARCHAR NOT NULL,
			signup_date   DATE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			product_id VARCHAR PRIMARY KEY,
			category   VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			transaction_id   VARCHAR PRIMARY KEY,
			customer_id      VARCHAR NOT NULL,
			product_id       VARCHAR NOT NULL,
			transaction_date TIMESTAMP NOT NULL,
			quantity         INTEGER NOT NULL,
			total_value      DOUBLE NOT NULL,
			price            DOUBLE NOT NULL,
			category         VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS lookalike_results (
			run_id       VARCHAR NOT NULL,
			cust_id      VARCHAR NOT NULL,
			position     INTEGER NOT NULL,
			candidate_id VARCHAR NOT NULL,
			score        DOUBLE NOT NULL,
			created_at   TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS scaler_params (
			run_id      VARCHAR NOT NULL,
			column_name VARCHAR NOT NULL,
			mean        DOUBLE NOT NULL,
			stddev      DOUBLE NOT NULL,
			degenerate  BOOLEAN NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// truncateInputs clears the normalized input tables before a fresh ingest.
func (s *Store) truncateInputs(ctx context.Context) error {
	for _, table := range []string{"transactions", "products", "customers"} {
		if _, err := s.conn.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}
