// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

// Package main is the entry point for the lookalike batch pipeline and
// query server.
//
// The program ingests three CSV tables (customers, products,
// transactions), derives one standardized feature vector per customer,
// computes pairwise cosine similarity, and writes the top-N most similar
// customers per customer to a JSON file. With SERVER_ENABLED=true it then
// serves the persisted results over a REST API.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (INPUT_CUSTOMERS_PATH, PIPELINE_TOP_N, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Example Usage
//
// One-shot batch run:
//
//	export INPUT_CUSTOMERS_PATH=data/Customer.csv
//	export INPUT_PRODUCTS_PATH=data/Product.csv
//	export INPUT_TRANSACTIONS_PATH=data/Transactions.csv
//	./lookalike
//
// Batch run plus query server:
//
//	export SERVER_ENABLED=true
//	export HTTP_PORT=8793
//	./lookalike
//
// Reproducible run pinned to a reference instant:
//
//	export PIPELINE_REFERENCE_TIME=2025-01-01T00:00:00Z
//	./lookalike
//
// # Signal Handling
//
// In server mode the process shuts down gracefully on SIGINT and SIGTERM:
// it stops accepting new connections, drains in-flight requests (10s
// timeout), and closes the database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commercelens/lookalike/internal/api"
	"github.com/commercelens/lookalike/internal/config"
	"github.com/commercelens/lookalike/internal/logging"
	"github.com/commercelens/lookalike/internal/lookalike"
	"github.com/commercelens/lookalike/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("fatal error")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close store")
		}
	}()

	// Server mode serves persisted results, so the run must persist.
	if cfg.Server.Enabled {
		cfg.Output.PersistToDatabase = true
	}

	pipeline := lookalike.NewPipeline(cfg, st)
	result, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	if !cfg.Server.Enabled {
		return nil
	}

	handler := api.NewHandler(cfg, st, pipeline)
	handler.SetLastRun(result)
	server := api.NewServer(&cfg.Server, api.NewRouter(cfg, handler).Setup())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown did not complete cleanly")
		os.Exit(1)
	}

	return <-errCh
}
