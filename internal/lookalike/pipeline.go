// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package lookalike

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/commercelens/lookalike/internal/config"
	"github.com/commercelens/lookalike/internal/feature"
	"github.com/commercelens/lookalike/internal/logging"
	"github.com/commercelens/lookalike/internal/metrics"
	"github.com/commercelens/lookalike/internal/similarity"
	"github.com/commercelens/lookalike/internal/store"
)

// Result summarizes one completed pipeline run.
type Result struct {
	// RunID identifies this run in logs and persisted tables.
	RunID string

	// ReferenceTime is the fixed instant T the run was computed against.
	ReferenceTime time.Time

	// Customers is the number of customers in the feature table.
	Customers int

	// Excluded lists customers dropped for having no transactions.
	Excluded []string

	// DroppedTransactions counts rows removed by the join integrity check.
	DroppedTransactions int64

	// DegenerateColumns names zero-variance columns left unscaled.
	DegenerateColumns []string

	// Rankings holds the top-N lookalike list per customer id.
	Rankings map[string][]similarity.Candidate

	// Engine is the trained similarity engine, nil under streaming.
	Engine *similarity.Engine

	Duration    time.Duration
	CompletedAt time.Time
}

// Pipeline runs the batch similarity computation end to end.
type Pipeline struct {
	cfg   *config.Config
	store *store.Store
}

// NewPipeline creates a pipeline over an opened store.
func NewPipeline(cfg *config.Config, st *store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, store: st}
}

// Run executes all stages against the configured inputs. Every "days
// since" computation uses one fixed reference instant resolved up front,
// so a run's output is reproducible regardless of wall-clock drift while
// it executes.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New().String()
	started := time.Now()
	logger := logging.With().Str("run_id", runID).Logger()

	result, err := p.run(ctx, runID, &logger)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msg("pipeline run failed")
		return nil, err
	}

	result.Duration = time.Since(started)
	result.CompletedAt = time.Now().UTC()
	metrics.PipelineRunsTotal.WithLabelValues("success").Inc()

	logger.Info().
		Int("customers", result.Customers).
		Int("excluded", len(result.Excluded)).
		Int64("dropped_transactions", result.DroppedTransactions).
		Dur("duration", result.Duration).
		Msg("pipeline run complete")

	return result, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, logger *zerolog.Logger) (*Result, error) {
	refTime, err := p.cfg.ReferenceInstant(time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve reference instant: %w", err)
	}

	workers := p.cfg.Pipeline.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// Stage 1: ingest and normalize the three CSV tables.
	stageStart := time.Now()
	tables, err := p.store.Ingest(ctx, &p.cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	metrics.ObserveStage("ingest", stageStart)

	// Stage 2: feature table against the fixed reference instant.
	stageStart = time.Now()
	vocab := feature.NewVocabulary(&p.cfg.Vocabulary, tables)
	table, err := feature.Build(feature.BuilderConfig{
		ReferenceTime: refTime,
		MissingPolicy: p.cfg.Pipeline.MissingPolicy,
	}, vocab, tables)
	if err != nil {
		return nil, fmt.Errorf("build features: %w", err)
	}
	metrics.ObserveStage("features", stageStart)
	metrics.FeatureCustomers.Set(float64(len(table.Records)))
	metrics.FeatureExcludedCustomers.Set(float64(len(table.Excluded)))
	metrics.FeatureDimensions.Set(float64(len(table.Columns)))

	logger.Info().
		Int("customers", len(table.Records)).
		Int("excluded", len(table.Excluded)).
		Int("dimensions", len(table.Columns)).
		Int("vocabulary_version", vocab.Version).
		Msg("feature table built")

	// Stage 3: fit and apply standardization on the numerical columns.
	stageStart = time.Now()
	params, err := feature.Fit(table)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	scaled, err := params.Apply(table)
	if err != nil {
		return nil, fmt.Errorf("apply scaler: %w", err)
	}
	metrics.ObserveStage("scaling", stageStart)

	degenerate := params.DegenerateColumns()
	metrics.ScalerDegenerateColumns.Set(float64(len(degenerate)))
	if len(degenerate) > 0 {
		logger.Warn().
			Strs("columns", degenerate).
			Msg("zero-variance columns left unscaled")
	}

	if err := p.store.SaveScalerParams(ctx, runID, scalerParamRows(params)); err != nil {
		return nil, fmt.Errorf("persist scaler params: %w", err)
	}

	// Stages 4-5: pairwise similarity and per-customer top-N.
	simCfg := similarity.Config{NumWorkers: workers}
	var (
		rankings map[string][]similarity.Candidate
		engine   *similarity.Engine
	)
	if p.cfg.Pipeline.Streaming {
		stageStart = time.Now()
		rankings, err = similarity.StreamRank(ctx, simCfg, scaled, p.cfg.Pipeline.TopN)
		if err != nil {
			return nil, fmt.Errorf("streaming rank: %w", err)
		}
		metrics.ObserveStage("similarity", stageStart)
	} else {
		stageStart = time.Now()
		engine = similarity.NewEngine(simCfg)
		if err := engine.Train(ctx, scaled); err != nil {
			return nil, fmt.Errorf("train similarity engine: %w", err)
		}
		metrics.ObserveStage("similarity", stageStart)

		stageStart = time.Now()
		rankings, err = similarity.NewRanker(engine).RankAll(ctx, p.cfg.Pipeline.TopN)
		if err != nil {
			return nil, fmt.Errorf("rank customers: %w", err)
		}
		metrics.ObserveStage("ranking", stageStart)
	}

	// Stage 6: persist and serialize.
	stageStart = time.Now()
	if p.cfg.Output.PersistToDatabase {
		if err := p.store.SaveResults(ctx, runID, storeResults(rankings)); err != nil {
			return nil, fmt.Errorf("persist results: %w", err)
		}
	}
	if p.cfg.Output.Path != "" {
		if err := WriteResults(p.cfg.Output.Path, rankings); err != nil {
			return nil, fmt.Errorf("write results: %w", err)
		}
		logger.Info().Str("path", p.cfg.Output.Path).Msg("results written")
	}
	metrics.ObserveStage("serialize", stageStart)

	return &Result{
		RunID:               runID,
		ReferenceTime:       refTime,
		Customers:           len(table.Records),
		Excluded:            table.Excluded,
		DroppedTransactions: tables.DroppedTransactions,
		DegenerateColumns:   degenerate,
		Rankings:            rankings,
		Engine:              engine,
	}, nil
}

// scalerParamRows flattens fitted parameters into persistence rows.
func scalerParamRows(params *feature.ScalerParams) []store.ScalerParam {
	rows := make([]store.ScalerParam, len(params.Columns))
	for i, col := range params.Columns {
		rows[i] = store.ScalerParam{
			Column:     col,
			Mean:       params.Mean[i],
			Stddev:     params.Stddev[i],
			Degenerate: params.Degenerate[i],
		}
	}
	return rows
}

// storeResults converts ranked candidates into persistence rows.
func storeResults(rankings map[string][]similarity.Candidate) map[string][]store.RankedCandidate {
	out := make(map[string][]store.RankedCandidate, len(rankings))
	for id, candidates := range rankings {
		rows := make([]store.RankedCandidate, len(candidates))
		for i, c := range candidates {
			rows[i] = store.RankedCandidate{CustomerID: c.CustomerID, Score: c.Score}
		}
		out[id] = rows
	}
	return out
}
