// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

// Package metrics provides Prometheus instrumentation for the pipeline
// and the query API:
//   - Ingest volumes and join-integrity drop counts
//   - Per-stage pipeline durations
//   - Feature table size and exclusion counts
//   - Rank request latency and throughput
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics
	IngestRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rows_total",
			Help: "Total number of rows ingested per input table",
		},
		[]string{"table"},
	)

	IngestDroppedTransactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_dropped_transactions_total",
			Help: "Transactions dropped by the product/customer inner join",
		},
	)

	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "Total number of ingest errors",
		},
		[]string{"table", "error_type"}, // "schema", "io", "database"
	)

	// Pipeline metrics
	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"stage"}, // "ingest", "features", "scaling", "similarity", "ranking", "serialize"
	)

	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"status"}, // "success", "error"
	)

	FeatureCustomers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feature_customers",
			Help: "Customers retained in the feature table after exclusion",
		},
	)

	FeatureExcludedCustomers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feature_excluded_customers",
			Help: "Customers excluded for having no transactions (drop policy)",
		},
	)

	FeatureDimensions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feature_dimensions",
			Help: "Width of the feature matrix (numeric + one-hot columns)",
		},
	)

	ScalerDegenerateColumns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scaler_degenerate_columns",
			Help: "Zero-variance numerical columns left unscaled during fit",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	RankRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rank_requests_total",
			Help: "Total number of lookalike rank requests by outcome",
		},
		[]string{"status"}, // "ok", "not_found", "error"
	)
)

// ObserveStage records the duration of a pipeline stage.
func ObserveStage(stage string, start time.Time) {
	PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordAPIRequest records one API request with its final status code.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
