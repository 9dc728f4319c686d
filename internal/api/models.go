// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package api

import (
	"time"

	"github.com/commercelens/lookalike/internal/store"
)

// APIResponse is the uniform response envelope for every endpoint.
type APIResponse struct {
	Status   string      `json:"status"` // "success" or "error"
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response bookkeeping.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Count     int       `json:"count,omitempty"`
}

// APIError is the machine-readable error payload.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// LookalikeResponse is the per-customer lookalike list payload.
type LookalikeResponse struct {
	CustomerID string                  `json:"customer_id"`
	K          int                     `json:"k"`
	Lookalikes []store.RankedCandidate `json:"lookalikes"`
}

// CustomerSummary is one row in the customer listing.
type CustomerSummary struct {
	CustomerID string    `json:"customer_id"`
	Name       string    `json:"name"`
	Region     string    `json:"region"`
	SignupDate time.Time `json:"signup_date"`
}

// CustomersResponse is the paginated customer listing payload.
type CustomersResponse struct {
	Customers []CustomerSummary `json:"customers"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// RunSummary describes the most recent pipeline run.
type RunSummary struct {
	RunID               string    `json:"run_id,omitempty"`
	State               string    `json:"state"` // "idle", "running", "success", "error"
	Customers           int       `json:"customers,omitempty"`
	Excluded            int       `json:"excluded,omitempty"`
	DroppedTransactions int64     `json:"dropped_transactions,omitempty"`
	DegenerateColumns   []string  `json:"degenerate_columns,omitempty"`
	ReferenceTime       time.Time `json:"reference_time"`
	CompletedAt         time.Time `json:"completed_at"`
	DurationMs          int64     `json:"duration_ms,omitempty"`
	Error               string    `json:"error,omitempty"`
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status   string     `json:"status"`
	Version  string     `json:"version"`
	Uptime   string     `json:"uptime"`
	LastRun  RunSummary `json:"last_run"`
	Database string     `json:"database"`
}
