// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/commercelens/lookalike/internal/schema"
)

// RankedCandidate is one (candidate, score) entry in a lookalike list.
type RankedCandidate struct {
	CustomerID string  `json:"customer_id"`
	Score      float64 `json:"score"`
}

// SaveResults persists the ranked lookalike lists for one pipeline run.
// Position preserves list order so reads reproduce the ranking exactly.
func (s *Store) SaveResults(ctx context.Context, runID string, results map[string][]RankedCandidate) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin results transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM lookalike_results WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("clear previous results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO lookalike_results (run_id, cust_id, position, candidate_id, score)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare results insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	// Deterministic write order for reproducible runs.
	custIDs := make([]string, 0, len(results))
	for id := range results {
		custIDs = append(custIDs, id)
	}
	sort.Strings(custIDs)

	for _, custID := range custIDs {
		for pos, cand := range results[custID] {
			if _, err := stmt.ExecContext(ctx, runID, custID, pos+1, cand.CustomerID, cand.Score); err != nil {
				return fmt.Errorf("insert result row for %s: %w", custID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}

	s.logger.Info().
		Str("run_id", runID).
		Int("customers", len(results)).
		Msg("lookalike results persisted")

	return nil
}

// GetLookalikes returns the persisted ranked list for one customer from the
// most recent run containing it. Returns NotFoundError when the customer
// has no persisted list.
func (s *Store) GetLookalikes(ctx context.Context, custID string, limit int) ([]RankedCandidate, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT candidate_id, score
		 FROM lookalike_results
		 WHERE cust_id = ?
		   AND run_id = (
		       SELECT run_id FROM lookalike_results
		       WHERE cust_id = ? ORDER BY created_at DESC LIMIT 1
		   )
		 ORDER BY position
		 LIMIT ?`, custID, custID, limit)
	if err != nil {
		return nil, fmt.Errorf("select lookalikes: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []RankedCandidate
	for rows.Next() {
		var c RankedCandidate
		if err := rows.Scan(&c.CustomerID, &c.Score); err != nil {
			return nil, fmt.Errorf("scan lookalike row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) == 0 {
		return nil, &schema.NotFoundError{CustomerID: custID}
	}
	return out, nil
}

// ScalerParam is one fitted standardization parameter row.
type ScalerParam struct {
	Column     string
	Mean       float64
	Stddev     float64
	Degenerate bool
}

// SaveScalerParams persists the fitted scaler parameters for a run so that
// new records can later be scored against the same population.
func (s *Store) SaveScalerParams(ctx context.Context, runID string, params []ScalerParam) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin params transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM scaler_params WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("clear previous params: %w", err)
	}

	for _, p := range params {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scaler_params (run_id, column_name, mean, stddev, degenerate)
			 VALUES (?, ?, ?, ?, ?)`,
			runID, p.Column, p.Mean, p.Stddev, p.Degenerate); err != nil {
			return fmt.Errorf("insert scaler param %s: %w", p.Column, err)
		}
	}

	return tx.Commit()
}

// ListCustomers returns customer ids with pagination, for the API surface.
func (s *Store) ListCustomers(ctx context.Context, limit, offset int) ([]schema.Customer, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT customer_id, customer_name, region, signup_date
		 FROM customers ORDER BY customer_id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []schema.Customer
	for rows.Next() {
		var c schema.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Region, &c.SignupDate); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
