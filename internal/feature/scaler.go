// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package feature

import (
	"fmt"
	"math"

	"github.com/commercelens/lookalike/internal/schema"
)

// ScalerParams holds the fitted standardization parameters for the
// numerical columns of one population. Fit and Apply are separate so the
// same fitted parameters can score a new record against an existing
// population instead of being recomputed.
type ScalerParams struct {
	// Columns names the standardized columns, in table order.
	Columns []string

	// Mean and Stddev are per-column moments (population standard
	// deviation over the fitted records).
	Mean   []float64
	Stddev []float64

	// Degenerate marks zero-variance columns. Those are left unscaled
	// (identity transform) instead of crashing on the zero divisor.
	Degenerate []bool

	// positions caches the column offsets within the feature table.
	positions []int
}

// DegenerateColumns returns the names of flagged zero-variance columns.
func (p *ScalerParams) DegenerateColumns() []string {
	var out []string
	for i, d := range p.Degenerate {
		if d {
			out = append(out, p.Columns[i])
		}
	}
	return out
}

// Fit computes per-column mean and standard deviation over the table's
// numerical columns. One-hot columns are not part of the fit.
func Fit(t *Table) (*ScalerParams, error) {
	positions, err := columnPositions(t)
	if err != nil {
		return nil, err
	}

	n := len(t.NumericColumns)
	p := &ScalerParams{
		Columns:    append([]string(nil), t.NumericColumns...),
		Mean:       make([]float64, n),
		Stddev:     make([]float64, n),
		Degenerate: make([]bool, n),
		positions:  positions,
	}

	if len(t.Records) == 0 {
		// Nothing to fit; every column is degenerate by definition.
		for i := range p.Degenerate {
			p.Degenerate[i] = true
		}
		return p, nil
	}

	count := float64(len(t.Records))
	for i, pos := range positions {
		var sum float64
		for _, rec := range t.Records {
			sum += rec.Values[pos]
		}
		p.Mean[i] = sum / count
	}
	for i, pos := range positions {
		var sq float64
		for _, rec := range t.Records {
			d := rec.Values[pos] - p.Mean[i]
			sq += d * d
		}
		p.Stddev[i] = math.Sqrt(sq / count)
		if p.Stddev[i] == 0 {
			// Near-constant column: flag and leave unscaled rather than
			// divide by zero.
			p.Degenerate[i] = true
		}
	}

	return p, nil
}

// Apply returns a new table with the numerical columns standardized to
// (value - mean) / stddev using the fitted parameters. Degenerate columns
// pass through unchanged; categorical one-hot columns are untouched.
// The input table is not mutated.
func (p *ScalerParams) Apply(t *Table) (*Table, error) {
	positions, err := p.positionsFor(t)
	if err != nil {
		return nil, err
	}

	out := &Table{
		Columns:        t.Columns,
		NumericColumns: t.NumericColumns,
		Excluded:       t.Excluded,
		Records:        make([]Record, len(t.Records)),
	}

	for ri, rec := range t.Records {
		values := append([]float64(nil), rec.Values...)
		for i, pos := range positions {
			if p.Degenerate[i] {
				continue
			}
			values[pos] = (values[pos] - p.Mean[i]) / p.Stddev[i]
		}
		out.Records[ri] = Record{CustomerID: rec.CustomerID, Values: values}
	}

	return out, nil
}

// ApplyRecord standardizes a single record in place against the fitted
// population, for scoring new customers without refitting.
func (p *ScalerParams) ApplyRecord(t *Table, rec *Record) error {
	positions, err := p.positionsFor(t)
	if err != nil {
		return err
	}
	if len(rec.Values) != len(t.Columns) {
		return fmt.Errorf("%w: record has %d values, table has %d columns",
			schema.ErrSchema, len(rec.Values), len(t.Columns))
	}
	for i, pos := range positions {
		if p.Degenerate[i] {
			continue
		}
		rec.Values[pos] = (rec.Values[pos] - p.Mean[i]) / p.Stddev[i]
	}
	return nil
}

// positionsFor validates that the fitted columns exist in the table and
// returns their offsets.
func (p *ScalerParams) positionsFor(t *Table) ([]int, error) {
	if len(p.positions) == len(p.Columns) {
		return p.positions, nil
	}

	index := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		index[c] = i
	}

	positions := make([]int, len(p.Columns))
	for i, c := range p.Columns {
		pos, ok := index[c]
		if !ok {
			return nil, fmt.Errorf("%w: fitted column %q not present in table", schema.ErrSchema, c)
		}
		positions[i] = pos
	}
	p.positions = positions
	return positions, nil
}

// columnPositions maps the table's declared numerical columns to offsets.
func columnPositions(t *Table) ([]int, error) {
	index := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		index[c] = i
	}

	positions := make([]int, len(t.NumericColumns))
	for i, c := range t.NumericColumns {
		pos, ok := index[c]
		if !ok {
			return nil, fmt.Errorf("%w: numerical column %q not present in table", schema.ErrSchema, c)
		}
		positions[i] = pos
	}
	return positions, nil
}
