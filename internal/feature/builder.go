// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package feature

import (
	"fmt"
	"time"

	"github.com/commercelens/lookalike/internal/schema"
)

// Fixed numeric columns, in canonical order. One-hot category columns
// follow, then one-hot region columns.
var numericColumns = []string{
	"signup_year",
	"signup_month",
	"days_since_signup",
	"total_spending",
	"num_purchases",
	"avg_purchase_value",
	"recency_days",
}

// Record is one customer's feature vector in canonical column order.
type Record struct {
	CustomerID string
	Values     []float64
}

// Table is the per-customer feature table.
type Table struct {
	// Columns is the canonical column order, identical for every record.
	Columns []string

	// NumericColumns names the continuous subset to be standardized.
	// One-hot columns are 0/1-valued and left untouched by the scaler.
	NumericColumns []string

	// Records holds one entry per retained customer, ordered by customer id.
	Records []Record

	// Excluded lists customers dropped for having no transactions under
	// the drop policy, sorted by customer id.
	Excluded []string
}

// Index returns customer id -> record position.
func (t *Table) Index() map[string]int {
	idx := make(map[string]int, len(t.Records))
	for i, r := range t.Records {
		idx[r.CustomerID] = i
	}
	return idx
}

// Matrix returns the record values as a dense row-major matrix. Rows alias
// the record slices; callers must not mutate them.
func (t *Table) Matrix() [][]float64 {
	m := make([][]float64, len(t.Records))
	for i, r := range t.Records {
		m[i] = r.Values
	}
	return m
}

// BuilderConfig parameterizes one feature-building run.
type BuilderConfig struct {
	// ReferenceTime is the fixed instant T for every "days since"
	// computation in this run. Threading it explicitly keeps output
	// reproducible across runs on different days.
	ReferenceTime time.Time

	// MissingPolicy is "drop" or "zero_fill" for customers without
	// transactions. Drop excludes them from the table entirely (the
	// feature vector is defined only over customers with at least one
	// transaction); zero_fill keeps them with zeroed aggregates, where
	// non-purchasers cluster together as a degenerate class. The two are
	// semantically different and not interchangeable.
	MissingPolicy string
}

// customerAggregate accumulates per-customer transaction statistics.
type customerAggregate struct {
	totalSpending  float64
	purchases      int
	lastPurchase   time.Time
	categoryCounts []float64
}

// Build derives the feature table from the normalized tables against the
// fixed reference instant. Every step is a pure aggregation with no side
// effects; for fixed inputs and reference instant the output is identical
// across runs.
func Build(cfg BuilderConfig, vocab *Vocabulary, tables *schema.Tables) (*Table, error) {
	if cfg.ReferenceTime.IsZero() {
		return nil, fmt.Errorf("reference time is required")
	}

	columns := make([]string, 0, len(numericColumns)+len(vocab.Categories)+len(vocab.Regions))
	columns = append(columns, numericColumns...)
	for _, c := range vocab.Categories {
		columns = append(columns, "cat_"+c)
	}
	for _, r := range vocab.Regions {
		columns = append(columns, "region_"+r)
	}

	aggregates, err := aggregateTransactions(vocab, tables.Transactions)
	if err != nil {
		return nil, err
	}

	table := &Table{
		Columns:        columns,
		NumericColumns: append([]string(nil), numericColumns...),
	}

	// Customers arrive sorted by id from the store; the record order is
	// therefore deterministic for a given input.
	for _, cust := range tables.Customers {
		agg, ok := aggregates[cust.ID]
		if !ok {
			if cfg.MissingPolicy == "zero_fill" {
				agg = &customerAggregate{categoryCounts: make([]float64, len(vocab.Categories))}
			} else {
				table.Excluded = append(table.Excluded, cust.ID)
				continue
			}
		}

		rec, err := buildRecord(cfg.ReferenceTime, vocab, cust, agg)
		if err != nil {
			return nil, err
		}
		table.Records = append(table.Records, rec)
	}

	return table, nil
}

// aggregateTransactions folds the joined transaction table into
// per-customer aggregates. Missing (category, customer) pairs stay zero.
func aggregateTransactions(vocab *Vocabulary, transactions []schema.Transaction) (map[string]*customerAggregate, error) {
	aggregates := make(map[string]*customerAggregate)

	for _, tx := range transactions {
		agg := aggregates[tx.CustomerID]
		if agg == nil {
			agg = &customerAggregate{categoryCounts: make([]float64, len(vocab.Categories))}
			aggregates[tx.CustomerID] = agg
		}

		agg.totalSpending += tx.TotalValue
		agg.purchases++
		if tx.Date.After(agg.lastPurchase) {
			agg.lastPurchase = tx.Date
		}

		ci, err := vocab.CategoryIndex(tx.Category)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		agg.categoryCounts[ci]++
	}

	return aggregates, nil
}

// buildRecord assembles one customer's vector in canonical column order.
func buildRecord(ref time.Time, vocab *Vocabulary, cust schema.Customer, agg *customerAggregate) (Record, error) {
	values := make([]float64, 0, len(numericColumns)+len(vocab.Categories)+len(vocab.Regions))

	// Average purchase value is guaranteed well-defined under the drop
	// policy (purchases >= 1); under zero_fill it degrades to zero.
	avg := 0.0
	if agg.purchases > 0 {
		avg = agg.totalSpending / float64(agg.purchases)
	}

	// Recency for a zero-filled customer is zero by definition of the
	// degenerate class, not a real purchase age.
	recency := 0.0
	if agg.purchases > 0 {
		recency = daysBetween(agg.lastPurchase, ref)
	}

	values = append(values,
		float64(cust.SignupDate.Year()),
		float64(cust.SignupDate.Month()),
		// Negative values (future signup dates) pass through unclamped.
		daysBetween(cust.SignupDate, ref),
		agg.totalSpending,
		float64(agg.purchases),
		avg,
		recency,
	)

	values = append(values, agg.categoryCounts...)

	regionHot := make([]float64, len(vocab.Regions))
	ri, err := vocab.RegionIndex(cust.Region)
	if err != nil {
		return Record{}, fmt.Errorf("customer %s: %w", cust.ID, err)
	}
	regionHot[ri] = 1
	values = append(values, regionHot...)

	return Record{CustomerID: cust.ID, Values: values}, nil
}

// daysBetween returns whole days from a to b, negative when a is after b.
func daysBetween(a, b time.Time) float64 {
	const day = 24 * time.Hour
	d := b.Sub(a)
	if d < 0 {
		return -float64((-d) / day)
	}
	return float64(d / day)
}
