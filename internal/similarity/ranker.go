// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package similarity

import (
	"context"
	"sort"
)

// Candidate is one ranked lookalike for a target customer.
type Candidate struct {
	CustomerID string
	Score      float64
}

// sortCandidates orders by score descending, then customer id ascending.
// The id tie-break makes rankings stable across runs when scores are
// exactly equal.
func sortCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].CustomerID < candidates[j].CustomerID
	})
}

// Ranker produces top-N lookalike lists from a trained engine.
type Ranker struct {
	engine *Engine
}

// NewRanker creates a ranker over the given engine.
func NewRanker(engine *Engine) *Ranker {
	return &Ranker{engine: engine}
}

// Rank returns the top n most similar customers to the target, excluding
// the target itself. When fewer than n candidates exist the full shorter
// list is returned. An unknown target yields a NotFoundError.
func (r *Ranker) Rank(customerID string, n int) ([]Candidate, error) {
	self, row, err := r.engine.row(customerID)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(row)-1)
	for j, score := range row {
		if j == self {
			continue
		}
		candidates = append(candidates, Candidate{CustomerID: r.engine.ids[j], Score: score})
	}

	sortCandidates(candidates)

	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}

// RankAll returns the top n lookalikes for every customer in the trained
// population, keyed by customer id.
func (r *Ranker) RankAll(ctx context.Context, n int) (map[string][]Candidate, error) {
	results := make(map[string][]Candidate, r.engine.Size())

	for _, id := range r.engine.IDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ranked, err := r.Rank(id, n)
		if err != nil {
			return nil, err
		}
		results[id] = ranked
	}

	return results, nil
}
