// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package lookalike

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/commercelens/lookalike/internal/similarity"
)

// rankedPair serializes one candidate as a ["id", score] JSON pair.
type rankedPair similarity.Candidate

func (p rankedPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.CustomerID, p.Score})
}

// MarshalResults encodes the per-customer rankings as a JSON object
// mapping customer id to an ordered list of [candidate_id, score] pairs.
// Keys are sorted; scores carry full float64 round-trip precision so
// downstream consumers can reproduce tie-breaks exactly.
func MarshalResults(rankings map[string][]similarity.Candidate) ([]byte, error) {
	doc := make(map[string][]rankedPair, len(rankings))
	for id, candidates := range rankings {
		pairs := make([]rankedPair, len(candidates))
		for i, c := range candidates {
			pairs[i] = rankedPair(c)
		}
		doc[id] = pairs
	}
	return json.MarshalIndent(doc, "", "  ")
}

// WriteResults serializes the rankings to a JSON file, creating parent
// directories as needed.
func WriteResults(path string, rankings map[string][]similarity.Candidate) error {
	data, err := MarshalResults(rankings)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write results file: %w", err)
	}
	return nil
}
