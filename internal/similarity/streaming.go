// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package similarity

import (
	"context"
	"sync"

	"github.com/commercelens/lookalike/internal/feature"
)

// StreamRank computes the top n lookalikes for every customer without
// materializing the full pairwise matrix. Memory is O(customers * n)
// instead of O(customers^2); compute cost is the same, and the rankings
// are identical to the matrix path.
func StreamRank(ctx context.Context, cfg Config, table *feature.Table, n int) (map[string][]Candidate, error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 4
	}

	count := len(table.Records)
	ids := make([]string, count)
	vectors := make([][]float64, count)
	norms := make([]float64, count)
	for i, rec := range table.Records {
		ids[i] = rec.CustomerID
		vectors[i] = rec.Values
		norms[i] = norm(rec.Values)
	}

	results := make(map[string][]Candidate, count)

	var wg sync.WaitGroup
	var mu sync.Mutex
	chunkSize := (count + cfg.NumWorkers - 1) / cfg.NumWorkers

	for w := 0; w < cfg.NumWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > count {
			end = count
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()

			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					return
				}

				candidates := make([]Candidate, 0, count-1)
				for j := 0; j < count; j++ {
					if j == i {
						continue
					}
					score := cosineWithNorms(vectors[i], vectors[j], norms[i], norms[j])
					candidates = append(candidates, Candidate{CustomerID: ids[j], Score: score})
				}

				sortCandidates(candidates)
				if n > 0 && len(candidates) > n {
					candidates = candidates[:n:n]
				}

				mu.Lock()
				results[ids[i]] = candidates
				mu.Unlock()
			}
		}(start, end)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
