// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package similarity

import (
	"context"
	"fmt"
	"sync"

	"github.com/commercelens/lookalike/internal/feature"
	"github.com/commercelens/lookalike/internal/schema"
)

// Config contains configuration for the similarity engine.
type Config struct {
	// NumWorkers is the number of parallel workers for the pairwise
	// matrix computation.
	NumWorkers int
}

// Engine holds the precomputed pairwise cosine similarity matrix for one
// customer population. Build once per pipeline run, query many times.
type Engine struct {
	mu sync.RWMutex

	config Config

	// ids holds customer ids in feature-table order; index maps back.
	ids   []string
	index map[string]int

	// matrix[i][j] is the cosine similarity of customers i and j. The
	// matrix is symmetric with a unit diagonal for non-zero vectors.
	matrix [][]float64

	trained bool
}

// NewEngine creates a similarity engine.
func NewEngine(cfg Config) *Engine {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 4
	}
	return &Engine{config: cfg}
}

// Train computes the full pairwise similarity matrix from the standardized
// feature table. Rows are partitioned into contiguous chunks, one chunk
// per worker; each worker writes only its own rows so no write overlaps.
func (e *Engine) Train(ctx context.Context, table *feature.Table) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	n := len(table.Records)
	e.ids = make([]string, n)
	e.index = make(map[string]int, n)
	e.matrix = make([][]float64, n)

	vectors := make([][]float64, n)
	norms := make([]float64, n)
	for i, rec := range table.Records {
		e.ids[i] = rec.CustomerID
		e.index[rec.CustomerID] = i
		vectors[i] = rec.Values
		norms[i] = norm(rec.Values)
	}

	var wg sync.WaitGroup
	chunkSize := (n + e.config.NumWorkers - 1) / e.config.NumWorkers

	for w := 0; w < e.config.NumWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
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

				row := make([]float64, n)
				for j := 0; j < n; j++ {
					row[j] = cosineWithNorms(vectors[i], vectors[j], norms[i], norms[j])
				}
				e.matrix[i] = row
			}
		}(start, end)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	e.trained = true
	return nil
}

// Trained reports whether the matrix has been computed.
func (e *Engine) Trained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trained
}

// Size returns the number of customers in the trained population.
func (e *Engine) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.ids)
}

// IDs returns the customer ids in matrix order.
func (e *Engine) IDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.ids...)
}

// Similarity returns the pairwise similarity of two customers.
func (e *Engine) Similarity(a, b string) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.trained {
		return 0, fmt.Errorf("similarity engine is not trained")
	}

	i, ok := e.index[a]
	if !ok {
		return 0, &schema.NotFoundError{CustomerID: a}
	}
	j, ok := e.index[b]
	if !ok {
		return 0, &schema.NotFoundError{CustomerID: b}
	}

	return e.matrix[i][j], nil
}

// row returns the matrix row for a customer id.
func (e *Engine) row(id string) (int, []float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.trained {
		return 0, nil, fmt.Errorf("similarity engine is not trained")
	}

	i, ok := e.index[id]
	if !ok {
		return 0, nil, &schema.NotFoundError{CustomerID: id}
	}
	return i, e.matrix[i], nil
}
