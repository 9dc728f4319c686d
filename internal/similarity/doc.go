// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

// Package similarity computes pairwise cosine similarity over customer
// feature vectors and ranks candidates per customer.
//
// Two execution strategies share one scoring semantics: Engine
// materializes the full pairwise matrix for repeated queries, and the
// streaming ranker computes one customer's row at a time for populations
// where the n x n matrix does not fit in memory. For the same input both
// produce identical rankings.
package similarity
