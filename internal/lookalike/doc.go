// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

// Package lookalike orchestrates the batch pipeline: CSV ingest, feature
// building, standardization, pairwise similarity, top-N ranking, and
// result serialization. Each run is identified by a UUID and instrumented
// per stage.
package lookalike
