// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

// Package api provides the HTTP query surface over persisted lookalike
// results using the Chi router: per-customer lookalike lists, customer
// listing, pipeline trigger and status, health, and Prometheus metrics.
package api
