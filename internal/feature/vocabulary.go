// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

// Package feature derives one numeric feature vector per customer from the
// normalized tables, and standardizes the numerical subset of columns.
//
// Column order is an invariant: the similarity engine and every consumer
// agree on a single canonical ordering fixed once per run — the fixed
// numeric columns first, then one-hot category-count columns sorted by
// category name, then one-hot region columns sorted by region name.
package feature

import (
	"errors"
	"fmt"
	"sort"

	"github.com/commercelens/lookalike/internal/config"
	"github.com/commercelens/lookalike/internal/schema"
)

// ErrUnseenValue indicates a region or category outside the configured
// vocabulary under the "reject" unseen policy.
var ErrUnseenValue = errors.New("value outside configured vocabulary")

// OtherBucket is the shared one-hot bucket for out-of-vocabulary values
// under the "other" unseen policy.
const OtherBucket = "other"

// Vocabulary pins the one-hot column sets for categories and regions.
// An explicit, versioned vocabulary keeps feature dimensionality stable
// across runs with different inputs; an empty configured list falls back
// to the sorted vocabulary discovered in the data, which is only safe for
// batch use where fit and scoring share one input.
type Vocabulary struct {
	// Version identifies the vocabulary revision recorded with results.
	Version int

	// Regions and Categories are sorted, deduplicated value lists.
	Regions    []string
	Categories []string

	// UnseenPolicy is "other" (map to OtherBucket) or "reject".
	UnseenPolicy string

	regionIndex   map[string]int
	categoryIndex map[string]int
}

// NewVocabulary builds the vocabulary from configuration, falling back to
// values discovered in the normalized tables when a configured list is
// empty. Under the "other" policy the OtherBucket value is always a member
// so unseen values have a stable column to land in.
func NewVocabulary(cfg *config.VocabularyConfig, tables *schema.Tables) *Vocabulary {
	regions := cfg.Regions
	if len(regions) == 0 {
		seen := make(map[string]struct{})
		for _, c := range tables.Customers {
			seen[c.Region] = struct{}{}
		}
		regions = keys(seen)
	}

	categories := cfg.Categories
	if len(categories) == 0 {
		seen := make(map[string]struct{})
		for _, t := range tables.Transactions {
			seen[t.Category] = struct{}{}
		}
		categories = keys(seen)
	}

	v := &Vocabulary{
		Version:      cfg.Version,
		Regions:      normalize(regions, cfg.UnseenPolicy == "other"),
		Categories:   normalize(categories, cfg.UnseenPolicy == "other"),
		UnseenPolicy: cfg.UnseenPolicy,
	}

	v.regionIndex = make(map[string]int, len(v.Regions))
	for i, r := range v.Regions {
		v.regionIndex[r] = i
	}
	v.categoryIndex = make(map[string]int, len(v.Categories))
	for i, c := range v.Categories {
		v.categoryIndex[c] = i
	}

	return v
}

// RegionIndex resolves a region value to its one-hot column index.
func (v *Vocabulary) RegionIndex(region string) (int, error) {
	return v.resolve(v.regionIndex, region, "region")
}

// CategoryIndex resolves a category value to its one-hot column index.
func (v *Vocabulary) CategoryIndex(category string) (int, error) {
	return v.resolve(v.categoryIndex, category, "category")
}

func (v *Vocabulary) resolve(index map[string]int, value, kind string) (int, error) {
	if i, ok := index[value]; ok {
		return i, nil
	}
	if v.UnseenPolicy == "other" {
		return index[OtherBucket], nil
	}
	return 0, fmt.Errorf("%w: %s %q (vocabulary version %d)", ErrUnseenValue, kind, value, v.Version)
}

// normalize sorts and deduplicates values, inserting the other-bucket
// member when required.
func normalize(values []string, withOther bool) []string {
	seen := make(map[string]struct{}, len(values)+1)
	for _, val := range values {
		seen[val] = struct{}{}
	}
	if withOther {
		seen[OtherBucket] = struct{}{}
	}
	return keys(seen)
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
