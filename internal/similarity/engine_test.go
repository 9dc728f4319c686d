// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package similarity

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/commercelens/lookalike/internal/feature"
	"github.com/commercelens/lookalike/internal/schema"
)

func testFeatureTable() *feature.Table {
	return &feature.Table{
		Columns: []string{"a", "b", "c"},
		Records: []feature.Record{
			{CustomerID: "C0001", Values: []float64{1, 0, 0}},
			{CustomerID: "C0002", Values: []float64{0, 1, 0}},
			{CustomerID: "C0003", Values: []float64{1, 1, 0}},
			{CustomerID: "C0004", Values: []float64{2, 0, 0}},
			{CustomerID: "C0005", Values: []float64{0, 0, 0}},
		},
	}
}

func trainedEngine(t *testing.T, workers int) *Engine {
	t.Helper()
	engine := NewEngine(Config{NumWorkers: workers})
	if err := engine.Train(context.Background(), testFeatureTable()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	return engine
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "identical", a: []float64{1, 2, 3}, b: []float64{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "opposite", a: []float64{1, 0}, b: []float64{-1, 0}, want: -1},
		{name: "scaled copy", a: []float64{1, 1}, b: []float64{5, 5}, want: 1},
		{name: "zero left", a: []float64{0, 0}, b: []float64{1, 1}, want: 0},
		{name: "zero right", a: []float64{1, 1}, b: []float64{0, 0}, want: 0},
		{name: "both zero", a: []float64{0, 0}, b: []float64{0, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngineMatrixProperties(t *testing.T) {
	engine := trainedEngine(t, 2)
	ids := engine.IDs()

	for _, a := range ids {
		for _, b := range ids {
			sab, err := engine.Similarity(a, b)
			if err != nil {
				t.Fatalf("Similarity(%s, %s) error = %v", a, b, err)
			}

			// Bounded range.
			if sab < -1-1e-9 || sab > 1+1e-9 {
				t.Errorf("Similarity(%s, %s) = %v, outside [-1, 1]", a, b, sab)
			}

			// Symmetry.
			sba, err := engine.Similarity(b, a)
			if err != nil {
				t.Fatalf("Similarity(%s, %s) error = %v", b, a, err)
			}
			if math.Abs(sab-sba) > 1e-9 {
				t.Errorf("Similarity(%s, %s) = %v but reverse = %v", a, b, sab, sba)
			}
		}
	}

	// Unit diagonal for non-zero vectors.
	for _, id := range []string{"C0001", "C0002", "C0003", "C0004"} {
		self, err := engine.Similarity(id, id)
		if err != nil {
			t.Fatalf("Similarity(%s, %s) error = %v", id, id, err)
		}
		if math.Abs(self-1) > 1e-9 {
			t.Errorf("self similarity of %s = %v, want 1", id, self)
		}
	}

	// Zero-norm vector is 0 against everything, including itself.
	for _, id := range ids {
		got, err := engine.Similarity("C0005", id)
		if err != nil {
			t.Fatalf("Similarity error = %v", err)
		}
		if got != 0 {
			t.Errorf("Similarity(C0005, %s) = %v, want 0 for zero vector", id, got)
		}
	}
}

func TestEngineScaledCopiesAreIdentical(t *testing.T) {
	engine := trainedEngine(t, 2)

	// C0004 is C0001 scaled by 2; cosine ignores magnitude.
	got, err := engine.Similarity("C0001", "C0004")
	if err != nil {
		t.Fatalf("Similarity() error = %v", err)
	}
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("Similarity of scaled copies = %v, want 1 within 1e-9", got)
	}
}

func TestEngineWorkerCountDoesNotChangeResults(t *testing.T) {
	serial := trainedEngine(t, 1)
	parallel := trainedEngine(t, 8)

	for _, a := range serial.IDs() {
		for _, b := range serial.IDs() {
			s, _ := serial.Similarity(a, b)
			p, _ := parallel.Similarity(a, b)
			if s != p {
				t.Errorf("Similarity(%s, %s): serial %v != parallel %v", a, b, s, p)
			}
		}
	}
}

func TestEngineUnknownCustomer(t *testing.T) {
	engine := trainedEngine(t, 2)

	_, err := engine.Similarity("C9999", "C0001")
	var notFound *schema.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Similarity() error = %v, want NotFoundError", err)
	}
	if notFound.CustomerID != "C9999" {
		t.Errorf("NotFoundError.CustomerID = %s, want C9999", notFound.CustomerID)
	}
}

func TestEngineUntrained(t *testing.T) {
	engine := NewEngine(Config{})
	if _, err := engine.Similarity("C0001", "C0002"); err == nil {
		t.Error("Similarity() on untrained engine should fail")
	}
}

func TestEngineTrainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(Config{NumWorkers: 2})
	if err := engine.Train(ctx, testFeatureTable()); !errors.Is(err, context.Canceled) {
		t.Errorf("Train() error = %v, want context.Canceled", err)
	}
}
