// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package schema

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSchemaErrorMatching(t *testing.T) {
	err := NewSchemaError("customers", "SignupDate", "unparseable date \"not-a-date\"")

	if !errors.Is(err, ErrSchema) {
		t.Error("SchemaError should match ErrSchema via errors.Is")
	}

	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatal("expected errors.As to recover *SchemaError")
	}
	if se.Table != "customers" || se.Column != "SignupDate" {
		t.Errorf("unexpected fields: table=%q column=%q", se.Table, se.Column)
	}
}

func TestSchemaErrorMatchingThroughWrap(t *testing.T) {
	err := fmt.Errorf("ingest customers: %w", NewSchemaError("customers", "", "missing column Region"))

	if !errors.Is(err, ErrSchema) {
		t.Error("wrapped SchemaError should still match ErrSchema")
	}
}

func TestSchemaErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *SchemaError
		want string
	}{
		{
			name: "with column",
			err:  NewSchemaError("transactions", "TransactionDate", "bad date"),
			want: "column TransactionDate",
		},
		{
			name: "without column",
			err:  NewSchemaError("products", "", "empty table"),
			want: "table products",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.err.Error(), tt.want) {
				t.Errorf("Error() = %q, want substring %q", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{CustomerID: "C0042"}

	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound via errors.Is")
	}
	if !strings.Contains(err.Error(), "C0042") {
		t.Errorf("Error() = %q, want customer id in message", err.Error())
	}
}
