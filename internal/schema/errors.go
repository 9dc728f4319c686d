// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package schema

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline error taxonomy. SchemaError conditions
// are fatal and abort the run; the others are local, recoverable conditions
// with a defined fallback.
var (
	// ErrSchema indicates a missing or malformed input column, including
	// unparseable date fields. There is no partial-result mode for
	// malformed input.
	ErrSchema = errors.New("schema error")

	// ErrJoinIntegrity indicates transactions referencing a non-existent
	// product or customer. Policy: drop with a reported count.
	ErrJoinIntegrity = errors.New("join integrity error")

	// ErrDegenerateFeature indicates a zero-variance numerical column
	// encountered during scaling. Policy: leave the column unscaled and
	// flag it, never crash.
	ErrDegenerateFeature = errors.New("degenerate feature")

	// ErrNotFound indicates a ranking request for a customer id absent
	// from the feature index, typically because the customer had no
	// transactions and was excluded from the feature table.
	ErrNotFound = errors.New("customer not found")
)

// SchemaError describes a fatal defect in an input table.
type SchemaError struct {
	// Table is the input table name (customers, products, transactions).
	Table string

	// Column is the offending column, if known.
	Column string

	// Reason describes the defect.
	Reason string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema error in table %s, column %s: %s", e.Table, e.Column, e.Reason)
	}
	return fmt.Sprintf("schema error in table %s: %s", e.Table, e.Reason)
}

// Unwrap makes SchemaError match ErrSchema via errors.Is.
func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

// NewSchemaError creates a SchemaError for the given table and column.
func NewSchemaError(table, column, reason string) *SchemaError {
	return &SchemaError{Table: table, Column: column, Reason: reason}
}

// NotFoundError describes a lookup for an unknown customer id.
type NotFoundError struct {
	// CustomerID is the id that was requested.
	CustomerID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("customer %s not found in feature index", e.CustomerID)
}

// Unwrap makes NotFoundError match ErrNotFound via errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
