// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

// Package schema defines the normalized input tables and the error taxonomy
// for the lookalike pipeline.
//
// Three tables feed the pipeline: customers, products, and transactions.
// The Schema Normalizer (internal/store) parses raw CSV input into these
// typed records, rejecting missing columns and malformed dates outright,
// and attaches a product category to every transaction via an inner join.
// Transactions whose product or customer reference cannot be resolved are
// dropped and counted, never silently discarded.
package schema

import "time"

// Customer is a row of the customer source table after normalization.
// Customers are read-only facts; feature derivation produces new records
// rather than mutating these.
type Customer struct {
	// ID is the unique customer identifier.
	ID string `json:"customer_id"`

	// Name is the customer display name.
	Name string `json:"customer_name"`

	// Region is the customer's region, one of a small fixed set.
	Region string `json:"region"`

	// SignupDate is the date the customer signed up.
	SignupDate time.Time `json:"signup_date"`
}

// Product is a row of the product source table.
type Product struct {
	// ID is the unique product identifier.
	ID string `json:"product_id"`

	// Category is the product category label.
	Category string `json:"category"`
}

// Transaction is a row of the transaction source table after normalization,
// with the product category attached by the inner join on ProductID.
type Transaction struct {
	// ID is the unique transaction identifier.
	ID string `json:"transaction_id"`

	// CustomerID references the purchasing customer.
	CustomerID string `json:"customer_id"`

	// ProductID references the purchased product.
	ProductID string `json:"product_id"`

	// Date is the transaction timestamp.
	Date time.Time `json:"transaction_date"`

	// Quantity is the number of units purchased.
	Quantity int `json:"quantity"`

	// TotalValue is the total monetary value of the transaction.
	TotalValue float64 `json:"total_value"`

	// Price is the unit price.
	Price float64 `json:"price"`

	// Category is the product category attached by the join.
	Category string `json:"category"`
}

// Tables bundles the three normalized tables produced by one ingest run.
type Tables struct {
	Customers    []Customer
	Products     []Product
	Transactions []Transaction

	// DroppedTransactions counts transactions removed by the inner join
	// because their product or customer reference did not resolve.
	DroppedTransactions int64
}
