// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/commercelens/lookalike/internal/config"
	"github.com/commercelens/lookalike/internal/metrics"
	"github.com/commercelens/lookalike/internal/schema"
)

// Required CSV columns per input table. A missing column is a fatal
// SchemaError; extra columns are ignored.
var (
	customerColumns    = []string{"CustomerID", "CustomerName", "Region", "SignupDate"}
	productColumns     = []string{"ProductID", "Category"}
	transactionColumns = []string{"TransactionID", "CustomerID", "ProductID", "TransactionDate", "Quantity", "TotalValue", "Price"}
)

// Ingest loads the three CSV tables into the normalized store schema.
//
// Dates and numerics are parsed strictly by DuckDB's typed read_csv: a
// malformed SignupDate or TransactionDate aborts the ingest with a
// SchemaError rather than propagating a missing value downstream.
// Transactions whose ProductID or CustomerID does not resolve are dropped
// by the inner join; the drop count is recorded, logged, and returned in
// Tables.DroppedTransactions.
func (s *Store) Ingest(ctx context.Context, input *config.InputConfig) (*schema.Tables, error) {
	if err := s.truncateInputs(ctx); err != nil {
		return nil, err
	}

	if err := s.ingestCustomers(ctx, input.CustomersPath); err != nil {
		return nil, fmt.Errorf("ingest customers: %w", err)
	}
	if err := s.ingestProducts(ctx, input.ProductsPath); err != nil {
		return nil, fmt.Errorf("ingest products: %w", err)
	}
	dropped, err := s.ingestTransactions(ctx, input.TransactionsPath)
	if err != nil {
		return nil, fmt.Errorf("ingest transactions: %w", err)
	}

	tables, err := s.loadTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("load normalized tables: %w", err)
	}
	tables.DroppedTransactions = dropped

	metrics.IngestRowsTotal.WithLabelValues("customers").Add(float64(len(tables.Customers)))
	metrics.IngestRowsTotal.WithLabelValues("products").Add(float64(len(tables.Products)))
	metrics.IngestRowsTotal.WithLabelValues("transactions").Add(float64(len(tables.Transactions)))

	s.logger.Info().
		Int("customers", len(tables.Customers)).
		Int("products", len(tables.Products)).
		Int("transactions", len(tables.Transactions)).
		Int64("dropped_transactions", dropped).
		Msg("ingest complete")

	return tables, nil
}

// checkColumns probes a CSV header and fails with a SchemaError naming the
// first missing required column.
func (s *Store) checkColumns(ctx context.Context, table, path string, required []string) error {
	query := fmt.Sprintf("SELECT * FROM read_csv_auto(%s, header=true) LIMIT 0", quoteLiteral(path))
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		metrics.IngestErrors.WithLabelValues(table, "io").Inc()
		return schema.NewSchemaError(table, "", fmt.Sprintf("cannot read %s: %v", path, err))
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return schema.NewSchemaError(table, "", fmt.Sprintf("cannot inspect header: %v", err))
	}

	present := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		present[c] = struct{}{}
	}
	for _, want := range required {
		if _, ok := present[want]; !ok {
			metrics.IngestErrors.WithLabelValues(table, "schema").Inc()
			return schema.NewSchemaError(table, want, "required column is missing")
		}
	}
	return rows.Err()
}

func (s *Store) ingestCustomers(ctx context.Context, path string) error {
	if err := s.checkColumns(ctx, "customers", path, customerColumns); err != nil {
		return err
	}

	// Strict typed read: a SignupDate that does not parse as DATE fails
	// the whole statement instead of becoming a silent missing value.
	query := fmt.Sprintf(`INSERT INTO customers
		SELECT CustomerID, CustomerName, Region, SignupDate
		FROM read_csv(%s, header=true, columns={
			'CustomerID': 'VARCHAR',
			'CustomerName': 'VARCHAR',
			'Region': 'VARCHAR',
			'SignupDate': 'DATE'
		})`, quoteLiteral(path))

	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		metrics.IngestErrors.WithLabelValues("customers", "schema").Inc()
		return schema.NewSchemaError("customers", "SignupDate", fmt.Sprintf("typed load failed: %v", err))
	}
	return nil
}

func (s *Store) ingestProducts(ctx context.Context, path string) error {
	if err := s.checkColumns(ctx, "products", path, productColumns); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO products
		SELECT ProductID, Category
		FROM read_csv(%s, header=true, columns={
			'ProductID': 'VARCHAR',
			'Category': 'VARCHAR'
		})`, quoteLiteral(path))

	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		metrics.IngestErrors.WithLabelValues("products", "schema").Inc()
		return schema.NewSchemaError("products", "", fmt.Sprintf("typed load failed: %v", err))
	}
	return nil
}

// ingestTransactions loads the transaction CSV through a staging table,
// attaches the product category via an inner join, and drops transactions
// whose product or customer reference does not resolve. Returns the number
// of dropped rows.
func (s *Store) ingestTransactions(ctx context.Context, path string) (int64, error) {
	if err := s.checkColumns(ctx, "transactions", path, transactionColumns); err != nil {
		return 0, err
	}

	stage := fmt.Sprintf(`CREATE OR REPLACE TEMP TABLE tx_staging AS
		SELECT TransactionID, CustomerID, ProductID, TransactionDate, Quantity, TotalValue, Price
		FROM read_csv(%s, header=true, columns={
			'TransactionID': 'VARCHAR',
			'CustomerID': 'VARCHAR',
			'ProductID': 'VARCHAR',
			'TransactionDate': 'TIMESTAMP',
			'Quantity': 'INTEGER',
			'TotalValue': 'DOUBLE',
			'Price': 'DOUBLE'
		})`, quoteLiteral(path))

	if _, err := s.conn.ExecContext(ctx, stage); err != nil {
		metrics.IngestErrors.WithLabelValues("transactions", "schema").Inc()
		return 0, schema.NewSchemaError("transactions", "TransactionDate", fmt.Sprintf("typed load failed: %v", err))
	}

	var total int64
	if err := s.conn.QueryRowContext(ctx, "SELECT count(*) FROM tx_staging").Scan(&total); err != nil {
		return 0, fmt.Errorf("count staged transactions: %w", err)
	}

	// Inner-join semantics: transactions referencing unknown products or
	// customers never reach the normalized table.
	join := `INSERT INTO transactions
		SELECT t.TransactionID, t.CustomerID, t.ProductID, t.TransactionDate,
		       t.Quantity, t.TotalValue, t.Price, p.category
		FROM tx_staging t
		JOIN products p ON t.ProductID = p.product_id
		JOIN customers c ON t.CustomerID = c.customer_id`

	res, err := s.conn.ExecContext(ctx, join)
	if err != nil {
		metrics.IngestErrors.WithLabelValues("transactions", "database").Inc()
		return 0, fmt.Errorf("join transactions to products: %w", err)
	}

	joined, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count joined transactions: %w", err)
	}

	dropped := total - joined
	if dropped > 0 {
		metrics.IngestDroppedTransactions.Add(float64(dropped))
		s.logger.Warn().
			Int64("dropped", dropped).
			Int64("total", total).
			Msg("transactions dropped by join: unresolved product or customer reference")
	}

	return dropped, nil
}

// loadTables reads the normalized tables back into typed records for the
// feature builder.
func (s *Store) loadTables(ctx context.Context) (*schema.Tables, error) {
	tables := &schema.Tables{}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT customer_id, customer_name, region, signup_date FROM customers ORDER BY customer_id`)
	if err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}
	for rows.Next() {
		var c schema.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Region, &c.SignupDate); err != nil {
			rows.Close() //nolint:errcheck
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		tables.Customers = append(tables.Customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close() //nolint:errcheck

	rows, err = s.conn.QueryContext(ctx,
		`SELECT product_id, category FROM products ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	for rows.Next() {
		var p schema.Product
		if err := rows.Scan(&p.ID, &p.Category); err != nil {
			rows.Close() //nolint:errcheck
			return nil, fmt.Errorf("scan product: %w", err)
		}
		tables.Products = append(tables.Products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close() //nolint:errcheck

	rows, err = s.conn.QueryContext(ctx,
		`SELECT transaction_id, customer_id, product_id, transaction_date,
		        quantity, total_value, price, category
		 FROM transactions ORDER BY transaction_id`)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	for rows.Next() {
		var t schema.Transaction
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.ProductID, &t.Date,
			&t.Quantity, &t.TotalValue, &t.Price, &t.Category); err != nil {
			rows.Close() //nolint:errcheck
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tables.Transactions = append(tables.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close() //nolint:errcheck

	return tables, nil
}

// quoteLiteral escapes a string for embedding as a SQL literal. DuckDB's
// read_csv takes the path as a literal, not a bind parameter.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
