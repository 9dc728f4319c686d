// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package lookalike

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercelens/lookalike/internal/config"
	"github.com/commercelens/lookalike/internal/similarity"
	"github.com/commercelens/lookalike/internal/store"
)

const (
	customersCSV = `CustomerID,CustomerName,Region,SignupDate
C0001,Alice Rivera,Asia,2022-03-15
C0002,Bob Chen,Asia,2022-03-15
C0003,Carol Diaz,Europe,2021-11-20
C0004,Dan Okafor,Europe,2023-07-01
C0005,Eve Haddad,Asia,2024-01-01
`
	productsCSV = `ProductID,Category
P0001,Books
P0002,Electronics
`
	// C0001 and C0002 share identical purchase histories; C0005 has none.
	transactionsCSV = `TransactionID,CustomerID,ProductID,TransactionDate,Quantity,TotalValue,Price
T0001,C0001,P0001,2024-01-05 10:30:00,2,59.98,29.99
T0002,C0002,P0001,2024-01-05 10:30:00,2,59.98,29.99
T0003,C0003,P0002,2024-02-10 16:00:00,1,499.00,499.00
T0004,C0004,P0002,2024-03-01 09:15:00,1,129.00,129.00
T0005,C0004,P0001,2024-03-02 11:00:00,1,15.50,15.50
`
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	return &config.Config{
		Input: config.InputConfig{
			CustomersPath:    writeCSV(t, dir, "customers.csv", customersCSV),
			ProductsPath:     writeCSV(t, dir, "products.csv", productsCSV),
			TransactionsPath: writeCSV(t, dir, "transactions.csv", transactionsCSV),
		},
		Vocabulary: config.VocabularyConfig{Version: 1, UnseenPolicy: "reject"},
		Pipeline: config.PipelineConfig{
			ReferenceTime: "2025-01-01T00:00:00Z",
			TopN:          3,
			NumWorkers:    2,
			MissingPolicy: "drop",
		},
		Database: config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 1},
		Output: config.OutputConfig{
			Path:              filepath.Join(dir, "Lookalike.json"),
			PersistToDatabase: true,
		},
	}
}

func newTestStore(t *testing.T, cfg *config.Config) *store.Store {
	t.Helper()
	s, err := store.Open(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPipelineRun(t *testing.T) {
	cfg := testConfig(t)
	s := newTestStore(t, cfg)

	result, err := NewPipeline(cfg, s).Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 4, result.Customers)
	assert.Equal(t, []string{"C0005"}, result.Excluded)
	assert.Zero(t, result.DroppedTransactions)
	assert.Len(t, result.Rankings, 4)

	// Identical purchase histories rank each other first with score 1.
	alice := result.Rankings["C0001"]
	require.NotEmpty(t, alice)
	assert.Equal(t, "C0002", alice[0].CustomerID)
	assert.InDelta(t, 1.0, alice[0].Score, 1e-9)

	bob := result.Rankings["C0002"]
	require.NotEmpty(t, bob)
	assert.Equal(t, "C0001", bob[0].CustomerID)

	// Excluded customer has no ranking and appears in nobody's list.
	_, ok := result.Rankings["C0005"]
	assert.False(t, ok)
	for id, candidates := range result.Rankings {
		for _, c := range candidates {
			assert.NotEqual(t, "C0005", c.CustomerID, "excluded customer in list of %s", id)
			assert.NotEqual(t, id, c.CustomerID, "self-match in list of %s", id)
		}
	}
}

func TestPipelineWritesResultsFile(t *testing.T) {
	cfg := testConfig(t)
	s := newTestStore(t, cfg)

	result, err := NewPipeline(cfg, s).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)

	var doc map[string][][2]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc, 4)

	for id, pairs := range doc {
		require.Len(t, pairs, len(result.Rankings[id]))
		for i, pair := range pairs {
			assert.Equal(t, result.Rankings[id][i].CustomerID, pair[0])
			assert.InDelta(t, result.Rankings[id][i].Score, pair[1], 1e-12)
		}
	}
}

func TestPipelinePersistsToDatabase(t *testing.T) {
	cfg := testConfig(t)
	s := newTestStore(t, cfg)

	result, err := NewPipeline(cfg, s).Run(context.Background())
	require.NoError(t, err)

	stored, err := s.GetLookalikes(context.Background(), "C0001", 10)
	require.NoError(t, err)
	require.Len(t, stored, len(result.Rankings["C0001"]))
	for i, c := range stored {
		assert.Equal(t, result.Rankings["C0001"][i].CustomerID, c.CustomerID)
		assert.Equal(t, result.Rankings["C0001"][i].Score, c.Score)
	}
}

func TestPipelineDeterminism(t *testing.T) {
	cfg := testConfig(t)

	first, err := NewPipeline(cfg, newTestStore(t, cfg)).Run(context.Background())
	require.NoError(t, err)
	second, err := NewPipeline(cfg, newTestStore(t, cfg)).Run(context.Background())
	require.NoError(t, err)

	// Same inputs, same reference instant, different run: identical
	// rankings bit for bit.
	assert.Equal(t, first.Rankings, second.Rankings)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestPipelineStreamingMatchesMatrix(t *testing.T) {
	cfg := testConfig(t)
	matrix, err := NewPipeline(cfg, newTestStore(t, cfg)).Run(context.Background())
	require.NoError(t, err)

	cfg.Pipeline.Streaming = true
	streamed, err := NewPipeline(cfg, newTestStore(t, cfg)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, matrix.Rankings, streamed.Rankings)
	assert.Nil(t, streamed.Engine)
	assert.NotNil(t, matrix.Engine)
}

func TestPipelineZeroFillIncludesAllCustomers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.MissingPolicy = "zero_fill"
	s := newTestStore(t, cfg)

	result, err := NewPipeline(cfg, s).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.Customers)
	assert.Empty(t, result.Excluded)
	assert.Contains(t, result.Rankings, "C0005")
}

func TestPipelineInvalidReferenceTime(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.ReferenceTime = "not-a-timestamp"
	s := newTestStore(t, cfg)

	_, err := NewPipeline(cfg, s).Run(context.Background())
	require.Error(t, err)
}

func TestMarshalResultsFormat(t *testing.T) {
	rankings := map[string][]similarity.Candidate{
		"C0001": {
			{CustomerID: "C0002", Score: 0.9812345678901234},
			{CustomerID: "C0003", Score: 0.5},
		},
		"C0002": {},
	}

	data, err := MarshalResults(rankings)
	require.NoError(t, err)

	// Round-trip must preserve pair order and full float precision.
	var doc map[string][][2]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc, 2)
	require.Len(t, doc["C0001"], 2)
	assert.Equal(t, "C0002", doc["C0001"][0][0])
	assert.Equal(t, 0.9812345678901234, doc["C0001"][0][1])
	assert.Empty(t, doc["C0002"])
}
