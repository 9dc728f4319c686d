// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercelens/lookalike/internal/config"
	"github.com/commercelens/lookalike/internal/lookalike"
	"github.com/commercelens/lookalike/internal/schema"
	"github.com/commercelens/lookalike/internal/store"
)

type fakeStore struct {
	lookalikes map[string][]store.RankedCandidate
	customers  []schema.Customer
	err        error
}

func (f *fakeStore) GetLookalikes(_ context.Context, custID string, limit int) ([]store.RankedCandidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	out, ok := f.lookalikes[custID]
	if !ok {
		return nil, &schema.NotFoundError{CustomerID: custID}
	}
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListCustomers(_ context.Context, limit, offset int) ([]schema.Customer, error) {
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.customers) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.customers) {
		end = len(f.customers)
	}
	return f.customers[offset:end], nil
}

type fakeRunner struct {
	result  *lookalike.Result
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeRunner) Run(context.Context) (*lookalike.Result, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	return f.result, f.err
}

func testAPIConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{
			DefaultK:        3,
			MaxK:            50,
			DefaultPageSize: 100,
			MaxPageSize:     1000,
		},
		Security: config.SecurityConfig{RateLimitDisabled: true},
	}
}

func newTestServer(t *testing.T, st ResultStore, runner PipelineRunner) (*httptest.Server, *Handler) {
	t.Helper()
	cfg := testAPIConfig()
	handler := NewHandler(cfg, st, runner)
	srv := httptest.NewServer(NewRouter(cfg, handler).Setup())
	t.Cleanup(srv.Close)
	return srv, handler
}

func decodeResponse(t *testing.T, resp *http.Response) *APIResponse {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck

	var out APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return &out
}

func seededStore() *fakeStore {
	return &fakeStore{
		lookalikes: map[string][]store.RankedCandidate{
			"C0001": {
				{CustomerID: "C0002", Score: 0.98},
				{CustomerID: "C0003", Score: 0.75},
				{CustomerID: "C0004", Score: 0.60},
				{CustomerID: "C0005", Score: 0.41},
			},
		},
		customers: []schema.Customer{
			{ID: "C0001", Name: "Alice", Region: "Asia", SignupDate: time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)},
			{ID: "C0002", Name: "Bob", Region: "Europe", SignupDate: time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func TestGetLookalikesDefaultK(t *testing.T) {
	srv, _ := newTestServer(t, seededStore(), &fakeRunner{})

	resp, err := http.Get(srv.URL + "/api/v1/lookalikes/C0001")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeResponse(t, resp)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, 3, body.Metadata.Count)

	var payload LookalikeResponse
	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &payload))

	assert.Equal(t, "C0001", payload.CustomerID)
	assert.Equal(t, 3, payload.K)
	require.Len(t, payload.Lookalikes, 3)
	assert.Equal(t, "C0002", payload.Lookalikes[0].CustomerID)
	assert.InDelta(t, 0.98, payload.Lookalikes[0].Score, 1e-12)
}

func TestGetLookalikesExplicitK(t *testing.T) {
	srv, _ := newTestServer(t, seededStore(), &fakeRunner{})

	resp, err := http.Get(srv.URL + "/api/v1/lookalikes/C0001?k=2")
	require.NoError(t, err)
	body := decodeResponse(t, resp)

	var payload LookalikeResponse
	raw, _ := json.Marshal(body.Data)
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Len(t, payload.Lookalikes, 2)
}

func TestGetLookalikesInvalidK(t *testing.T) {
	tests := []struct {
		name string
		k    string
	}{
		{name: "not a number", k: "abc"},
		{name: "zero", k: "0"},
		{name: "negative", k: "-3"},
		{name: "over max", k: "51"},
	}

	srv, _ := newTestServer(t, seededStore(), &fakeRunner{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/api/v1/lookalikes/C0001?k=" + tt.k)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			body := decodeResponse(t, resp)
			require.NotNil(t, body.Error)
			assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
		})
	}
}

func TestGetLookalikesNotFound(t *testing.T) {
	srv, _ := newTestServer(t, seededStore(), &fakeRunner{})

	resp, err := http.Get(srv.URL + "/api/v1/lookalikes/C9999")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeResponse(t, resp)
	assert.Equal(t, "error", body.Status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestGetLookalikesStoreFailure(t *testing.T) {
	srv, _ := newTestServer(t, &fakeStore{err: errors.New("disk on fire")}, &fakeRunner{})

	resp, err := http.Get(srv.URL + "/api/v1/lookalikes/C0001")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decodeResponse(t, resp)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	// Internal detail must not leak into the response.
	assert.NotContains(t, body.Error.Message, "disk on fire")
}

func TestListCustomers(t *testing.T) {
	srv, _ := newTestServer(t, seededStore(), &fakeRunner{})

	resp, err := http.Get(srv.URL + "/api/v1/customers?limit=1&offset=1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeResponse(t, resp)
	var payload CustomersResponse
	raw, _ := json.Marshal(body.Data)
	require.NoError(t, json.Unmarshal(raw, &payload))

	require.Len(t, payload.Customers, 1)
	assert.Equal(t, "C0002", payload.Customers[0].CustomerID)
	assert.Equal(t, 1, payload.Limit)
	assert.Equal(t, 1, payload.Offset)
}

func TestListCustomersLimitBounds(t *testing.T) {
	srv, _ := newTestServer(t, seededStore(), &fakeRunner{})

	resp, err := http.Get(srv.URL + "/api/v1/customers?limit=100000")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeResponse(t, resp)
}

func TestRunPipelineLifecycle(t *testing.T) {
	runner := &fakeRunner{
		result: &lookalike.Result{
			RunID:     "run-1",
			Customers: 4,
			Duration:  time.Second,
		},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	srv, handler := newTestServer(t, seededStore(), runner)

	resp, err := http.Post(srv.URL+"/api/v1/pipeline/run", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	decodeResponse(t, resp)

	<-runner.started

	// Second trigger while running conflicts.
	resp, err = http.Post(srv.URL+"/api/v1/pipeline/run", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeResponse(t, resp)
	require.NotNil(t, body.Error)
	assert.Equal(t, "RUN_IN_PROGRESS", body.Error.Code)

	close(runner.release)

	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return handler.lastRun.State == "success"
	}, 2*time.Second, 10*time.Millisecond)

	resp, err = http.Get(srv.URL + "/api/v1/pipeline/status")
	require.NoError(t, err)
	status := decodeResponse(t, resp)

	var summary RunSummary
	raw, _ := json.Marshal(status.Data)
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, "success", summary.State)
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 4, summary.Customers)
}

func TestRunPipelineFailureRecorded(t *testing.T) {
	runner := &fakeRunner{err: errors.New("ingest exploded")}
	srv, handler := newTestServer(t, seededStore(), runner)

	resp, err := http.Post(srv.URL+"/api/v1/pipeline/run", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	decodeResponse(t, resp)

	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return handler.lastRun.State == "error"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	srv, handler := newTestServer(t, seededStore(), &fakeRunner{})
	handler.SetLastRun(&lookalike.Result{RunID: "run-7", Customers: 10})

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeResponse(t, resp)
	var health HealthResponse
	raw, _ := json.Marshal(body.Data)
	require.NoError(t, json.Unmarshal(raw, &health))

	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Database)
	assert.Equal(t, "run-7", health.LastRun.RunID)
}

func TestHealthDegradedOnStoreFailure(t *testing.T) {
	srv, _ := newTestServer(t, &fakeStore{err: errors.New("db gone")}, &fakeRunner{})

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	decodeResponse(t, resp)
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t, seededStore(), &fakeRunner{})

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	decodeResponse(t, resp)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	// A client-supplied id is echoed back unchanged.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-42")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	decodeResponse(t, resp)
	assert.Equal(t, "trace-42", resp.Header.Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, seededStore(), &fakeRunner{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
