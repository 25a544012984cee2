package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/manenim/distributed-rate-limiter/pkg/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, health func(context.Context) error) *httptest.Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	l, err := limiter.New(limiter.NewMemoryStore(),
		limiter.Config{MaxRequests: 2, Window: time.Minute, Strategy: limiter.SlidingWindow},
		limiter.WithRecorder(limiter.NewPrometheusRecorder(reg, "test")),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(newHandler(l, handlerConfig{
		health:      health,
		gatherer:    reg,
		metricsPath: "/metrics",
		logger:      zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_PingIsRateLimited(t *testing.T) {
	srv := newTestServer(t, func(context.Context) error { return nil })

	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/ping").StatusCode)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/ping").StatusCode)

	resp := do(t, http.MethodGet, srv.URL+"/ping")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestServer_StatusAndReset(t *testing.T) {
	srv := newTestServer(t, func(context.Context) error { return nil })

	do(t, http.MethodGet, srv.URL+"/ping")
	do(t, http.MethodGet, srv.URL+"/ping")

	status := func() limitStatus {
		resp := do(t, http.MethodGet, srv.URL+"/limits/127.0.0.1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var s limitStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
		return s
	}

	s := status()
	assert.Equal(t, "sliding-window", s.Strategy)
	assert.False(t, s.Allowed)
	assert.Equal(t, int64(0), s.Remaining)
	assert.Equal(t, int64(2), s.Limit)

	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, srv.URL+"/limits/127.0.0.1").StatusCode)

	s = status()
	assert.True(t, s.Allowed)
	assert.Equal(t, int64(2), s.Remaining)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/ping").StatusCode)
}

func TestServer_Health(t *testing.T) {
	healthy := newTestServer(t, func(context.Context) error { return nil })
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, healthy.URL+"/health").StatusCode)

	down := newTestServer(t, func(context.Context) error { return errors.New("redis healthcheck failed") })
	assert.Equal(t, http.StatusServiceUnavailable, do(t, http.MethodGet, down.URL+"/health").StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, func(context.Context) error { return nil })
	do(t, http.MethodGet, srv.URL+"/ping")

	resp := do(t, http.MethodGet, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_ratelimit_checks_total{result="allowed",strategy="sliding-window"} 1`)
}
