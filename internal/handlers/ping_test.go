package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossfellowship/registrar/internal/healthcheck"
)

type staticChecker struct {
	status string
}

func (s staticChecker) ListChecks(context.Context) []healthcheck.CheckResult {
	return []healthcheck.CheckResult{{ID: "database.postgres", Type: "database", Status: s.status}}
}

func TestPing(t *testing.T) {
	t.Parallel()
	e := newTestEcho(NewPingHandler(slog.Default()))

	rec := doRequest(e, http.MethodGet, "/ping", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthReflectsChecks(t *testing.T) {
	t.Parallel()

	healthy := newTestEcho(NewPingHandler(slog.Default(), staticChecker{status: healthcheck.StatusOK}))
	assert.Equal(t, http.StatusOK, doRequest(healthy, http.MethodHead, "/health", "", "").Code)

	rec := doRequest(healthy, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, healthcheck.StatusOK, body.Status)
	require.Len(t, body.Checks, 1)

	down := newTestEcho(NewPingHandler(slog.Default(), staticChecker{status: healthcheck.StatusOK}, staticChecker{status: healthcheck.StatusError}))
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(down, http.MethodHead, "/health", "", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(down, http.MethodGet, "/health", "", "").Code)
}
