package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldSkipJWT(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want bool
	}{
		{path: "/ping", want: true},
		{path: "/health", want: true},
		{path: "/metrics", want: true},
		{path: "/auth/login", want: true},
		{path: "/auth/login/", want: true},
		{path: "/auth/change-password", want: false},
		{path: "/applicants", want: false},
		{path: "/uploads/photos/a.jpg", want: false},
	}

	for _, tc := range cases {
		got := shouldSkipJWT(tc.path)
		if got != tc.want {
			t.Fatalf("path=%q want=%v got=%v", tc.path, tc.want, got)
		}
	}
}

type routeFunc func(e *echo.Echo)

func (f routeFunc) Register(e *echo.Echo) { f(e) }

func TestServerWiresMetricsAndAuth(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "registrar_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := NewServer(slog.Default(), Options{JWTSecret: "s", Gatherer: reg}, routeFunc(func(e *echo.Echo) {
		e.GET("/applicants", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	}))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "registrar_test_total 1")

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/applicants", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServerRecoversPanics(t *testing.T) {
	t.Parallel()

	srv := NewServer(slog.Default(), Options{JWTSecret: "s"}, routeFunc(func(e *echo.Echo) {
		e.GET("/ping", func(c echo.Context) error { panic("boom") })
	}))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
