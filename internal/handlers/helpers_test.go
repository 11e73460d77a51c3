package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/crossfellowship/registrar/internal/auth"
)

const testSecret = "handler-secret"

type registrar interface {
	Register(e *echo.Echo)
}

func newTestEcho(handlers ...registrar) *echo.Echo {
	e := echo.New()
	e.Validator = NewRequestValidator()
	e.Use(auth.JWTMiddleware(testSecret, func(c echo.Context) bool {
		p := c.Request().URL.Path
		return p == "/auth/login" || p == "/ping" || p == "/health"
	}))
	for _, h := range handlers {
		h.Register(e)
	}
	return e
}

func tokenFor(t *testing.T, id int64, role string) string {
	t.Helper()
	token, _, err := auth.GenerateToken(auth.Claims{UserID: id, Username: "u", Role: role}, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func doRequest(e *echo.Echo, method, target, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	decodeBody(t, rec, &body)
	return body.Message
}
