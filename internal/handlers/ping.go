package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crossfellowship/registrar/internal/healthcheck"
)

type PingHandler struct {
	logger   *slog.Logger
	checkers []healthcheck.Checker
}

type HealthResponse struct {
	Status string                    `json:"status"`
	Checks []healthcheck.CheckResult `json:"checks"`
}

func NewPingHandler(log *slog.Logger, checkers ...healthcheck.Checker) *PingHandler {
	return &PingHandler{logger: log.With(slog.String("handler", "ping")), checkers: checkers}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.GET("/health", h.Health)
	e.HEAD("/health", h.PingHead)
}

func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Health reports every dependency check. A failing dependency yields 503.
func (h *PingHandler) Health(c echo.Context) error {
	results := healthcheck.Run(c.Request().Context(), h.checkers...)
	status := healthcheck.Overall(results)
	return c.JSON(healthStatusCode(status), HealthResponse{Status: status, Checks: results})
}

func (h *PingHandler) PingHead(c echo.Context) error {
	results := healthcheck.Run(c.Request().Context(), h.checkers...)
	status := healthcheck.Overall(results)
	if status == healthcheck.StatusError {
		h.logger.Warn("health check failed", slog.Any("checks", results))
	}
	return c.NoContent(healthStatusCode(status))
}

func healthStatusCode(status string) int {
	if status == healthcheck.StatusError {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
