// Package database checks PostgreSQL reachability.
package database

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/crossfellowship/registrar/internal/healthcheck"
)

const (
	checkType   = "database"
	pingTimeout = 2 * time.Second
	// warnLatency flags a reachable but slow database.
	warnLatency = 500 * time.Millisecond
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type statser interface {
	Stats() sql.DBStats
}

type Checker struct {
	logger *slog.Logger
	db     Pinger
}

func NewChecker(log *slog.Logger, db Pinger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{logger: log.With(slog.String("checker", checkType)), db: db}
}

func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	result := healthcheck.CheckResult{ID: "database.postgres", Type: checkType, Status: healthcheck.StatusUnknown}
	if c == nil || c.db == nil {
		result.Summary = "database not configured"
		return []healthcheck.CheckResult{result}
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	start := time.Now()
	err := c.db.PingContext(pingCtx)
	result.Latency = time.Since(start)
	switch {
	case err != nil:
		c.logger.Warn("database ping failed", slog.Any("error", err))
		result.Status = healthcheck.StatusError
		result.Summary = "database unreachable"
		result.Detail = err.Error()
	case result.Latency > warnLatency:
		result.Status = healthcheck.StatusWarn
		result.Summary = "database slow"
	default:
		result.Status = healthcheck.StatusOK
		result.Summary = "healthy"
	}
	if s, ok := c.db.(statser); ok {
		stats := s.Stats()
		result.Metadata = map[string]any{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		}
	}
	return []healthcheck.CheckResult{result}
}
