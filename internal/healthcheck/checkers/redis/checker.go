// Package redis checks the Redis session backend.
package redis

import (
	"context"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/crossfellowship/registrar/internal/healthcheck"
)

const (
	checkType   = "redis"
	pingTimeout = 2 * time.Second
)

type Checker struct {
	logger *slog.Logger
	client goredis.UniversalClient
}

func NewChecker(log *slog.Logger, client goredis.UniversalClient) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{logger: log.With(slog.String("checker", checkType)), client: client}
}

func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	result := healthcheck.CheckResult{ID: "redis.sessions", Type: checkType, Status: healthcheck.StatusOK, Summary: "healthy"}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	start := time.Now()
	err := c.client.Ping(pingCtx).Err()
	result.Latency = time.Since(start)
	if err != nil {
		c.logger.Warn("redis ping failed", slog.Any("error", err))
		result.Status = healthcheck.StatusError
		result.Summary = "redis unreachable"
		result.Detail = err.Error()
		return []healthcheck.CheckResult{result}
	}
	stats := c.client.PoolStats()
	result.Metadata = map[string]any{
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
	}
	return []healthcheck.CheckResult{result}
}
