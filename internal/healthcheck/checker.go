// Package healthcheck evaluates the dependencies the registrar needs to serve.
package healthcheck

import (
	"context"
	"time"
)

const (
	// StatusOK indicates check passed.
	StatusOK = "ok"
	// StatusWarn indicates check completed with warning.
	StatusWarn = "warn"
	// StatusError indicates check failed.
	StatusError = "error"
	// StatusUnknown indicates check result is not yet known.
	StatusUnknown = "unknown"
)

// CheckResult is one check item produced by a checker.
type CheckResult struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Status   string         `json:"status"`
	Summary  string         `json:"summary,omitempty"`
	Detail   string         `json:"detail,omitempty"`
	Latency  time.Duration  `json:"latency_ns"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Checker evaluates one or more checks.
type Checker interface {
	ListChecks(ctx context.Context) []CheckResult
}

// Run evaluates every non-nil checker in order.
func Run(ctx context.Context, checkers ...Checker) []CheckResult {
	results := []CheckResult{}
	for _, c := range checkers {
		if c == nil {
			continue
		}
		results = append(results, c.ListChecks(ctx)...)
	}
	return results
}

// Overall folds results into a single status. Any error wins, then any warning.
func Overall(results []CheckResult) string {
	status := StatusOK
	for _, r := range results {
		switch r.Status {
		case StatusError:
			return StatusError
		case StatusWarn, StatusUnknown:
			status = StatusWarn
		}
	}
	return status
}
