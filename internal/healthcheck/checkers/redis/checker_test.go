package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/crossfellowship/registrar/internal/healthcheck"
)

func TestCheckerReportsPing(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	items := NewChecker(nil, client).ListChecks(context.Background())
	if len(items) != 1 || items[0].Status != healthcheck.StatusOK {
		t.Fatalf("unexpected result: %#v", items)
	}

	srv.Close()
	items = NewChecker(nil, client).ListChecks(context.Background())
	if items[0].Status != healthcheck.StatusError {
		t.Fatalf("expected error after shutdown: %#v", items[0])
	}
}
