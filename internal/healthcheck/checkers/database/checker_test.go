package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/crossfellowship/registrar/internal/healthcheck"
)

func TestCheckerReportsPing(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectPing()
	items := NewChecker(nil, db).ListChecks(context.Background())
	if len(items) != 1 || items[0].Status != healthcheck.StatusOK {
		t.Fatalf("unexpected result: %#v", items)
	}
	if _, ok := items[0].Metadata["open_connections"]; !ok {
		t.Fatalf("expected pool stats: %#v", items[0].Metadata)
	}

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	items = NewChecker(nil, db).ListChecks(context.Background())
	if items[0].Status != healthcheck.StatusError || items[0].Detail != "connection refused" {
		t.Fatalf("unexpected failure result: %#v", items[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCheckerWithoutDatabase(t *testing.T) {
	t.Parallel()

	items := NewChecker(nil, nil).ListChecks(context.Background())
	if items[0].Status != healthcheck.StatusUnknown {
		t.Fatalf("unexpected status: %s", items[0].Status)
	}
}
