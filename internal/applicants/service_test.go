package applicants

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	items      []Applicant
	lastFilter Filter
	updated    []Status
	updateErr  error
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Applicant, error) {
	for _, a := range f.items {
		if a.ID == id {
			return a, nil
		}
	}
	return Applicant{}, ErrNotFound
}

func (f *fakeRepo) List(_ context.Context, filter Filter) (Page, error) {
	f.lastFilter = filter
	return Page{Items: f.items, Total: int64(len(f.items)), Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (f *fakeRepo) Stats(context.Context) (Stats, error) {
	return Stats{Total: int64(len(f.items))}, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id int64, status Status, _ int64, _ string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, status)
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Status = status
		}
	}
	return nil
}

func TestServiceReview(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{items: []Applicant{{ID: 1, Status: StatusPending}}}
	svc := NewService(nil, repo)

	_, err := svc.Review(context.Background(), 1, StatusPending, 2, "")
	require.ErrorIs(t, err, ErrInvalidStatus)

	a, err := svc.Review(context.Background(), 1, StatusAccepted, 2, "welcome")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, a.Status)

	repo.updateErr = ErrAlreadyReviewed
	_, err = svc.Review(context.Background(), 1, StatusRejected, 2, "")
	require.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestServiceListClampsPaging(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	svc := NewService(nil, repo)

	_, err := svc.List(context.Background(), Filter{Limit: 1000, Offset: -5})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, repo.lastFilter.Limit)
	assert.Zero(t, repo.lastFilter.Offset)

	_, err = svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, repo.lastFilter.Limit)

	_, err = svc.List(context.Background(), Filter{Status: "maybe"})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestServiceExportCSV(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	repo := &fakeRepo{items: []Applicant{{
		ID: 3, Type: TypeMission, Name: "Abel", Phone: "+251922222222", Church: "Hope, Central",
		Address: "Yeka", Status: StatusRejected, TelegramUsername: "abel", CreatedAt: created,
		ReviewerName: "admin", ReviewerNotes: "next year",
	}}}
	svc := NewService(nil, repo)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), &buf, Filter{Type: TypeMission, Limit: 5}))
	assert.Zero(t, repo.lastFilter.Limit)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, []string{"3", "mission", "Abel", "+251922222222", "Hope, Central", "Yeka", "rejected",
		"abel", "2026-05-01T09:30:00Z", "admin", "next year"}, records[1])
}
