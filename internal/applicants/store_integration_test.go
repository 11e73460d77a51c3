//go:build integration

package applicants_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossfellowship/registrar/internal/applicants"
	"github.com/crossfellowship/registrar/internal/testutil/containers"
)

func TestIntegrationCreateSingerIsAtomic(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := applicants.NewStore(pg.DB)
	ctx := context.Background()

	bad := applicants.SingerApplication{
		Profile: applicants.Profile{TelegramID: "42", Name: "Jane", Phone: "+251911111111", Church: "Grace", Address: "Bole"},
		Details: applicants.SingerDetails{WorshipMinistryInvolved: true, AudioURL: strings.Repeat("x", 600), AudioDuration: 50},
	}
	_, err := store.CreateSinger(ctx, bad)
	require.Error(t, err)

	var count int
	require.NoError(t, pg.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM applicants`).Scan(&count))
	assert.Zero(t, count, "detail failure must roll back the applicant row")

	good := bad
	good.Details.AudioURL = "/uploads/audios/42_1.ogg"
	created, err := store.CreateSinger(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, applicants.StatusPending, created.Status)

	found, err := store.FindByTelegramID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	full, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, full.Singer)
	assert.True(t, full.Singer.WorshipMinistryInvolved)
	assert.Equal(t, 50, full.Singer.AudioDuration)
}

func TestIntegrationReviewOnce(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := applicants.NewStore(pg.DB)
	ctx := context.Background()

	var reviewerID int64
	require.NoError(t, pg.DB.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash, role) VALUES ('rev', 'rev@example.com', 'x', 'reviewer') RETURNING id`).
		Scan(&reviewerID))

	created, err := store.CreateMission(ctx, applicants.MissionApplication{
		Profile: applicants.Profile{TelegramID: "9", Name: "Abel", Phone: "+251922222222", Church: "Hope", Address: "Yeka"},
		Details: applicants.MissionDetails{Profession: "Nurse", MissionInterest: true, Bio: "bio", Motivation: "why"},
	})
	require.NoError(t, err)

	svc := applicants.NewService(nil, store)
	reviewed, err := svc.Review(ctx, created.ID, applicants.StatusAccepted, reviewerID, "welcome")
	require.NoError(t, err)
	assert.Equal(t, applicants.StatusAccepted, reviewed.Status)
	assert.Equal(t, "rev", reviewed.ReviewerName)

	_, err = svc.Review(ctx, created.ID, applicants.StatusRejected, reviewerID, "")
	require.ErrorIs(t, err, applicants.ErrAlreadyReviewed)

	page, err := svc.List(ctx, applicants.Filter{Type: applicants.TypeMission, Search: "abe"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}
