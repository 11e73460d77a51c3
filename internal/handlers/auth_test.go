package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossfellowship/registrar/internal/accounts"
)

type fakeAuthenticator struct {
	user          accounts.User
	password      string
	changeErr     error
	changedFor    int64
	changedToNext string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, identifier, password string) (accounts.User, error) {
	if (identifier == f.user.Username || identifier == f.user.Email) && password == f.password {
		return f.user, nil
	}
	return accounts.User{}, accounts.ErrInvalidCredentials
}

func (f *fakeAuthenticator) Get(_ context.Context, id int64) (accounts.User, error) {
	if id != f.user.ID {
		return accounts.User{}, accounts.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeAuthenticator) ChangePassword(_ context.Context, id int64, _, next string) error {
	if f.changeErr != nil {
		return f.changeErr
	}
	f.changedFor, f.changedToNext = id, next
	return nil
}

func newAuthFixture() (*fakeAuthenticator, *AuthHandler) {
	fake := &fakeAuthenticator{
		user:     accounts.User{ID: 5, Username: "ops", Email: "ops@example.com", Role: accounts.RoleReviewer},
		password: "secret-pass",
	}
	return fake, NewAuthHandler(slog.Default(), fake, testSecret, time.Hour)
}

func TestLoginIssuesToken(t *testing.T) {
	t.Parallel()
	_, h := newAuthFixture()
	e := newTestEcho(h)

	rec := doRequest(e, http.MethodPost, "/auth/login", "", `{"username":"ops@example.com","password":"secret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "ops", resp.User.Username)

	me := doRequest(e, http.MethodGet, "/auth/me", resp.Token, "")
	require.Equal(t, http.StatusOK, me.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	_, h := newAuthFixture()
	e := newTestEcho(h)

	rec := doRequest(e, http.MethodPost, "/auth/login", "", `{"username":"ops","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", errorMessage(t, rec))

	rec = doRequest(e, http.MethodPost, "/auth/login", "", `{"username":"ops"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	fake, h := newAuthFixture()
	e := newTestEcho(h)
	token := tokenFor(t, 5, "reviewer")

	rec := doRequest(e, http.MethodPost, "/auth/change-password", token, `{"current_password":"secret-pass","new_password":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/auth/change-password", token, `{"current_password":"secret-pass","new_password":"better-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5), fake.changedFor)
	assert.Equal(t, "better-pass", fake.changedToNext)

	fake.changeErr = accounts.ErrWrongPassword
	rec = doRequest(e, http.MethodPost, "/auth/change-password", token, `{"current_password":"x","new_password":"better-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	fake.changeErr = errors.New("db down")
	rec = doRequest(e, http.MethodPost, "/auth/change-password", token, `{"current_password":"x","new_password":"better-pass"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChangePasswordRequiresToken(t *testing.T) {
	t.Parallel()
	_, h := newAuthFixture()
	e := newTestEcho(h)

	rec := doRequest(e, http.MethodPost, "/auth/change-password", "", `{"current_password":"a","new_password":"bbbbbb"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshReturnsNewToken(t *testing.T) {
	t.Parallel()
	_, h := newAuthFixture()
	e := newTestEcho(h)

	rec := doRequest(e, http.MethodPost, "/auth/refresh", tokenFor(t, 5, "reviewer"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decodeBody(t, rec, &body)
	assert.NotEmpty(t, body["token"])
}
