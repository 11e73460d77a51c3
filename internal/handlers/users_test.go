package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossfellowship/registrar/internal/accounts"
)

type fakeUserService struct {
	users     map[int64]accounts.User
	inviteErr bool
	deleted   []int64
}

func (f *fakeUserService) List(context.Context) ([]accounts.User, error) {
	out := make([]accounts.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUserService) Create(_ context.Context, address string, role accounts.Role) (accounts.Provisioned, error) {
	for _, u := range f.users {
		if u.Email == address {
			return accounts.Provisioned{}, accounts.ErrEmailExists
		}
	}
	u := accounts.User{ID: int64(len(f.users) + 1), Email: address, Role: role}
	f.users[u.ID] = u
	if f.inviteErr {
		return accounts.Provisioned{User: u, TempPassword: "a1b2c3d4", Warning: "invitation email could not be sent"}, nil
	}
	return accounts.Provisioned{User: u, Invited: true}, nil
}

func (f *fakeUserService) Delete(_ context.Context, actorID, id int64) error {
	if actorID == id {
		return accounts.ErrSelfDelete
	}
	if _, ok := f.users[id]; !ok {
		return accounts.ErrNotFound
	}
	delete(f.users, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUserService) ResendInvitation(_ context.Context, id int64) (accounts.Provisioned, error) {
	u, ok := f.users[id]
	if !ok {
		return accounts.Provisioned{}, accounts.ErrNotFound
	}
	if u.Email == "" {
		return accounts.Provisioned{}, accounts.ErrNoEmail
	}
	return accounts.Provisioned{User: u, Invited: true}, nil
}

func newUsersFixture() (*fakeUserService, *UsersHandler) {
	svc := &fakeUserService{users: map[int64]accounts.User{
		1: {ID: 1, Username: "admin", Role: accounts.RoleSuperAdmin},
	}}
	return svc, NewUsersHandler(slog.Default(), svc)
}

func TestUsersRequireSuperAdmin(t *testing.T) {
	t.Parallel()
	_, h := newUsersFixture()
	e := newTestEcho(h)

	rec := doRequest(e, http.MethodGet, "/users", tokenFor(t, 2, "reviewer"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Super admin access required", errorMessage(t, rec))

	rec = doRequest(e, http.MethodGet, "/users", tokenFor(t, 1, "super_admin"), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateUser(t *testing.T) {
	t.Parallel()
	svc, h := newUsersFixture()
	e := newTestEcho(h)
	token := tokenFor(t, 1, "super_admin")

	rec := doRequest(e, http.MethodPost, "/users", token, `{"email":"rev@example.com","role":"reviewer"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp ProvisionResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Invited)
	assert.Empty(t, resp.TempPassword)

	rec = doRequest(e, http.MethodPost, "/users", token, `{"email":"rev@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(e, http.MethodPost, "/users", token, `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid email format", errorMessage(t, rec))

	rec = doRequest(e, http.MethodPost, "/users", token, `{"email":"x@example.com","role":"owner"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.inviteErr = true
	rec = doRequest(e, http.MethodPost, "/users", token, `{"email":"late@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Invited)
	assert.Equal(t, "a1b2c3d4", resp.TempPassword)
	assert.NotEmpty(t, resp.Warning)
}

func TestDeleteUser(t *testing.T) {
	t.Parallel()
	svc, h := newUsersFixture()
	svc.users[2] = accounts.User{ID: 2, Username: "rev", Role: accounts.RoleReviewer}
	e := newTestEcho(h)
	token := tokenFor(t, 1, "super_admin")

	assert.Equal(t, http.StatusBadRequest, doRequest(e, http.MethodDelete, "/users/1", token, "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(e, http.MethodDelete, "/users/9", token, "").Code)
	assert.Equal(t, http.StatusOK, doRequest(e, http.MethodDelete, "/users/2", token, "").Code)
	assert.Equal(t, []int64{2}, svc.deleted)
}

func TestResendInvitation(t *testing.T) {
	t.Parallel()
	svc, h := newUsersFixture()
	svc.users[2] = accounts.User{ID: 2, Username: "rev", Email: "rev@example.com", Role: accounts.RoleReviewer}
	e := newTestEcho(h)
	token := tokenFor(t, 1, "super_admin")

	assert.Equal(t, http.StatusOK, doRequest(e, http.MethodPost, "/users/2/resend", token, "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(e, http.MethodPost, "/users/1/resend", token, "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(e, http.MethodPost, "/users/7/resend", token, "").Code)
}
