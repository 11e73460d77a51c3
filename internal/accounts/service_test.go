package accounts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/crossfellowship/registrar/internal/email"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[int64]User{}}
}

func (r *memoryRepo) FindByIdentifier(_ context.Context, identifier string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == identifier || (u.Email != "" && u.Email == identifier) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepo) FindByID(_ context.Context, id int64) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *memoryRepo) FindByEmail(_ context.Context, address string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == address {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepo) List(context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memoryRepo) Create(_ context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || (u.Email != "" && existing.Email == u.Email) {
			return User{}, ErrDuplicate
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now()
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryRepo) Upsert(ctx context.Context, u User) (User, error) {
	existing, err := r.FindByIdentifier(ctx, u.Username)
	if errors.Is(err, ErrNotFound) {
		return r.Create(ctx, u)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing.PasswordHash = u.PasswordHash
	existing.Email = u.Email
	r.users[existing.ID] = existing
	return existing, nil
}

func (r *memoryRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeInviter struct {
	sent []email.Invitation
	err  error
}

func (f *fakeInviter) SendInvitation(_ context.Context, inv email.Invitation) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, inv)
	return nil
}

func newTestService(inviter Inviter) (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, inviter)
	svc.cost = bcrypt.MinCost
	return svc, repo
}

func TestCreateSendsInvitation(t *testing.T) {
	t.Parallel()
	inviter := &fakeInviter{}
	svc, _ := newTestService(inviter)
	ctx := context.Background()

	out, err := svc.Create(ctx, " Reviewer@Example.com ", "")
	require.NoError(t, err)
	assert.True(t, out.Invited)
	assert.Empty(t, out.Warning)
	assert.Empty(t, out.TempPassword)
	assert.Equal(t, "reviewer", out.User.Username)
	assert.Equal(t, RoleReviewer, out.User.Role)

	require.Len(t, inviter.sent, 1)
	inv := inviter.sent[0]
	assert.Equal(t, "reviewer@example.com", inv.Email)
	assert.Len(t, inv.TempPassword, 8)

	u, err := svc.Authenticate(ctx, "reviewer@example.com", inv.TempPassword)
	require.NoError(t, err)
	assert.Equal(t, out.User.ID, u.ID)
}

func TestCreateKeepsUserWhenInvitationFails(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(&fakeInviter{err: errors.New("smtp down")})
	ctx := context.Background()

	out, err := svc.Create(ctx, "ops@example.com", RoleSuperAdmin)
	require.NoError(t, err)
	assert.False(t, out.Invited)
	assert.NotEmpty(t, out.Warning)
	require.Len(t, out.TempPassword, 8)

	_, err = svc.Authenticate(ctx, "ops", out.TempPassword)
	require.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "not-an-email", RoleReviewer)
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.Create(ctx, "a@example.com", Role("owner"))
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.Create(ctx, "a@example.com", RoleReviewer)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "A@example.com", RoleReviewer)
	require.ErrorIs(t, err, ErrEmailExists)
}

func TestCreateSuffixesTakenUsername(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, "sam@one.org", RoleReviewer)
	require.NoError(t, err)
	second, err := svc.Create(ctx, "sam@two.org", RoleReviewer)
	require.NoError(t, err)
	assert.Equal(t, "sam", first.User.Username)
	assert.NotEqual(t, "sam", second.User.Username)
	assert.Contains(t, second.User.Username, "sam_")
}

func TestAuthenticateRejectsUniformly(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(nil)
	ctx := context.Background()
	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "secret-pass", ""))

	_, err := svc.Authenticate(ctx, "admin", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody", "secret-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDeleteRefusesSelf(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.Delete(ctx, 1, 1), ErrSelfDelete)
	require.ErrorIs(t, svc.Delete(ctx, 1, 99), ErrNotFound)
}

func TestResendInvitationRotatesPassword(t *testing.T) {
	t.Parallel()
	inviter := &fakeInviter{}
	svc, _ := newTestService(inviter)
	ctx := context.Background()

	out, err := svc.Create(ctx, "rev@example.com", RoleReviewer)
	require.NoError(t, err)
	oldPassword := inviter.sent[0].TempPassword

	_, err = svc.ResendInvitation(ctx, out.User.ID)
	require.NoError(t, err)
	require.Len(t, inviter.sent, 2)
	newPassword := inviter.sent[1].TempPassword

	_, err = svc.Authenticate(ctx, "rev", oldPassword)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "rev", newPassword)
	require.NoError(t, err)
}

func TestResendInvitationRequiresEmail(t *testing.T) {
	t.Parallel()
	svc, repo := newTestService(&fakeInviter{})
	ctx := context.Background()
	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "secret-pass", ""))
	admin, err := repo.FindByIdentifier(ctx, "admin")
	require.NoError(t, err)

	_, err = svc.ResendInvitation(ctx, admin.ID)
	require.ErrorIs(t, err, ErrNoEmail)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	svc, repo := newTestService(nil)
	ctx := context.Background()
	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "secret-pass", "admin@example.com"))
	admin, err := repo.FindByIdentifier(ctx, "admin")
	require.NoError(t, err)

	require.ErrorIs(t, svc.ChangePassword(ctx, admin.ID, "secret-pass", "short"), ErrPasswordTooShort)
	require.ErrorIs(t, svc.ChangePassword(ctx, admin.ID, "nope", "long-enough"), ErrWrongPassword)
	require.NoError(t, svc.ChangePassword(ctx, admin.ID, "secret-pass", "long-enough"))

	_, err = svc.Authenticate(ctx, "admin@example.com", "long-enough")
	require.NoError(t, err)
}

func TestEnsureAdminLeavesExistingAccount(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(nil)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "first-pass", ""))
	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "second-pass", ""))

	_, err := svc.Authenticate(ctx, "admin", "first-pass")
	require.NoError(t, err)
}

func TestSeedAdminResetsPassword(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(nil)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "first-pass", ""))
	u, err := svc.SeedAdmin(ctx, "admin", "second-pass", "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, RoleSuperAdmin, u.Role)

	_, err = svc.Authenticate(ctx, "admin", "second-pass")
	require.NoError(t, err)
	_, err = svc.SeedAdmin(ctx, "admin", "123", "")
	require.ErrorIs(t, err, ErrPasswordTooShort)
}
