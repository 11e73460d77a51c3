package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/crossfellowship/registrar/internal/email"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Repository is the persistence surface the service needs. *Store satisfies it.
type Repository interface {
	FindByIdentifier(ctx context.Context, identifier string) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, u User) (User, error)
	Upsert(ctx context.Context, u User) (User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	Delete(ctx context.Context, id int64) error
}

// Inviter delivers credentials to a newly provisioned user. *email.Mailer satisfies it.
type Inviter interface {
	SendInvitation(ctx context.Context, inv email.Invitation) error
}

type Service struct {
	repo    Repository
	inviter Inviter
	logger  *slog.Logger
	cost    int
}

func NewService(log *slog.Logger, repo Repository, inviter Inviter) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:    repo,
		inviter: inviter,
		logger:  log.With(slog.String("service", "accounts")),
		cost:    bcrypt.DefaultCost,
	}
}

// Authenticate accepts a username or email. Every mismatch reports ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	u, err := s.repo.FindByIdentifier(ctx, identifier)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Create provisions a user with a generated password and emails it to them.
// A failed invitation still leaves the user created; the result then carries
// the password and a warning so an operator can pass it on.
func (s *Service) Create(ctx context.Context, address string, role Role) (Provisioned, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if err := validate.Var(address, "required,email"); err != nil {
		return Provisioned{}, ErrInvalidEmail
	}
	if role == "" {
		role = RoleReviewer
	}
	if !role.Valid() {
		return Provisioned{}, ErrInvalidRole
	}
	if _, err := s.repo.FindByEmail(ctx, address); err == nil {
		return Provisioned{}, ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return Provisioned{}, err
	}

	password, hash, err := s.newPassword()
	if err != nil {
		return Provisioned{}, err
	}
	base := usernameFromEmail(address)
	u := User{Username: base, Email: address, Role: role, PasswordHash: hash}
	created, err := s.repo.Create(ctx, u)
	if errors.Is(err, ErrDuplicate) {
		// Either the email raced in or the local part is taken by another user.
		if _, findErr := s.repo.FindByEmail(ctx, address); findErr == nil {
			return Provisioned{}, ErrEmailExists
		}
		suffix, sufErr := randomHex(2)
		if sufErr != nil {
			return Provisioned{}, sufErr
		}
		u.Username = base + "_" + suffix
		created, err = s.repo.Create(ctx, u)
	}
	if err != nil {
		return Provisioned{}, err
	}
	s.logger.Info("user created", slog.Int64("user_id", created.ID), slog.String("role", string(created.Role)))
	return s.invite(ctx, created, password), nil
}

// ResendInvitation rotates the user's password and mails the new one.
func (s *Service) ResendInvitation(ctx context.Context, id int64) (Provisioned, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Provisioned{}, err
	}
	if u.Email == "" {
		return Provisioned{}, ErrNoEmail
	}
	password, hash, err := s.newPassword()
	if err != nil {
		return Provisioned{}, err
	}
	if err := s.repo.UpdatePassword(ctx, u.ID, hash); err != nil {
		return Provisioned{}, err
	}
	u.PasswordHash = hash
	return s.invite(ctx, u, password), nil
}

func (s *Service) invite(ctx context.Context, u User, password string) Provisioned {
	out := Provisioned{User: u, TempPassword: password}
	if s.inviter == nil {
		out.Warning = "email delivery is not configured; share the temporary password manually"
		return out
	}
	err := s.inviter.SendInvitation(ctx, email.Invitation{Email: u.Email, TempPassword: password, Role: string(u.Role)})
	if err != nil {
		s.logger.Warn("invitation not sent", slog.Int64("user_id", u.ID), slog.Any("error", err))
		out.Warning = "invitation email could not be sent; share the temporary password manually"
		return out
	}
	out.Invited = true
	out.TempPassword = ""
	return out
}

// Delete removes a user. Callers cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrSelfDelete
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.Int64("user_id", id), slog.Int64("actor_id", actorID))
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, id int64, current, next string) error {
	if len(next) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrWrongPassword
	}
	hash, err := s.hash(next)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, hash)
}

// EnsureAdmin creates the bootstrap super admin when no user by that name exists.
// An existing account is left untouched.
func (s *Service) EnsureAdmin(ctx context.Context, username, password, address string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil
	}
	if _, err := s.repo.FindByIdentifier(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	u, err := s.repo.Create(ctx, User{Username: username, Email: normalizeOptionalEmail(address), Role: RoleSuperAdmin, PasswordHash: hash})
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", slog.Int64("user_id", u.ID), slog.String("username", u.Username))
	return nil
}

// SeedAdmin creates the admin or resets its password to the given one.
func (s *Service) SeedAdmin(ctx context.Context, username, password, address string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("admin username is required")
	}
	if len(password) < MinPasswordLength {
		return User{}, ErrPasswordTooShort
	}
	hash, err := s.hash(password)
	if err != nil {
		return User{}, err
	}
	return s.repo.Upsert(ctx, User{Username: username, Email: normalizeOptionalEmail(address), Role: RoleSuperAdmin, PasswordHash: hash})
}

func (s *Service) newPassword() (string, string, error) {
	password, err := randomHex(4)
	if err != nil {
		return "", "", err
	}
	hash, err := s.hash(password)
	if err != nil {
		return "", "", err
	}
	return password, hash, nil
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func usernameFromEmail(address string) string {
	local, _, _ := strings.Cut(address, "@")
	if len(local) > 40 {
		local = local[:40]
	}
	return local
}

func normalizeOptionalEmail(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	if validate.Var(address, "required,email") != nil {
		return ""
	}
	return address
}
