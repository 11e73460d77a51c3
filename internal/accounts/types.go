// Package accounts manages dashboard users: login, invitations and passwords.
package accounts

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
	ErrDuplicate          = errors.New("duplicate user")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidRole        = errors.New("invalid role")
	ErrSelfDelete         = errors.New("cannot delete your own account")
	ErrNoEmail            = errors.New("user does not have an email address")
	ErrPasswordTooShort   = errors.New("new password must be at least 6 characters")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

const MinPasswordLength = 6

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleReviewer   Role = "reviewer"
)

func (r Role) Valid() bool {
	return r == RoleSuperAdmin || r == RoleReviewer
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Provisioned is the outcome of creating a user or rotating their password.
// Warning is set, and TempPassword kept, when the invitation could not be sent.
type Provisioned struct {
	User         User   `json:"user"`
	TempPassword string `json:"-"`
	Invited      bool   `json:"invited"`
	Warning      string `json:"warning,omitempty"`
}
