// Package session persists in-progress registration conversations, one per
// user identity.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no session exists for the identity.
	ErrNotFound = errors.New("session not found")
	// ErrConflict indicates the session changed since it was read.
	ErrConflict = errors.New("session version conflict")
)

// DefaultLanguage is used until the user selects a locale.
const DefaultLanguage = "en"

// Fields is the accumulated answer set. Values are raw JSON so the
// conversation layer can decode them into typed drafts.
type Fields map[string]json.RawMessage

// Merge copies partial into f, overwriting existing keys. Keys are never removed.
func (f Fields) Merge(partial Fields) Fields {
	out := make(Fields, len(f)+len(partial))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Session is one active conversation.
type Session struct {
	Identity  string    `json:"identity"`
	Step      string    `json:"step"`
	Data      Fields    `json:"data"`
	Language  string    `json:"language"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the durable session contract. Every write bumps Version.
type Store interface {
	// Find returns ErrNotFound when no session exists.
	Find(ctx context.Context, identity string) (Session, error)
	// Upsert creates or fully replaces the session for identity.
	Upsert(ctx context.Context, identity, step string, data Fields, language string) (Session, error)
	// PatchData merges partial into the stored data.
	PatchData(ctx context.Context, identity string, partial Fields) error
	// SetStep moves the session to step.
	SetStep(ctx context.Context, identity, step string) error
	// Save writes step, data and language if the stored version still equals
	// s.Version, returning the updated session or ErrConflict.
	Save(ctx context.Context, s Session) (Session, error)
	// Delete removes the session. Missing sessions are not an error.
	Delete(ctx context.Context, identity string) error
	// DeleteStale removes sessions last updated before the cutoff.
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

func normalizeLanguage(language string) string {
	if language == "" {
		return DefaultLanguage
	}
	return language
}
