package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]Session{}, now: time.Now}
}

func (m *MemoryStore) Find(_ context.Context, identity string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[identity]
	if !ok {
		return Session{}, ErrNotFound
	}
	return copySession(s), nil
}

func (m *MemoryStore) Upsert(_ context.Context, identity, step string, data Fields, language string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	version := int64(1)
	if prev, ok := m.sessions[identity]; ok {
		version = prev.Version + 1
	}
	s := Session{
		Identity:  identity,
		Step:      step,
		Data:      data.Clone(),
		Language:  normalizeLanguage(language),
		Version:   version,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[identity] = s
	return copySession(s), nil
}

func (m *MemoryStore) PatchData(_ context.Context, identity string, partial Fields) error {
	return m.mutate(identity, func(s *Session) {
		s.Data = s.Data.Merge(partial.Clone())
	})
}

func (m *MemoryStore) SetStep(_ context.Context, identity, step string) error {
	return m.mutate(identity, func(s *Session) {
		s.Step = step
	})
}

func (m *MemoryStore) Save(_ context.Context, next Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[next.Identity]
	if !ok || cur.Version != next.Version {
		return Session{}, ErrConflict
	}
	cur.Step = next.Step
	cur.Data = next.Data.Clone()
	cur.Language = normalizeLanguage(next.Language)
	cur.Version++
	cur.UpdatedAt = m.now()
	m.sessions[next.Identity] = cur
	return copySession(cur), nil
}

func (m *MemoryStore) Delete(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, identity)
	return nil
}

func (m *MemoryStore) DeleteStale(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(before) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) mutate(identity string, fn func(*Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[identity]
	if !ok {
		return ErrNotFound
	}
	fn(&s)
	s.Version++
	s.UpdatedAt = m.now()
	m.sessions[identity] = s
	return nil
}

func copySession(s Session) Session {
	s.Data = s.Data.Clone()
	return s
}
