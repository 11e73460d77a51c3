package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	selectSessionSQL = `SELECT telegram_id, current_step, data, language, version, created_at, updated_at
FROM sessions WHERE telegram_id = $1`

	upsertSessionSQL = `INSERT INTO sessions (telegram_id, current_step, data, language, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, 1, now(), now())
ON CONFLICT (telegram_id) DO UPDATE SET
  current_step = EXCLUDED.current_step,
  data = EXCLUDED.data,
  language = EXCLUDED.language,
  version = sessions.version + 1,
  created_at = now(),
  updated_at = now()
RETURNING version, created_at, updated_at`

	patchSessionDataSQL = `UPDATE sessions SET data = data || $2::jsonb, version = version + 1, updated_at = now()
WHERE telegram_id = $1`

	setSessionStepSQL = `UPDATE sessions SET current_step = $2, version = version + 1, updated_at = now()
WHERE telegram_id = $1`

	saveSessionSQL = `UPDATE sessions SET current_step = $2, data = $3, language = $4, version = version + 1, updated_at = now()
WHERE telegram_id = $1 AND version = $5
RETURNING version, created_at, updated_at`

	deleteSessionSQL = `DELETE FROM sessions WHERE telegram_id = $1`

	deleteStaleSessionsSQL = `DELETE FROM sessions WHERE updated_at < $1`
)

// PostgresStore keeps sessions in the sessions table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Find(ctx context.Context, identity string) (Session, error) {
	var (
		s   Session
		raw []byte
	)
	err := p.db.QueryRowContext(ctx, selectSessionSQL, identity).Scan(
		&s.Identity, &s.Step, &raw, &s.Language, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("find session: %w", err)
	}
	data, err := decodeFields(raw)
	if err != nil {
		return Session{}, err
	}
	s.Data = data
	return s, nil
}

func (p *PostgresStore) Upsert(ctx context.Context, identity, step string, data Fields, language string) (Session, error) {
	raw, err := encodeFields(data)
	if err != nil {
		return Session{}, err
	}
	s := Session{Identity: identity, Step: step, Data: data.Clone(), Language: normalizeLanguage(language)}
	err = p.db.QueryRowContext(ctx, upsertSessionSQL, identity, step, raw, s.Language).
		Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("upsert session: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) PatchData(ctx context.Context, identity string, partial Fields) error {
	raw, err := encodeFields(partial)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, patchSessionDataSQL, identity, raw)
	if err != nil {
		return fmt.Errorf("patch session data: %w", err)
	}
	return requireRow(res)
}

func (p *PostgresStore) SetStep(ctx context.Context, identity, step string) error {
	res, err := p.db.ExecContext(ctx, setSessionStepSQL, identity, step)
	if err != nil {
		return fmt.Errorf("set session step: %w", err)
	}
	return requireRow(res)
}

func (p *PostgresStore) Save(ctx context.Context, s Session) (Session, error) {
	raw, err := encodeFields(s.Data)
	if err != nil {
		return Session{}, err
	}
	out := Session{Identity: s.Identity, Step: s.Step, Data: s.Data.Clone(), Language: normalizeLanguage(s.Language)}
	err = p.db.QueryRowContext(ctx, saveSessionSQL, s.Identity, s.Step, raw, out.Language, s.Version).
		Scan(&out.Version, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrConflict
	}
	if err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return out, nil
}

func (p *PostgresStore) Delete(ctx context.Context, identity string) error {
	if _, err := p.db.ExecContext(ctx, deleteSessionSQL, identity); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, deleteStaleSessionsSQL, before)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeFields(f Fields) ([]byte, error) {
	if f == nil {
		f = Fields{}
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode session data: %w", err)
	}
	return raw, nil
}

func decodeFields(raw []byte) (Fields, error) {
	f := Fields{}
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}
	return f, nil
}
