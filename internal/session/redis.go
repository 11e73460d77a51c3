package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisMaxRetries = 3

// RedisStore keeps each session as a JSON value with an idle TTL. Expiry is
// handled by Redis, so DeleteStale is a no-op.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a store writing keys as <prefix><identity>.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (r *RedisStore) key(identity string) string {
	return r.prefix + identity
}

func (r *RedisStore) Find(ctx context.Context, identity string) (Session, error) {
	return r.get(ctx, r.client, identity)
}

func (r *RedisStore) Upsert(ctx context.Context, identity, step string, data Fields, language string) (Session, error) {
	now := r.now()
	out := Session{
		Identity:  identity,
		Step:      step,
		Data:      data.Clone(),
		Language:  normalizeLanguage(language),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.transact(ctx, identity, func(tx *redis.Tx) error {
		prev, err := r.get(ctx, tx, identity)
		switch {
		case errors.Is(err, ErrNotFound):
			out.Version = 1
		case err != nil:
			return err
		default:
			out.Version = prev.Version + 1
		}
		return r.put(ctx, tx, out)
	})
	if err != nil {
		return Session{}, fmt.Errorf("upsert session: %w", err)
	}
	return out, nil
}

func (r *RedisStore) PatchData(ctx context.Context, identity string, partial Fields) error {
	_, err := r.update(ctx, identity, func(s *Session) error {
		s.Data = s.Data.Merge(partial.Clone())
		return nil
	})
	return err
}

func (r *RedisStore) SetStep(ctx context.Context, identity, step string) error {
	_, err := r.update(ctx, identity, func(s *Session) error {
		s.Step = step
		return nil
	})
	return err
}

func (r *RedisStore) Save(ctx context.Context, next Session) (Session, error) {
	out, err := r.update(ctx, next.Identity, func(s *Session) error {
		if s.Version != next.Version {
			return ErrConflict
		}
		s.Step = next.Step
		s.Data = next.Data.Clone()
		s.Language = normalizeLanguage(next.Language)
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrConflict
	}
	if err != nil {
		return Session{}, err
	}
	return out, nil
}

func (r *RedisStore) Delete(ctx context.Context, identity string) error {
	if err := r.client.Del(ctx, r.key(identity)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *RedisStore) DeleteStale(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// update applies fn under WATCH and writes the result with a bumped version.
func (r *RedisStore) update(ctx context.Context, identity string, fn func(*Session) error) (Session, error) {
	var out Session
	err := r.transact(ctx, identity, func(tx *redis.Tx) error {
		s, err := r.get(ctx, tx, identity)
		if err != nil {
			return err
		}
		if err := fn(&s); err != nil {
			return err
		}
		s.Version++
		s.UpdatedAt = r.now()
		if err := r.put(ctx, tx, s); err != nil {
			return err
		}
		out = s
		return nil
	})
	return out, err
}

// transact retries optimistic transactions a few times before reporting ErrConflict.
func (r *RedisStore) transact(ctx context.Context, identity string, fn func(*redis.Tx) error) error {
	key := r.key(identity)
	for i := 0; i < redisMaxRetries; i++ {
		err := r.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) get(ctx context.Context, c getter, identity string) (Session, error) {
	raw, err := c.Get(ctx, r.key(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if s.Data == nil {
		s.Data = Fields{}
	}
	return s, nil
}

func (r *RedisStore) put(ctx context.Context, tx *redis.Tx, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(s.Identity), raw, r.ttl)
		return nil
	})
	return err
}
