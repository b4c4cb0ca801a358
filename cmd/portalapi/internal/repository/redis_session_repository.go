package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix   = "portal:session:"
	redisSessionIDPrefix = "portal:session-id:"
)

// RedisSessionRepository implements SessionRepository on Redis. Each session is a
// JSON document keyed by token hash with a TTL matching its expiry, plus an id
// index key pointing at the hash.
type RedisSessionRepository struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisSessionRepository creates a Redis-backed session repository
func NewRedisSessionRepository(client redis.UniversalClient) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, now: time.Now}
}

func (r *RedisSessionRepository) ttl(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (r *RedisSessionRepository) save(ctx context.Context, session *models.Session, onlyNew bool) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := r.ttl(session.ExpiresAt)

	if onlyNew {
		ok, err := r.client.SetNX(ctx, redisSessionPrefix+session.TokenHash, payload, ttl).Result()
		if err != nil {
			return fmt.Errorf("create session: %w: %w", ErrUnavailable, err)
		}
		if !ok {
			return fmt.Errorf("create session: %w", ErrDuplicate)
		}
	} else if err := r.client.Set(ctx, redisSessionPrefix+session.TokenHash, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w: %w", ErrUnavailable, err)
	}

	if err := r.client.Set(ctx, redisSessionIDPrefix+session.ID, session.TokenHash, ttl).Err(); err != nil {
		return fmt.Errorf("index session: %w: %w", ErrUnavailable, err)
	}
	return nil
}

// Create stores a new session
func (r *RedisSessionRepository) Create(ctx context.Context, session *models.Session) error {
	return r.save(ctx, session, true)
}

// GetByTokenHash retrieves a session by its token hash
func (r *RedisSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	raw, err := r.client.Get(ctx, redisSessionPrefix+tokenHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get session by token: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w: %w", ErrUnavailable, err)
	}

	session := new(models.Session)
	if err := json.Unmarshal(raw, session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

func (r *RedisSessionRepository) getByID(ctx context.Context, id string) (*models.Session, error) {
	hash, err := r.client.Get(ctx, redisSessionIDPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w: %w", id, ErrUnavailable, err)
	}
	return r.GetByTokenHash(ctx, hash)
}

// Touch slides the session window forward and refreshes the TTL
func (r *RedisSessionRepository) Touch(ctx context.Context, id string, lastUsedAt, expiresAt time.Time) error {
	session, err := r.getByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if session.Revoked {
		return nil
	}
	session.LastUsedAt = lastUsedAt
	session.ExpiresAt = expiresAt
	return r.save(ctx, session, false)
}

// Revoke removes the session. A revoked session is never read again, so the
// keys are deleted outright.
func (r *RedisSessionRepository) Revoke(ctx context.Context, id string) error {
	hash, err := r.client.Get(ctx, redisSessionIDPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("revoke session: %w: %w", ErrUnavailable, err)
	}
	if err := r.client.Del(ctx, redisSessionPrefix+hash, redisSessionIDPrefix+id).Err(); err != nil {
		return fmt.Errorf("revoke session: %w: %w", ErrUnavailable, err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis expires keys on its own.
func (r *RedisSessionRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
