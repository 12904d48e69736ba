package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

var _ port.SessionStore = (*RedisStore)(nil)

// A RedisStore keeps each session as a JSON document under session:<id>.
// Every save pushes the expiry forward by the configured TTL.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return RedisStore{client, ttl}
}

// NewRedisClient connects and pings the server.
func NewRedisClient(
	ctx context.Context, addr, password string, db int,
) (*redis.Client, error) {
	const op = "session.NewRedisClient"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: redis is unavailable: %w", op, err)
	}

	slog.Info("redis is available", "op", op, "addr", addr)
	return client, nil
}

func (s RedisStore) Load(ctx context.Context, id string) (domain.Session, error) {
	const op = "RedisStore.Load"

	data, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, fmt.Errorf(
				"%s: %w", op, domain.NewNotFoundError("session", id),
			)
		}
		return domain.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domain.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	sess.ID = id
	return sess, nil
}

func (s RedisStore) Save(ctx context.Context, sess domain.Session) error {
	const op = "RedisStore.Save"

	if sess.ID == "" {
		return fmt.Errorf("%s: %w", op,
			domain.NewValidationError("session", "missing id"))
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.client.Set(ctx, key(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s RedisStore) Delete(ctx context.Context, id string) error {
	const op = "RedisStore.Delete"

	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func key(id string) string {
	return "session:" + id
}
