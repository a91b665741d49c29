package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"gendesk/internal/domain"
)

const sessionsKey = "gendesk:sessions"

// RedisStore keeps the session set serialized under a single key, preserving
// the whole-collection write-through semantics of the file backend.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redis connection test failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Load(ctx context.Context) ([]*domain.ChatSession, error) {
	data, err := r.client.Get(ctx, sessionsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session store: %w", err)
	}

	var sessions []*domain.ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		log.WithError(err).WithField("key", sessionsKey).
			Warn("session store is malformed, starting with an empty set")
		return nil, nil
	}
	return sessions, nil
}

func (r *RedisStore) Save(ctx context.Context, sessions []*domain.ChatSession) error {
	if sessions == nil {
		sessions = []*domain.ChatSession{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("marshal session store: %w", err)
	}
	if err := r.client.Set(ctx, sessionsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("write session store: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error { return r.client.Close() }
