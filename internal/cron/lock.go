package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 10 * time.Minute

// Lock guards one job across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Locker hands out the lock for a job name.
type Locker interface {
	For(job string) Lock
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLocker issues SETNX locks under prefix:<job>.
type RedisLocker struct {
	store  lockStore
	prefix string
	ttl    time.Duration
}

// NewRedisLocker builds a locker. ttl bounds how long a crashed worker can
// block a job; it should exceed the slowest expected run.
func NewRedisLocker(store lockStore, prefix string, ttl time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis store required for cron locks")
	}
	if prefix == "" {
		return nil, errors.New("lock prefix is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{store: store, prefix: prefix, ttl: ttl}, nil
}

func (l *RedisLocker) For(job string) Lock {
	return &redisLock{store: l.store, key: l.Key(job), ttl: l.ttl}
}

// Key is the redis key guarding job.
func (l *RedisLocker) Key(job string) string {
	return l.prefix + ":" + job
}

type redisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	token string
}

func (l *redisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release deletes the key only while it still carries this holder's token;
// after a TTL expiry another replica may own it.
func (l *redisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	held, err := l.store.Get(ctx, l.key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("read %s: %w", l.key, err)
	case held != token:
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
