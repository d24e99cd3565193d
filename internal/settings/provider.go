package settings

import (
	"context"
	"sync"
	"time"

	redisclient "github.com/xymail/xymail-backend/pkg/redis"
)

// Provider is the key-value surface runtime settings are read from and written to.
type Provider interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	ConfigKey(name string) string
}

// RedisProvider keeps settings under the namespaced config keys of a Redis client.
type RedisProvider struct {
	store redisStore
}

// NewRedisProvider wraps the Redis client.
func NewRedisProvider(store redisStore) *RedisProvider {
	return &RedisProvider{store: store}
}

func (p *RedisProvider) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := p.store.Get(ctx, p.store.ConfigKey(key))
	if err != nil {
		if redisclient.IsNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (p *RedisProvider) Put(ctx context.Context, key, value string) error {
	return p.store.Set(ctx, p.store.ConfigKey(key), value, 0)
}

// MemoryProvider is an in-process Provider used by tests and the SQLite dev mode.
type MemoryProvider struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryProvider returns a provider seeded with the supplied values.
func NewMemoryProvider(seed map[string]string) *MemoryProvider {
	values := make(map[string]string, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &MemoryProvider{values: values}
}

func (p *MemoryProvider) Get(_ context.Context, key string) (string, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	value, ok := p.values[key]
	return value, ok, nil
}

func (p *MemoryProvider) Put(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
	return nil
}
