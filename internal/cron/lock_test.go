package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryRedis struct {
	values map[string]string
}

func newMemoryRedis() *memoryRedis { return &memoryRedis{values: map[string]string{}} }

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockerKeysLocksPerJob(t *testing.T) {
	store := newMemoryRedis()
	locker, err := NewRedisLocker(store, "xy:lock:cron:prod", 0)
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	ctx := context.Background()

	sweep := locker.For(CleanupJobName)
	other := locker.For("other-job")
	if ok, err := sweep.Acquire(ctx); err != nil || !ok {
		t.Fatalf("sweep acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := other.Acquire(ctx); !ok {
		t.Fatal("a different job must not share the sweep's lock")
	}
	if _, held := store.values["xy:lock:cron:prod:cleanup-sweep"]; !held {
		t.Fatalf("expected per-job key, have %v", store.values)
	}
	if ok, _ := locker.For(CleanupJobName).Acquire(ctx); ok {
		t.Fatal("second replica acquired a held job lock")
	}
}

func TestRedisLockReleaseRespectsOwnership(t *testing.T) {
	store := newMemoryRedis()
	locker, _ := NewRedisLocker(store, "xy:lock:cron:dev", time.Minute)
	ctx := context.Background()
	key := locker.Key(CleanupJobName)

	first := locker.For(CleanupJobName)
	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("first acquire failed")
	}
	// Simulate TTL expiry followed by another replica taking over.
	store.values[key] = "someone-else"
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values[key] != "someone-else" {
		t.Fatal("release removed a lock owned by another replica")
	}

	delete(store.values, key)
	second := locker.For(CleanupJobName)
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("acquire after expiry failed")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, held := store.values[key]; held {
		t.Fatal("owner release left the key behind")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("double release should be a no-op: %v", err)
	}
}

func TestNewRedisLockerValidates(t *testing.T) {
	if _, err := NewRedisLocker(nil, "p", 0); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := NewRedisLocker(newMemoryRedis(), "", 0); err == nil {
		t.Fatal("expected error without prefix")
	}
}
