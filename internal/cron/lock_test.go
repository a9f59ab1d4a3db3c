package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values map[string]string
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) DelIfValue(_ context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := &memoryStore{values: map[string]string{}}
	a, err := NewRedisLock(store, "cron", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	b, _ := NewRedisLock(store, "cron", time.Minute)

	if ok, err := a.Acquire(context.Background()); err != nil || !ok {
		t.Fatalf("expected first acquire to win, ok=%v err=%v", ok, err)
	}
	if ok, _ := b.Acquire(context.Background()); ok {
		t.Fatal("second instance must not acquire a held lock")
	}
	if err := b.Release(context.Background()); err != nil {
		t.Fatalf("release by non owner: %v", err)
	}
	if _, held := store.values["cron"]; !held {
		t.Fatal("non owner release must not drop the lock")
	}
	if err := a.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := b.Acquire(context.Background()); !ok {
		t.Fatal("expected lock to be free after release")
	}
}

func TestRedisLockReportsExpiredOwnership(t *testing.T) {
	store := &memoryStore{values: map[string]string{}}
	lock, err := NewRedisLock(store, "cron", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if ok, err := lock.Acquire(context.Background()); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	// TTL ran out and another worker took over.
	store.values["cron"] = "other-worker:1"

	if holder, _ := lock.Holder(context.Background()); holder != "other-worker:1" {
		t.Fatalf("unexpected holder %q", holder)
	}
	if err := lock.Release(context.Background()); !errors.Is(err, ErrLockLost) {
		t.Fatalf("expected ErrLockLost, got %v", err)
	}
	if store.values["cron"] != "other-worker:1" {
		t.Fatal("release must not delete a lock owned by another worker")
	}
}
