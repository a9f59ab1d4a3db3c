package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lacucina/restaurant-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestSetNXOnlyWritesOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	ok, err := client.SetNX(ctx, "k", "first", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first SetNX to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, "k", "second", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second SetNX to be rejected, ok=%v err=%v", ok, err)
	}

	val, err := client.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if val != "first" {
		t.Fatalf("expected first value to survive, got %q", val)
	}
}

func TestSetOverwritesAndDelRemoves(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	if err := client.Set(ctx, "k", "a", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := client.Set(ctx, "k", "b", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got, _ := client.Get(ctx, "k"); got != "b" {
		t.Fatalf("expected overwritten value, got %q", got)
	}

	if err := client.Del(ctx, "k"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, "k"); !errors.Is(err, Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestDelIfValueOnlyRemovesMatchingOwner(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	mock.data["lock"] = "worker-b"

	removed, err := client.DelIfValue(ctx, "lock", "worker-a")
	if err != nil || removed {
		t.Fatalf("expected foreign owner to be kept, removed=%v err=%v", removed, err)
	}
	removed, err = client.DelIfValue(ctx, "lock", "worker-b")
	if err != nil || !removed {
		t.Fatalf("expected owner to delete, removed=%v err=%v", removed, err)
	}
	if _, ok := mock.data["lock"]; ok {
		t.Fatal("expected key removed")
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on uninitialized client should be a no-op, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "rb:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.RegistrationKey("order-1", "tok"); got != "rb:payment_registration:order-1:tok" {
		t.Fatalf("unexpected registration key %s", got)
	}
	if got := client.RegistrationKey("order-1", " "); got != "rb:payment_registration:order-1" {
		t.Fatalf("blank parts should be skipped, got %s", got)
	}
	if got := client.LockKey("cron"); got != "rb:lock:cron" {
		t.Fatalf("unexpected lock key %s", got)
	}

	staging := NewWithStore(nil, " staging: ")
	if got := staging.LockKey("cron-worker"); got != "staging:lock:cron-worker" {
		t.Fatalf("unexpected prefixed key %s", got)
	}
}

func TestOptionsFromConfigAppliesPoolDefaults(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:          "redis://localhost:6379/2",
		PoolSize:     7,
		MinIdleConns: 3,
		DialTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 || opts.MinIdleConns != 3 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}

	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

// Eval understands the compare-and-delete script only.
func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if script != compareAndDelete || len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, errors.New("unexpected script"))
	}
	if v, ok := m.data[keys[0]]; ok && v == fmt.Sprint(args[0]) {
		delete(m.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
