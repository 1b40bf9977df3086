//go:build integration

package device

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Requires a Redis server; set GRAYLOGIC_ZIGBEE_TEST_REDIS (default 127.0.0.1:6379).
//
//	go test -tags=integration ./internal/device/...
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("GRAYLOGIC_ZIGBEE_TEST_REDIS")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { rdb.Close() }) //nolint:errcheck // Test cleanup
	return rdb
}

func TestRedisStateStore_MergeAndLoad(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewRedisStateStore(rdb, time.Minute)
	ctx := context.Background()
	t.Cleanup(func() { store.DeleteState(ctx, testBulbIEEE) }) //nolint:errcheck // Test cleanup

	if _, err := store.MergeState(ctx, testBulbIEEE, State{"state": "ON", "brightness": 254}); err != nil {
		t.Fatalf("MergeState() error = %v", err)
	}
	merged, err := store.MergeState(ctx, testBulbIEEE, State{"state": "OFF"})
	if err != nil {
		t.Fatalf("MergeState() error = %v", err)
	}
	if merged["state"] != "OFF" || merged["brightness"] != float64(254) {
		t.Errorf("merged = %v", merged)
	}

	loaded, err := store.LoadState(ctx, testBulbIEEE)
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if len(loaded) != 2 {
		t.Errorf("loaded = %v, want 2 fields", loaded)
	}

	ttl, err := rdb.TTL(ctx, stateKey(testBulbIEEE)).Result()
	if err != nil || ttl <= 0 {
		t.Errorf("TTL = %v, %v; want positive", ttl, err)
	}
}

func TestRedisStateStore_LoadMissing(t *testing.T) {
	store := NewRedisStateStore(newTestRedis(t), 0)

	state, err := store.LoadState(context.Background(), "0x0000000000000001")
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if len(state) != 0 {
		t.Errorf("state = %v, want empty", state)
	}
}
