package redis

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ecogrove/market/internal/store"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()

	addr := os.Getenv("MARKET_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})

	err := rdb.Ping(t.Context()).Err()
	if err != nil {
		_ = rdb.Close()
		t.Skipf("redis not reachable at %s (set MARKET_TEST_REDIS_ADDR to override): %v", addr, err)
	}

	t.Cleanup(func() { _ = rdb.Close() })

	return rdb
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	rdb := newTestClient(t)
	s := New(rdb)
	ctx := t.Context()

	// Unique key per run so parallel suites against one server don't collide.
	key := fmt.Sprintf("%s-%d", store.KeyCart, time.Now().UnixNano())

	_, err := s.Load(ctx, key)
	if !errors.Is(err, store.ErrNoDocument) {
		t.Fatalf("want ErrNoDocument for unknown key, got %v", err)
	}

	want := `[{"product_id":"7"}]`

	err = s.Save(ctx, key, []byte(want))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != want {
		t.Fatalf("doc: want %s, got %s", want, got)
	}

	err = s.Delete(ctx, key)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err = s.Load(ctx, key)
	if !errors.Is(err, store.ErrNoDocument) {
		t.Fatalf("want ErrNoDocument after delete, got %v", err)
	}
}
