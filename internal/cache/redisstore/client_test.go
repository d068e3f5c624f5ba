package redisstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestSetGetDel_HappyPath(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rc.Set(ctx, "k1", []byte("v1"), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := rc.Get(ctx, "k1")
	if err != nil || !ok || string(got) != "v1" {
		t.Fatalf("Get k1: got=%q ok=%v err=%v", got, ok, err)
	}
	if _, ok, err := rc.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}

	if err := rc.Del(ctx, "k1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := rc.Get(ctx, "k1"); ok {
		t.Fatalf("k1 still present after Del")
	}
	if err := rc.Del(ctx); err != nil {
		t.Fatalf("Del with no keys: %v", err)
	}
}

func TestDelMatching_OnlyRemovesPattern(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	for _, k := range []string{"p:group:a", "p:group:b", "other:group:c"} {
		if err := rc.Set(ctx, k, []byte("x"), time.Minute); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}
	n, err := rc.DelMatching(ctx, "p:group:*")
	if err != nil {
		t.Fatalf("DelMatching: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted %d keys, want 2", n)
	}
	if mr.Exists("p:group:a") || mr.Exists("p:group:b") || !mr.Exists("other:group:c") {
		t.Fatalf("unexpected keys left: %v", mr.Keys())
	}
}

func TestContextDeadline_IsRespected(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, _, err := rc.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error on Get with canceled context")
	}
	if err := rc.Del(ctx, "k"); err == nil {
		t.Fatalf("expected error on Del with canceled context")
	}
}

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
