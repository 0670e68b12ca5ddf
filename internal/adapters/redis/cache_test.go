package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "ski_homes/internal/adapters/redis"
)

type entry struct {
	Email string `json:"email"`
}

func TestCache_SetGetExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0, "skihomes:")
	defer c.Close()
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	var got entry
	ok, err := c.Get(ctx, "k", &got)
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, "k", entry{Email: "a@b.c"}, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("skihomes:k") {
		t.Fatalf("expected prefixed key in redis, have %v", mr.Keys())
	}
	ok, err = c.Get(ctx, "k", &got)
	if err != nil || !ok || got.Email != "a@b.c" {
		t.Fatalf("expected hit, got %+v ok=%v err=%v", got, ok, err)
	}

	mr.FastForward(61 * time.Second)
	ok, _ = c.Get(ctx, "k", &got)
	if ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestCache_Del(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0, "")
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "gone", true, 60)
	if err := c.Del(ctx, "gone"); err != nil {
		t.Fatalf("del: %v", err)
	}
	var v bool
	if ok, _ := c.Get(ctx, "gone", &v); ok {
		t.Fatalf("expected miss after delete")
	}
}
