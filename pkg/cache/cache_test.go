package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New()
	c.Set("a", 1, time.Minute)

	v, ok := c.Get("a")
	if !ok || v.(int) != 1 {
		t.Fatalf("expected cached value 1, got %v (ok=%v)", v, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestExpiry(t *testing.T) {
	c := New()
	c.Set("a", 1, -time.Second)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestInvalidatePrefix(t *testing.T) {
	c := New()
	c.Set("pending:biz-1", 1, time.Minute)
	c.Set("pending:biz-2", 2, time.Minute)
	c.Set("other:key", 3, time.Minute)

	c.Invalidate("pending:")

	if _, ok := c.Get("pending:biz-1"); ok {
		t.Fatal("expected pending:biz-1 to be invalidated")
	}
	if _, ok := c.Get("pending:biz-2"); ok {
		t.Fatal("expected pending:biz-2 to be invalidated")
	}
	if _, ok := c.Get("other:key"); !ok {
		t.Fatal("expected other:key to survive")
	}
}
