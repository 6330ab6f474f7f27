package kb

import (
	"testing"
	"time"
)

func TestTTLCacheExpiresAfterTTL(t *testing.T) {
	c := newTTLCache[string](10 * time.Millisecond)
	c.Set("value")

	if v, ok := c.Get(); !ok || v != "value" {
		t.Fatalf("expected immediate hit, got %v %v", v, ok)
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(); ok {
		t.Fatal("expected cache entry to have expired")
	}
}

func TestTTLCacheInvalidateIsImmediate(t *testing.T) {
	c := newTTLCache[string](time.Minute)
	c.Set("value")
	c.Invalidate()
	if _, ok := c.Get(); ok {
		t.Fatal("expected invalidated cache to miss")
	}
}
