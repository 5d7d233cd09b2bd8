package cache

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestGetSetExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewWithClock(true, clock)
	defer c.Close()

	etag := c.Set("snapshot:1", []byte(`{"v":1}`), time.Minute)
	data, got, ok := c.Get("snapshot:1")
	if !ok || string(data) != `{"v":1}` || got != etag {
		t.Fatalf("Get = %q, %q, %v", data, got, ok)
	}

	clock.Advance(2 * time.Minute)
	if _, _, ok := c.Get("snapshot:1"); ok {
		t.Error("entry served after ttl")
	}
	stats := c.Stats()
	if stats["hits"].(uint64) != 1 || stats["misses"].(uint64) != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestDisabledCache(t *testing.T) {
	c := New(false)
	etag := c.Set("k", []byte("x"), time.Minute)
	if etag == "" {
		t.Error("disabled cache should still compute an etag")
	}
	if _, _, ok := c.Get("k"); ok {
		t.Error("disabled cache returned a hit")
	}
}

func TestEvict(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewWithClock(true, clock)
	defer c.Close()

	c.Set("old", []byte("a"), time.Second)
	c.Set("new", []byte("b"), time.Hour)
	clock.Advance(time.Minute)
	c.evict()

	if n := c.Stats()["total_keys"].(int); n != 1 {
		t.Errorf("total_keys = %d, want 1", n)
	}
}

func TestCheckETagMatch(t *testing.T) {
	etag := ComputeETag([]byte("body"))
	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"*", true},
		{etag, true},
		{`W/"other", ` + etag, true},
		{`W/"other"`, false},
	}
	for _, tt := range tests {
		if got := CheckETagMatch(tt.header, etag); got != tt.want {
			t.Errorf("CheckETagMatch(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestKey(t *testing.T) {
	if got := Key("dashboard", uint64(7), "t1"); got != "dashboard:7:t1" {
		t.Errorf("Key = %q", got)
	}
}
