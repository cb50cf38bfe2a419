package cache

import (
	"testing"
	"time"
)

func TestCache(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		ttl      time.Duration
		actions  func(c *Cache[string], t *testing.T)
	}{
		{
			name:     "set and get within TTL",
			capacity: 2,
			ttl:      time.Second,
			actions: func(c *Cache[string], t *testing.T) {
				c.Set("a", "1")
				if v, ok := c.Get("a"); !ok || v != "1" {
					t.Errorf("expected value=1, got=%v, ok=%v", v, ok)
				}
			},
		},
		{
			name:     "get after expiration",
			capacity: 2,
			ttl:      time.Millisecond * 50,
			actions: func(c *Cache[string], t *testing.T) {
				c.Set("a", "1")
				time.Sleep(time.Millisecond * 60)
				if _, ok := c.Get("a"); ok {
					t.Errorf("expected key to be expired")
				}
			},
		},
		{
			name:     "evict oldest when over capacity",
			capacity: 2,
			ttl:      time.Second,
			actions: func(c *Cache[string], t *testing.T) {
				c.Set("a", "1")
				c.Set("b", "2")
				c.Set("c", "3")
				if _, ok := c.Get("a"); ok {
					t.Errorf("expected oldest key to be evicted")
				}
				if _, ok := c.Get("c"); !ok {
					t.Errorf("expected newest key to be present")
				}
				if got := c.Size(); got != 2 {
					t.Errorf("expected size=2, got=%d", got)
				}
			},
		},
		{
			name:     "recently used key survives eviction",
			capacity: 2,
			ttl:      time.Second,
			actions: func(c *Cache[string], t *testing.T) {
				c.Set("a", "1")
				c.Set("b", "2")
				c.Get("a")
				c.Set("c", "3")
				if _, ok := c.Get("a"); !ok {
					t.Errorf("expected recently used key to survive")
				}
				if _, ok := c.Get("b"); ok {
					t.Errorf("expected least recently used key to be evicted")
				}
			},
		},
		{
			name:     "overwrite refreshes value and TTL",
			capacity: 2,
			ttl:      time.Millisecond * 100,
			actions: func(c *Cache[string], t *testing.T) {
				c.Set("a", "1")
				time.Sleep(time.Millisecond * 60)
				c.Set("a", "2")
				time.Sleep(time.Millisecond * 60)
				if v, ok := c.Get("a"); !ok || v != "2" {
					t.Errorf("expected refreshed value=2, got=%v, ok=%v", v, ok)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := New[string](tc.capacity, tc.ttl)
			tc.actions(c, t)
		})
	}
}
