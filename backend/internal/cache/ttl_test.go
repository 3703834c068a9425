package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestGetExpiresOnRead(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[int](time.Minute, WithClock(clock.Now))

	c.Set("AAPL", 42)
	if v, ok := c.Get("AAPL"); !ok || v != 42 {
		t.Fatalf("Get=%v,%v expected 42,true", v, ok)
	}

	clock.Advance(59 * time.Second)
	if _, ok := c.Get("AAPL"); !ok {
		t.Fatal("entry expired early")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("AAPL"); ok {
		t.Fatal("entry should have expired")
	}
	if c.Len() != 0 {
		t.Fatalf("Len=%d, expected expired entry to be dropped", c.Len())
	}
}

func TestGetOrLoad(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[string](5*time.Minute, WithClock(clock.Now))
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return fmt.Sprintf("v%d", calls), nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(context.Background(), "k", load)
		if err != nil || v != "v1" {
			t.Fatalf("GetOrLoad=%q,%v expected v1", v, err)
		}
	}
	clock.Advance(5 * time.Minute)
	if v, _ := c.GetOrLoad(context.Background(), "k", load); v != "v2" {
		t.Fatalf("GetOrLoad after expiry=%q, expected v2", v)
	}
	if calls != 2 {
		t.Fatalf("loader called %d times, expected 2", calls)
	}
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := New[int](time.Minute)
	boom := errors.New("boom")

	if _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err=%v, expected boom", err)
	}
	if c.Len() != 0 {
		t.Fatal("failed load was cached")
	}
}

func TestPurge(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[int](time.Minute, WithClock(clock.Now))
	for i := 0; i < 40; i++ {
		c.Set(fmt.Sprintf("old-%d", i), i)
	}
	clock.Advance(2 * time.Minute)
	c.Set("fresh", 1)

	if removed := c.Purge(); removed != 40 {
		t.Fatalf("Purge removed %d, expected 40", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("Len=%d, expected 1", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", i%32)
				c.Set(key, w)
				c.Get(key)
			}
		}(w)
	}
	wg.Wait()
	if c.Len() != 32 {
		t.Fatalf("Len=%d, expected 32", c.Len())
	}
}

func TestMaxEntries(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[int](time.Hour, WithClock(clock.Now), WithMaxEntries(32))

	for i := 0; i < 2000; i++ {
		c.Set(fmt.Sprintf("junk-%d", i), i)
		clock.Advance(time.Second)
	}
	if got := c.Len(); got > 32 {
		t.Fatalf("Len=%d, expected at most 32", got)
	}
	if v, ok := c.Get("junk-1999"); !ok || v != 1999 {
		t.Fatalf("latest entry=(%d, %v), expected it to survive eviction", v, ok)
	}

	unbounded := New[int](time.Hour, WithClock(clock.Now))
	for i := 0; i < 100; i++ {
		unbounded.Set(fmt.Sprintf("k%d", i), i)
	}
	if got := unbounded.Len(); got != 100 {
		t.Fatalf("Len=%d, expected 100 without a cap", got)
	}
}

func TestEvictPrefersExpiredThenOldest(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := &shard[string]{items: map[string]entry[string]{
		"expired": {value: "x", expiresAt: now.Add(-time.Second)},
		"soon":    {value: "s", expiresAt: now.Add(time.Minute)},
		"later":   {value: "l", expiresAt: now.Add(time.Hour)},
	}}

	s.evict(now, 2)
	if len(s.items) != 1 {
		t.Fatalf("items=%v, expected one left", s.items)
	}
	if _, ok := s.items["later"]; !ok {
		t.Fatalf("items=%v, expected the latest-expiring entry to stay", s.items)
	}
}

func TestJanitor(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[int](time.Minute, WithClock(clock.Now))
	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Janitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Len=%d, expected the janitor to purge expired entries", c.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}
