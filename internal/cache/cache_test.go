package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_LoadsOnMiss(t *testing.T) {
	var calls int32
	c := New[string, int](10, time.Minute, func(ctx context.Context, key string) (int, error) {
		atomic.AddInt32(&calls, 1)
		return len(key), nil
	})

	v, err := c.Get(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 5 {
		t.Fatalf("want 5, got %d", v)
	}
	if calls != 1 {
		t.Fatalf("want 1 load call, got %d", calls)
	}
}

func TestCache_HitsDontReload(t *testing.T) {
	var calls int32
	c := New[string, int](10, time.Minute, func(ctx context.Context, key string) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	})

	for i := 0; i < 5; i++ {
		if _, err := c.Get(context.Background(), "k"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("want 1 load call across 5 gets, got %d", calls)
	}
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	var calls int32
	c := New[string, int](10, 10*time.Millisecond, func(ctx context.Context, key string) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	})

	if _, err := c.Get(context.Background(), "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := c.Get(context.Background(), "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("want 2 load calls after expiry, got %d", calls)
	}
}

func TestCache_CollapsesConcurrentMisses(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	c := New[string, int](10, time.Minute, func(ctx context.Context, key string) (int, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			close(started)
			<-release
		}
		return 7, nil
	})

	var wg sync.WaitGroup
	results := make([]int, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "same-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[idx] = v
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("want exactly 1 load call for 20 concurrent misses, got %d", calls)
	}
	for i, v := range results {
		if v != 7 {
			t.Fatalf("result[%d] = %d, want 7", i, v)
		}
	}
}

func TestCache_PropagatesLoaderError(t *testing.T) {
	wantErr := errors.New("boom")
	c := New[string, int](10, time.Minute, func(ctx context.Context, key string) (int, error) {
		return 0, wantErr
	})

	_, err := c.Get(context.Background(), "k")
	if !errors.Is(err, wantErr) {
		t.Fatalf("want %v, got %v", wantErr, err)
	}
}

func TestCache_InvalidateForcesReload(t *testing.T) {
	var calls int32
	c := New[string, int](10, time.Minute, func(ctx context.Context, key string) (int, error) {
		atomic.AddInt32(&calls, 1)
		return int(calls), nil
	})

	v1, _ := c.Get(context.Background(), "k")
	c.Invalidate("k")
	v2, _ := c.Get(context.Background(), "k")

	if v1 == v2 {
		t.Fatalf("expected reload after Invalidate, got same value %d twice", v1)
	}
	if calls != 2 {
		t.Fatalf("want 2 load calls, got %d", calls)
	}
}

func TestCache_PutSeedsWithoutLoading(t *testing.T) {
	var calls int32
	c := New[string, int](10, time.Minute, func(ctx context.Context, key string) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, nil
	})

	c.Put("k", 99)
	v, err := c.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 99 {
		t.Fatalf("want 99, got %d", v)
	}
	if calls != 0 {
		t.Fatalf("want 0 load calls after Put, got %d", calls)
	}
}
