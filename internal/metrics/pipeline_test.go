package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/picahq/pica-gateway/internal/entities"
)

// fakeTracker records every TrackMany batch handed to it, for asserting the
// runTrackLoop buffer/flush-trigger behavior without a real network call.
type fakeTracker struct {
	mu      sync.Mutex
	batches [][]entities.Metric
}

func (f *fakeTracker) Track(ctx context.Context, m entities.Metric) error {
	return f.TrackMany(ctx, []entities.Metric{m})
}

func (f *fakeTracker) TrackMany(ctx context.Context, ms []entities.Metric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]entities.Metric, len(ms))
	copy(batch, ms)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeTracker) snapshot() [][]entities.Metric {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]entities.Metric, len(f.batches))
	copy(out, f.batches)
	return out
}

func newRateLimitedMetric() entities.Metric {
	ea := entities.EventAccess{Platform: "slack", Ownership: entities.Ownership{Id: "ea1", ClientId: "client1"}}
	return entities.NewRateLimitedMetric(&ea, "conn-key")
}

func TestRunTrackLoop_FlushesOnFullBuffer(t *testing.T) {
	ft := &fakeTracker{}
	p := New(nil, 10, 1, "", ft, 3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { defer close(done); _ = p.runTrackLoop(ctx) }()

	for i := 0; i < 3; i++ {
		p.trackCh <- newRateLimitedMetric()
	}

	deadline := time.After(2 * time.Second)
	for {
		if len(ft.snapshot()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected one batch flushed on full buffer, got %v", ft.snapshot())
		case <-time.After(10 * time.Millisecond):
		}
	}
	if got := ft.snapshot()[0]; len(got) != 3 {
		t.Fatalf("want batch of 3, got %d", len(got))
	}
}

func TestRunTrackLoop_FlushesOnIdleTimeout(t *testing.T) {
	ft := &fakeTracker{}
	p := New(nil, 10, 1, "", ft, 100, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { defer close(done); _ = p.runTrackLoop(ctx) }()

	p.trackCh <- newRateLimitedMetric()

	deadline := time.After(2 * time.Second)
	for {
		if len(ft.snapshot()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected one batch flushed on idle timeout, got %v", ft.snapshot())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRunTrackLoop_FlushesRemainderOnTrackChClose(t *testing.T) {
	ft := &fakeTracker{}
	p := New(nil, 10, 1, "", ft, 100, time.Hour)

	done := make(chan struct{})
	go func() { defer close(done); _ = p.runTrackLoop(context.Background()) }()

	p.trackCh <- newRateLimitedMetric()
	p.trackCh <- newRateLimitedMetric()
	close(p.trackCh)
	<-done

	batches := ft.snapshot()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("want one shutdown batch of 2, got %v", batches)
	}
}

func TestBuildUpdate_IncludesAllSixCounters(t *testing.T) {
	conn := entities.Connection{
		Platform:  "slack",
		Ownership: entities.Ownership{Id: "ea1", ClientId: "client1"},
	}
	date := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	m := entities.Metric{Kind: entities.MetricPassthrough, Connection: &conn, Date: date}

	update := BuildUpdate(m)
	inc, ok := update["$inc"].(bson.M)
	if !ok {
		t.Fatalf("$inc not a bson.M: %#v", update["$inc"])
	}

	want := []string{
		"passthrough.total",
		"passthrough.platforms.slack.total",
		"passthrough.daily.2026-03-15",
		"passthrough.platforms.slack.daily.2026-03-15",
		"passthrough.monthly.2026-03",
		"passthrough.platforms.slack.monthly.2026-03",
	}
	if len(inc) != len(want) {
		t.Fatalf("want %d inc paths, got %d: %v", len(want), len(inc), inc)
	}
	for _, k := range want {
		if v, ok := inc[k]; !ok || v != 1 {
			t.Errorf("missing or wrong inc path %q: %v", k, v)
		}
	}

	setOnInsert, ok := update["$setOnInsert"].(bson.M)
	if !ok {
		t.Fatalf("$setOnInsert not a bson.M: %#v", update["$setOnInsert"])
	}
	if setOnInsert[createdAtKey] != date.UnixMilli() {
		t.Errorf("want createdAt %d, got %v", date.UnixMilli(), setOnInsert[createdAtKey])
	}
}

func TestBuildUpdate_RateLimitedUsesEventAccessPlatform(t *testing.T) {
	ea := entities.EventAccess{Platform: "github", Ownership: entities.Ownership{Id: "ea1", ClientId: "client1"}}
	m := entities.NewRateLimitedMetric(&ea, "conn-key")

	update := BuildUpdate(m)
	inc := update["$inc"].(bson.M)
	if _, ok := inc["rateLimited.platforms.github.total"]; !ok {
		t.Errorf("expected rateLimited.platforms.github.total in %v", inc)
	}
}
