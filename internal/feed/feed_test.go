package feed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatchDeliversInitialAndPublished(t *testing.T) {
	hub := NewHub()
	var runs atomic.Int32

	sub := hub.Watch(func(ctx context.Context) { runs.Add(1) }, "tasks:b1")
	defer sub.Close()

	waitFor(t, func() bool { return runs.Load() == 1 })

	hub.Publish("tasks:b1")
	waitFor(t, func() bool { return runs.Load() == 2 })

	hub.Publish("tasks:other")
	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Errorf("unrelated topic triggered delivery: runs = %d", got)
	}
}

func TestPublishCoalescesWhileBusy(t *testing.T) {
	hub := NewHub()
	release := make(chan struct{})
	var runs atomic.Int32

	sub := hub.Watch(func(ctx context.Context) {
		if runs.Add(1) == 1 {
			<-release
		}
	}, "t")
	defer sub.Close()

	waitFor(t, func() bool { return runs.Load() == 1 })
	for i := 0; i < 10; i++ {
		hub.Publish("t")
	}
	close(release)

	waitFor(t, func() bool { return runs.Load() == 2 })
	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Errorf("expected bursts to coalesce into one run, got %d runs", got)
	}
}

func TestCloseIsIdempotentAndStopsDelivery(t *testing.T) {
	hub := NewHub()
	var runs atomic.Int32

	sub := hub.Watch(func(ctx context.Context) { runs.Add(1) }, "t")
	waitFor(t, func() bool { return runs.Load() == 1 })

	sub.Close()
	sub.Close()

	if n := hub.Subscribers("t"); n != 0 {
		t.Fatalf("subscription still registered: %d", n)
	}
	select {
	case <-sub.Done():
	default:
		t.Fatal("Done not closed after Close")
	}

	hub.Publish("t")
	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Errorf("delivery after Close: runs = %d", got)
	}
}

func TestCloseWaitsForInFlightCallback(t *testing.T) {
	hub := NewHub()
	started := make(chan struct{})
	var finished atomic.Bool

	sub := hub.Watch(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	}, "t")

	<-started
	sub.Close()
	if !finished.Load() {
		t.Error("Close returned before the callback finished")
	}
}
