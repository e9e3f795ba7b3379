package netwatch

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWatcher_EdgesOnly(t *testing.T) {
	t.Parallel()

	w := New(nil, time.Minute, zap.NewNop())
	sub := w.Subscribe()

	if w.Online() {
		t.Fatalf("watcher must start offline")
	}

	w.Set(false) // no edge
	select {
	case <-sub:
		t.Fatalf("no notification expected without a state change")
	default:
	}

	w.Set(true)
	select {
	case got := <-sub:
		if !got {
			t.Fatalf("want online edge")
		}
	case <-time.After(time.Second):
		t.Fatalf("missing online edge")
	}
	if !w.Online() {
		t.Fatalf("state not updated")
	}
}

func TestWatcher_LaggingSubscriberSeesLatestState(t *testing.T) {
	t.Parallel()

	w := New(nil, time.Minute, zap.NewNop())
	sub := w.Subscribe()

	w.Set(true)
	w.Set(false) // subscriber never read the first edge

	select {
	case got := <-sub:
		if got {
			t.Fatalf("stale edge delivered; want latest state (offline)")
		}
	case <-time.After(time.Second):
		t.Fatalf("missing edge")
	}
}

func TestWatcher_StartProbes(t *testing.T) {
	t.Parallel()

	probed := make(chan struct{}, 1)
	w := New(func(context.Context) bool {
		select {
		case probed <- struct{}{}:
		default:
		}
		return true
	}, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	select {
	case <-probed:
	case <-time.After(2 * time.Second):
		t.Fatalf("initial probe never ran")
	}
	// initial probe result must land without waiting for a tick
	deadline := time.After(2 * time.Second)
	for !w.Online() {
		select {
		case <-deadline:
			t.Fatalf("online state never set from probe")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
