// Package netwatch tracks whether the remote authority is reachable.
package netwatch

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Prober reports current connectivity. Implementations must respect ctx.
type Prober func(ctx context.Context) bool

// DialProber probes by opening a TCP connection to addr.
func DialProber(addr string, timeout time.Duration) Prober {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
}

// Watcher holds the online/offline observable and notifies subscribers on
// state edges. It starts offline until the first probe says otherwise.
type Watcher struct {
	mu     sync.Mutex
	online bool
	subs   []chan bool

	probe    Prober
	interval time.Duration
	log      *zap.Logger
}

// New constructs a watcher. Call Start to begin probing, or drive the state
// manually with Set.
func New(probe Prober, interval time.Duration, log *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{probe: probe, interval: interval, log: log}
}

// Start probes immediately and then on every interval tick until ctx ends.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		w.Set(w.probe(ctx))
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Set(w.probe(ctx))
			}
		}
	}()
}

// Online reports the current state.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Set updates the state and, on a change, notifies every subscriber.
// Signals coalesce per subscriber; only the latest state matters.
func (w *Watcher) Set(online bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.online == online {
		return
	}
	w.online = online
	w.log.Info("connectivity changed", zap.Bool("online", online))
	for _, ch := range w.subs {
		select {
		case ch <- online:
		default:
			// subscriber lagging; drain the stale edge and push the new one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- online:
			default:
			}
		}
	}
}

// Subscribe returns a channel receiving the new state on every edge.
func (w *Watcher) Subscribe() <-chan bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan bool, 1)
	w.subs = append(w.subs, ch)
	return ch
}
