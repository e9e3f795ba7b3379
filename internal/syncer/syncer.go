// Package syncer drains the pending-action queue against the remote authority.
package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/maintsync/maintsync/internal/errs"
	"github.com/maintsync/maintsync/internal/metrics"
	"github.com/maintsync/maintsync/internal/netwatch"
	"github.com/maintsync/maintsync/internal/remote"
	"github.com/maintsync/maintsync/internal/syncq"
)

// Synchronizer replays queued actions strictly in enqueue order. It is
// single-flight: a Run while another pass is active is a no-op. A failed
// replay halts the pass and leaves the remainder queued; ordering is never
// traded for progress, so a stuck head blocks everything behind it.
type Synchronizer struct {
	queue   *syncq.Queue
	auth    remote.Authority
	watcher *netwatch.Watcher
	met     *metrics.Metrics
	log     *zap.Logger

	// interval is the fixed reschedule delay while the queue stays non-empty.
	interval time.Duration

	running atomic.Bool

	mu       sync.Mutex
	lastErr  error
	lastPass time.Time
}

// Status is a point-in-time view for the pending-count indicator.
type Status struct {
	Pending  int
	Running  bool
	Online   bool
	LastPass time.Time
	LastErr  error
}

// New constructs a synchronizer. interval <= 0 defaults to 30s.
func New(queue *syncq.Queue, auth remote.Authority, watcher *netwatch.Watcher, met *metrics.Metrics, log *zap.Logger, interval time.Duration) *Synchronizer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Synchronizer{
		queue:    queue,
		auth:     auth,
		watcher:  watcher,
		met:      met,
		log:      log,
		interval: interval,
	}
}

// Run performs one replay pass. It is a no-op when offline, when a pass is
// already active, or when the queue is empty.
func (s *Synchronizer) Run(ctx context.Context) {
	if !s.watcher.Online() {
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer s.running.Store(false)

	snapshot := s.queue.Snapshot()
	if len(snapshot) == 0 {
		return
	}

	start := time.Now()
	s.log.Info("sync pass started", zap.Int("pending", len(snapshot)))

	for _, act := range snapshot {
		if err := s.replay(ctx, act); err != nil {
			// a later action must never be confirmed before an earlier one
			s.met.ReplayFailed.Inc()
			s.setLastErr(err)
			s.log.Warn("replay failed, pass halted",
				zap.String("kind", string(act.ActionKind())),
				zap.String("action_id", act.ActionID().String()),
				zap.Error(err),
			)
			break
		}
		if err := s.queue.Dequeue(ctx, act.ActionID()); err != nil {
			s.setLastErr(err)
			s.log.Error("confirmed action could not be removed", zap.Error(err))
			break
		}
		s.met.Replayed.Inc()
		s.setLastErr(nil)
	}

	s.met.PassDuration.Observe(time.Since(start).Seconds())
	s.met.QueueDepth.Set(float64(s.queue.Len()))
	s.mu.Lock()
	s.lastPass = time.Now()
	s.mu.Unlock()
}

// replay sends one action, absorbing short transient hiccups with a constant
// quick retry. A rejection or auth failure is final for the pass: repeating
// it immediately cannot succeed.
func (s *Synchronizer) replay(ctx context.Context, act syncq.Action) error {
	backoff := retry.WithMaxRetries(2, retry.NewConstant(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := remote.Apply(ctx, s.auth, act)
		if err == nil {
			return nil
		}
		if errors.Is(err, errs.ErrRemoteRejected) || errors.Is(err, errs.ErrUnauthorized) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// Start launches the background loop: it reacts to enqueue signals and
// offline→online edges, and while the queue stays non-empty it reschedules
// a pass after the fixed delay.
func (s *Synchronizer) Start(ctx context.Context) {
	go func() {
		online := s.watcher.Subscribe()

		timer := time.NewTimer(s.interval)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.queue.Notify():
			case state := <-online:
				if !state {
					continue
				}
			case <-timer.C:
			}

			s.Run(ctx)

			if s.queue.Len() > 0 {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.interval)
			}
		}
	}()
}

// Status reports queue depth and last pass outcome.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Pending:  s.queue.Len(),
		Running:  s.running.Load(),
		Online:   s.watcher.Online(),
		LastPass: s.lastPass,
		LastErr:  s.lastErr,
	}
}

func (s *Synchronizer) setLastErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
