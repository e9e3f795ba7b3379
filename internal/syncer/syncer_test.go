package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/maintsync/maintsync/internal/errs"
	"github.com/maintsync/maintsync/internal/metrics"
	"github.com/maintsync/maintsync/internal/netwatch"
	"github.com/maintsync/maintsync/internal/remote"
	"github.com/maintsync/maintsync/internal/storage"
	"github.com/maintsync/maintsync/internal/syncq"
)

type memAdapter struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemAdapter() *memAdapter { return &memAdapter{blobs: map[string][]byte{}} }

func (m *memAdapter) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return b, nil
}

func (m *memAdapter) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

var _ storage.Adapter = (*memAdapter)(nil)

// stubAuthority funnels every operation through one apply func.
type stubAuthority struct {
	mu      sync.Mutex
	applied []string
	fn      func(act syncq.Action) error
}

var _ remote.Authority = (*stubAuthority)(nil)

func (s *stubAuthority) record(act syncq.Action) error {
	if s.fn != nil {
		if err := s.fn(act); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.applied = append(s.applied, act.ActionID().String())
	s.mu.Unlock()
	return nil
}

func (s *stubAuthority) appliedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.applied...)
}

func (s *stubAuthority) CreateAccount(_ context.Context, a *syncq.CreateAccount) error {
	return s.record(a)
}
func (s *stubAuthority) UpdateAccount(_ context.Context, a *syncq.UpdateAccount) error {
	return s.record(a)
}
func (s *stubAuthority) DeleteAccount(_ context.Context, a *syncq.DeleteAccount) error {
	return s.record(a)
}
func (s *stubAuthority) CreateOrder(_ context.Context, a *syncq.CreateOrder) error {
	return s.record(a)
}
func (s *stubAuthority) UpdateOrder(_ context.Context, a *syncq.UpdateOrder) error {
	return s.record(a)
}
func (s *stubAuthority) DeleteOrder(_ context.Context, a *syncq.DeleteOrder) error {
	return s.record(a)
}
func (s *stubAuthority) Transition(_ context.Context, a *syncq.Transition) error { return s.record(a) }
func (s *stubAuthority) ApprovePreventive(_ context.Context, a *syncq.ApprovePreventive) error {
	return s.record(a)
}
func (s *stubAuthority) SubmitCompletionChange(_ context.Context, a *syncq.SubmitCompletionChange) error {
	return s.record(a)
}
func (s *stubAuthority) ResolveCompletionChange(_ context.Context, a *syncq.ResolveCompletionChange) error {
	return s.record(a)
}

func newTestSyncer(t *testing.T, auth remote.Authority, online bool) (*Synchronizer, *syncq.Queue, *netwatch.Watcher) {
	t.Helper()
	q := syncq.New(newMemAdapter(), zap.NewNop())
	w := netwatch.New(nil, time.Minute, zap.NewNop())
	w.Set(online)
	s := New(q, auth, w, metrics.New(), zap.NewNop(), 10*time.Millisecond)
	return s, q, w
}

func enqueueN(t *testing.T, q *syncq.Queue, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		a := &syncq.DeleteAccount{AccountID: int64(i + 1)}
		if err := q.Enqueue(context.Background(), a); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		ids = append(ids, a.ActionID().String())
	}
	return ids
}

func TestRun_NoopWhileOffline(t *testing.T) {
	t.Parallel()
	auth := &stubAuthority{}
	s, q, _ := newTestSyncer(t, auth, false)
	enqueueN(t, q, 2)

	s.Run(context.Background())

	if len(auth.appliedIDs()) != 0 {
		t.Fatalf("offline run must not touch the authority")
	}
	if q.Len() != 2 {
		t.Fatalf("queue must stay intact offline")
	}
}

func TestRun_DrainsInOrder(t *testing.T) {
	t.Parallel()
	auth := &stubAuthority{}
	s, q, _ := newTestSyncer(t, auth, true)
	ids := enqueueN(t, q, 5)

	s.Run(context.Background())

	got := auth.appliedIDs()
	if len(got) != 5 {
		t.Fatalf("applied=%d, want 5", len(got))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Fatalf("ordering broken at %d", i)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("queue should be drained")
	}
	if s.Status().LastErr != nil {
		t.Fatalf("unexpected last error: %v", s.Status().LastErr)
	}
}

func TestRun_HaltsOnFirstFailure(t *testing.T) {
	t.Parallel()

	failID := ""
	auth := &stubAuthority{}
	auth.fn = func(act syncq.Action) error {
		if act.ActionID().String() == failID {
			return errs.ErrRemoteRejected
		}
		return nil
	}
	s, q, _ := newTestSyncer(t, auth, true)
	ids := enqueueN(t, q, 5)
	failID = ids[2]

	s.Run(context.Background())

	// exactly items 1..k-1 removed, k..N intact in original order
	snap := q.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("remaining=%d, want 3", len(snap))
	}
	for i, a := range snap {
		if a.ActionID().String() != ids[i+2] {
			t.Fatalf("remaining order broken at %d", i)
		}
	}
	if got := auth.appliedIDs(); len(got) != 2 {
		t.Fatalf("applied=%d, want 2", len(got))
	}
	if !errors.Is(s.Status().LastErr, errs.ErrRemoteRejected) {
		t.Fatalf("last error not recorded: %v", s.Status().LastErr)
	}
}

func TestRun_SingleFlight(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	auth := &stubAuthority{}
	auth.fn = func(syncq.Action) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
		return nil
	}
	s, q, _ := newTestSyncer(t, auth, true)
	enqueueN(t, q, 3)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	<-entered

	// re-entrant invocation while a pass is active: must be a no-op
	s.Run(context.Background())

	close(gate)
	<-done

	if got := auth.appliedIDs(); len(got) != 3 {
		t.Fatalf("applied=%d, want 3 (no duplicates, no drops)", len(got))
	}
	if q.Len() != 0 {
		t.Fatalf("queue should be drained once")
	}
}

func TestReplay_TransientErrorRetriedWithinPass(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	failures := 2
	auth := &stubAuthority{}
	auth.fn = func(syncq.Action) error {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return errors.New("connection reset")
		}
		return nil
	}
	s, q, _ := newTestSyncer(t, auth, true)
	enqueueN(t, q, 1)

	s.Run(context.Background())

	if q.Len() != 0 {
		t.Fatalf("a short transient failure should still confirm the action")
	}
}

func TestStart_ReactsToEnqueueAndOnlineEdge(t *testing.T) {
	t.Parallel()

	auth := &stubAuthority{}
	s, q, w := newTestSyncer(t, auth, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	enqueueN(t, q, 1)
	time.Sleep(50 * time.Millisecond)
	if len(auth.appliedIDs()) != 0 {
		t.Fatalf("nothing should replay while offline")
	}

	w.Set(true) // offline→online edge must trigger a pass
	waitFor(t, func() bool { return q.Len() == 0 })

	enqueueN(t, q, 1) // enqueue signal must trigger a pass while online
	waitFor(t, func() bool { return q.Len() == 0 })
}

func TestStart_ReschedulesWhileQueueNonEmpty(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	failing := true
	auth := &stubAuthority{}
	auth.fn = func(syncq.Action) error {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return errs.ErrRemoteRejected
		}
		return nil
	}
	s, q, _ := newTestSyncer(t, auth, true)
	// watcher already online: the enqueue signal starts the first pass
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	enqueueN(t, q, 1)
	time.Sleep(50 * time.Millisecond)
	if q.Len() != 1 {
		t.Fatalf("failing action should stay queued")
	}

	mu.Lock()
	failing = false
	mu.Unlock()
	// no new enqueue, no connectivity edge: only the fixed-delay reschedule
	// can drain the queue now
	waitFor(t, func() bool { return q.Len() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("condition never met")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
