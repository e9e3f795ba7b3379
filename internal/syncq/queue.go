package syncq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/maintsync/maintsync/internal/errs"
	"github.com/maintsync/maintsync/internal/storage"
)

// Queue is the ordered durable list of pending sync actions. Append-only on
// enqueue, FIFO removal on confirmed replay, persisted after every mutation.
type Queue struct {
	mu      sync.Mutex
	adapter storage.Adapter
	log     *zap.Logger
	items   []Action
	notify  chan struct{}
}

// New constructs an empty queue over the given adapter. Call Load before use.
func New(adapter storage.Adapter, log *zap.Logger) *Queue {
	return &Queue{
		adapter: adapter,
		log:     log,
		notify:  make(chan struct{}, 1),
	}
}

// Load restores pending actions from durable storage. Missing or corrupt
// data falls back to an empty queue: that is the first-run bootstrap
// contract, and a corrupt blob must not brick the client.
func (q *Queue) Load(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := q.adapter.Load(ctx, storage.KeyQueue)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			q.items = nil
			return nil
		}
		return fmt.Errorf("load queue: %w", err)
	}
	actions, err := UnmarshalActions(data)
	if err != nil {
		q.log.Warn("queue blob corrupt, starting empty", zap.Error(err))
		q.items = nil
		return nil
	}
	q.items = actions
	return nil
}

// Enqueue assigns the action a fresh unique id, appends it, persists the
// full queue and signals the synchronizer. On persistence failure the append
// is rolled back and the error returned.
func (q *Queue) Enqueue(ctx context.Context, a Action) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("generate action id: %w", err)
	}
	a.setID(id)

	q.items = append(q.items, a)
	if err := q.persistLocked(ctx); err != nil {
		q.items = q.items[:len(q.items)-1]
		return fmt.Errorf("enqueue %s: %w", a.ActionKind(), err)
	}

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue removes the action with the given id and persists. Removing an
// absent id is a no-op: replay confirmation may race with a concurrent clear.
func (q *Queue) Dequeue(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, a := range q.items {
		if a.ActionID() == id {
			removed := a
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			if err := q.persistLocked(ctx); err != nil {
				// reinsert at original position to keep memory and intent aligned
				q.items = append(q.items[:i], append([]Action{removed}, q.items[i:]...)...)
				return fmt.Errorf("dequeue: %w", err)
			}
			return nil
		}
	}
	return nil
}

// Snapshot returns the pending actions in enqueue order. The slice is a
// copy; the elements are the live actions, which are never mutated after
// enqueue.
func (q *Queue) Snapshot() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Action(nil), q.items...)
}

// Len reports the number of pending actions (the user-visible pending count).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Notify returns the channel signaled on every enqueue. The channel has a
// buffer of one: signals coalesce, they do not accumulate.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

func (q *Queue) persistLocked(ctx context.Context) error {
	data, err := MarshalActions(q.items)
	if err != nil {
		return err
	}
	return q.adapter.Save(ctx, storage.KeyQueue, data)
}
