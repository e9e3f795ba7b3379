// Package memauth is an in-memory authority used by tests and the offline demo.
package memauth

import (
	"context"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/maintsync/maintsync/internal/model"
	"github.com/maintsync/maintsync/internal/remote"
	"github.com/maintsync/maintsync/internal/syncq"
)

// Authority applies actions to in-memory maps and dedupes by action id, the
// same contract a real backend is expected to honor.
type Authority struct {
	mu       sync.Mutex
	accounts map[int64]model.Account
	orders   map[string]model.WorkOrder
	applied  map[uuid.UUID]bool

	// Fail, when non-nil, is returned for every action whose kind is
	// FailKind. Used to exercise the synchronizer's stop-on-failure path.
	Fail     error
	FailKind syncq.Kind

	appliedOrder []uuid.UUID
}

var _ remote.Authority = (*Authority)(nil)

// New returns an empty in-memory authority.
func New() *Authority {
	return &Authority{
		accounts: map[int64]model.Account{},
		orders:   map[string]model.WorkOrder{},
		applied:  map[uuid.UUID]bool{},
	}
}

// AppliedIDs returns the action ids applied so far, in arrival order.
// Deduped replays are not repeated.
func (m *Authority) AppliedIDs() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.appliedOrder...)
}

// Account returns the authority's copy of an account.
func (m *Authority) Account(id int64) (model.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	return a, ok
}

// Order returns the authority's copy of a work order.
func (m *Authority) Order(id string) (model.WorkOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	return o, ok
}

// begin handles failure injection and id dedup. The returned commit func is
// nil when the action was already applied.
func (m *Authority) begin(act syncq.Action) (func(func()), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil && act.ActionKind() == m.FailKind {
		return nil, m.Fail
	}
	if m.applied[act.ActionID()] {
		return nil, nil
	}
	return func(apply func()) {
		m.mu.Lock()
		defer m.mu.Unlock()
		apply()
		m.applied[act.ActionID()] = true
		m.appliedOrder = append(m.appliedOrder, act.ActionID())
	}, nil
}

func (m *Authority) CreateAccount(_ context.Context, act *syncq.CreateAccount) error {
	commit, err := m.begin(act)
	if commit == nil {
		return err
	}
	commit(func() { m.accounts[act.Account.ID] = act.Account.Clone() })
	return nil
}

func (m *Authority) UpdateAccount(_ context.Context, act *syncq.UpdateAccount) error {
	commit, err := m.begin(act)
	if commit == nil {
		return err
	}
	commit(func() { m.accounts[act.Account.ID] = act.Account.Clone() })
	return nil
}

func (m *Authority) DeleteAccount(_ context.Context, act *syncq.DeleteAccount) error {
	commit, err := m.begin(act)
	if commit == nil {
		return err
	}
	commit(func() { delete(m.accounts, act.AccountID) })
	return nil
}

func (m *Authority) CreateOrder(_ context.Context, act *syncq.CreateOrder) error {
	commit, err := m.begin(act)
	if commit == nil {
		return err
	}
	commit(func() { m.orders[act.Order.ID] = act.Order.Clone() })
	return nil
}

func (m *Authority) UpdateOrder(_ context.Context, act *syncq.UpdateOrder) error {
	commit, err := m.begin(act)
	if commit == nil {
		return err
	}
	commit(func() { m.orders[act.Order.ID] = act.Order.Clone() })
	return nil
}

func (m *Authority) DeleteOrder(_ context.Context, act *syncq.DeleteOrder) error {
	commit, err := m.begin(act)
	if commit == nil {
		return err
	}
	commit(func() { delete(m.orders, act.OrderID) })
	return nil
}

func (m *Authority) Transition(_ context.Context, act *syncq.Transition) error {
	commit, err := m.begin(act)
	if commit == nil {
		return err
	}
	commit(func() {
		o, ok := m.orders[act.OrderID]
		if !ok {
			return
		}
		o.Status = act.NewStatus
		switch act.NewStatus {
		case model.StatusInProgress:
			o.AssignedTo = act.Details.AssignedTo
			at := act.EffectiveAt
			o.StartedAt = &at
		case model.StatusCompleted:
			o.CompletedBy = act.Details.CompletedBy
			o.MaintenanceNotes = act.Details.Notes
			at := act.EffectiveAt
			o.CompletedAt = &at
		case model.StatusCanceled:
			o.CancelReason = act.Details.Reason
		}
		m.orders[act.OrderID] = o
	})
	return nil
}

func (m *Authority) ApprovePreventive(_ context.Context, act *syncq.ApprovePreventive) error {
	commit, err := m.begin(act)
	if commit == nil {
		return err
	}
	commit(func() {
		o, ok := m.orders[act.OrderID]
		if !ok {
			return
		}
		o.Status = model.StatusNone
		o.Preventive = false
		o.ApprovedBy = act.Approver.Name
		o.Requester = act.Approver.Clone()
		m.orders[act.OrderID] = o
	})
	return nil
}

func (m *Authority) SubmitCompletionChange(_ context.Context, act *syncq.SubmitCompletionChange) error {
	commit, err := m.begin(act)
	if commit == nil {
		return err
	}
	commit(func() {
		o, ok := m.orders[act.OrderID]
		if !ok {
			return
		}
		o.Status = model.StatusPendingCompletionApproval
		o.MaintenanceNotes = act.Notes
		o.PendingCompletion = &model.PendingCompletion{
			RequestedAt:   act.RequestedAt,
			Justification: act.Justification,
			CompletedBy:   act.CompletedBy,
		}
		m.orders[act.OrderID] = o
	})
	return nil
}

func (m *Authority) ResolveCompletionChange(_ context.Context, act *syncq.ResolveCompletionChange) error {
	commit, err := m.begin(act)
	if commit == nil {
		return err
	}
	commit(func() {
		o, ok := m.orders[act.OrderID]
		if !ok || o.PendingCompletion == nil {
			return
		}
		if act.Approve {
			at := o.PendingCompletion.RequestedAt
			o.CompletedAt = &at
			o.CompletedBy = o.PendingCompletion.CompletedBy
			o.Status = model.StatusCompleted
		} else {
			o.Status = model.StatusInProgress
		}
		o.PendingCompletion = nil
		m.orders[act.OrderID] = o
	})
	return nil
}
