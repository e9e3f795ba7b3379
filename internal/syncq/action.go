// Package syncq holds the durable queue of pending sync actions.
package syncq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/maintsync/maintsync/internal/model"
)

// Kind discriminates the action union on the wire.
type Kind string

// One kind per local mutation that must reach the remote authority.
const (
	KindCreateAccount     Kind = "create_account"
	KindUpdateAccount     Kind = "update_account"
	KindDeleteAccount     Kind = "delete_account"
	KindCreateOrder       Kind = "create_order"
	KindUpdateOrder       Kind = "update_order"
	KindDeleteOrder       Kind = "delete_order"
	KindTransition        Kind = "transition"
	KindApprovePrev       Kind = "approve_preventive"
	KindSubmitCompletion  Kind = "submit_completion_change"
	KindResolveCompletion Kind = "resolve_completion_change"
)

// Action is one replayable mutation. Payloads are self-contained: replay
// never consults current local state. The interface is sealed; adding a kind
// means extending the codec and every dispatcher, which the compiler enforces
// through the total type switches.
type Action interface {
	// ActionID is the queue dedup/removal key.
	ActionID() uuid.UUID
	ActionKind() Kind

	setID(uuid.UUID)
}

type base struct {
	ID uuid.UUID `json:"-"`
}

func (b *base) ActionID() uuid.UUID { return b.ID }
func (b *base) setID(id uuid.UUID)  { b.ID = id }

// CreateAccount replays an admin-created account. Carries the full record
// including credential hash material.
type CreateAccount struct {
	base
	Account model.Account `json:"account"`
}

// UpdateAccount replays an in-place account edit as a full post-edit snapshot.
type UpdateAccount struct {
	base
	Account model.Account `json:"account"`
}

// DeleteAccount replays an account removal.
type DeleteAccount struct {
	base
	AccountID int64 `json:"account_id"`
}

// CreateOrder replays a work order creation.
type CreateOrder struct {
	base
	Order model.WorkOrder `json:"order"`
}

// UpdateOrder replays a work order edit as a full post-edit snapshot.
type UpdateOrder struct {
	base
	Order   model.WorkOrder `json:"order"`
	ActorID int64           `json:"actor_id"`
}

// DeleteOrder replays a work order removal.
type DeleteOrder struct {
	base
	OrderID string `json:"order_id"`
	ActorID int64  `json:"actor_id"`
}

// Transition replays a lifecycle status change. EffectiveAt is the timestamp
// the local store stamped (startedAt or completedAt), so replay reproduces
// the exact local side effects.
type Transition struct {
	base
	OrderID     string                  `json:"order_id"`
	NewStatus   model.Status            `json:"new_status"`
	Details     model.TransitionDetails `json:"details"`
	EffectiveAt time.Time               `json:"effective_at"`
}

// ApprovePreventive replays a manager converting a preventive proposal into a
// regular (new) work order.
type ApprovePreventive struct {
	base
	OrderID  string        `json:"order_id"`
	Approver model.Account `json:"approver"`
}

// SubmitCompletionChange replays a back-dated completion request.
type SubmitCompletionChange struct {
	base
	OrderID       string    `json:"order_id"`
	Notes         string    `json:"notes"`
	CompletedBy   string    `json:"completed_by"`
	RequestedAt   time.Time `json:"requested_at"`
	Justification string    `json:"justification"`
}

// ResolveCompletionChange replays the approval or rejection of a pending
// completion-date correction.
type ResolveCompletionChange struct {
	base
	OrderID    string `json:"order_id"`
	Approve    bool   `json:"approve"`
	ResolvedBy string `json:"resolved_by"`
}

// ActionKind implementations keep the union total: a new action type without
// a kind does not compile past the codec below.
func (*CreateAccount) ActionKind() Kind           { return KindCreateAccount }
func (*UpdateAccount) ActionKind() Kind           { return KindUpdateAccount }
func (*DeleteAccount) ActionKind() Kind           { return KindDeleteAccount }
func (*CreateOrder) ActionKind() Kind             { return KindCreateOrder }
func (*UpdateOrder) ActionKind() Kind             { return KindUpdateOrder }
func (*DeleteOrder) ActionKind() Kind             { return KindDeleteOrder }
func (*Transition) ActionKind() Kind              { return KindTransition }
func (*ApprovePreventive) ActionKind() Kind       { return KindApprovePrev }
func (*SubmitCompletionChange) ActionKind() Kind  { return KindSubmitCompletion }
func (*ResolveCompletionChange) ActionKind() Kind { return KindResolveCompletion }

// envelope is the wire form of one queued action.
type envelope struct {
	ID      uuid.UUID       `json:"id"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalActions encodes the queue for the durable blob.
func MarshalActions(actions []Action) ([]byte, error) {
	envs := make([]envelope, 0, len(actions))
	for _, a := range actions {
		payload, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode %s action: %w", a.ActionKind(), err)
		}
		envs = append(envs, envelope{ID: a.ActionID(), Kind: a.ActionKind(), Payload: payload})
	}
	return json.Marshal(envs)
}

// UnmarshalActions decodes the durable blob back into the typed union.
// An unknown kind is a decode error, not a skipped entry: silently dropping
// a queued mutation would lose data.
func UnmarshalActions(data []byte) ([]Action, error) {
	var envs []envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	actions := make([]Action, 0, len(envs))
	for _, env := range envs {
		var a Action
		switch env.Kind {
		case KindCreateAccount:
			a = &CreateAccount{}
		case KindUpdateAccount:
			a = &UpdateAccount{}
		case KindDeleteAccount:
			a = &DeleteAccount{}
		case KindCreateOrder:
			a = &CreateOrder{}
		case KindUpdateOrder:
			a = &UpdateOrder{}
		case KindDeleteOrder:
			a = &DeleteOrder{}
		case KindTransition:
			a = &Transition{}
		case KindApprovePrev:
			a = &ApprovePreventive{}
		case KindSubmitCompletion:
			a = &SubmitCompletionChange{}
		case KindResolveCompletion:
			a = &ResolveCompletionChange{}
		default:
			return nil, fmt.Errorf("decode queue: unknown action kind %q", env.Kind)
		}
		if err := json.Unmarshal(env.Payload, a); err != nil {
			return nil, fmt.Errorf("decode %s action: %w", env.Kind, err)
		}
		a.setID(env.ID)
		actions = append(actions, a)
	}
	return actions, nil
}
