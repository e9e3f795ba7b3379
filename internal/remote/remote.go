// Package remote defines the authority boundary the synchronizer replays against.
package remote

import (
	"context"
	"fmt"

	"github.com/maintsync/maintsync/internal/syncq"
)

// Authority is the abstract remote capability, one operation per sync action
// kind. Implementations must dedupe by the action's unique id: a replay of an
// already-applied action succeeds without a second effect, which makes the
// lost-confirmation case safe.
type Authority interface {
	CreateAccount(ctx context.Context, act *syncq.CreateAccount) error
	UpdateAccount(ctx context.Context, act *syncq.UpdateAccount) error
	DeleteAccount(ctx context.Context, act *syncq.DeleteAccount) error
	CreateOrder(ctx context.Context, act *syncq.CreateOrder) error
	UpdateOrder(ctx context.Context, act *syncq.UpdateOrder) error
	DeleteOrder(ctx context.Context, act *syncq.DeleteOrder) error
	Transition(ctx context.Context, act *syncq.Transition) error
	ApprovePreventive(ctx context.Context, act *syncq.ApprovePreventive) error
	SubmitCompletionChange(ctx context.Context, act *syncq.SubmitCompletionChange) error
	ResolveCompletionChange(ctx context.Context, act *syncq.ResolveCompletionChange) error
}

// Apply dispatches one queued action to its authority operation. The switch
// is total over the sealed union; an action kind without a case here is a
// bug, not a skippable entry.
func Apply(ctx context.Context, auth Authority, act syncq.Action) error {
	switch a := act.(type) {
	case *syncq.CreateAccount:
		return auth.CreateAccount(ctx, a)
	case *syncq.UpdateAccount:
		return auth.UpdateAccount(ctx, a)
	case *syncq.DeleteAccount:
		return auth.DeleteAccount(ctx, a)
	case *syncq.CreateOrder:
		return auth.CreateOrder(ctx, a)
	case *syncq.UpdateOrder:
		return auth.UpdateOrder(ctx, a)
	case *syncq.DeleteOrder:
		return auth.DeleteOrder(ctx, a)
	case *syncq.Transition:
		return auth.Transition(ctx, a)
	case *syncq.ApprovePreventive:
		return auth.ApprovePreventive(ctx, a)
	case *syncq.SubmitCompletionChange:
		return auth.SubmitCompletionChange(ctx, a)
	case *syncq.ResolveCompletionChange:
		return auth.ResolveCompletionChange(ctx, a)
	default:
		return fmt.Errorf("no authority operation for action %T", act)
	}
}
