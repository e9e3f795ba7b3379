package store

import (
	"fmt"
	"time"

	"github.com/maintsync/maintsync/internal/errs"
	"github.com/maintsync/maintsync/internal/model"
)

// The lifecycle state machine. Every function here validates completely
// before touching a field: a rejected transition leaves the order
// byte-identical to before the call. Callers pass a clone and swap it into
// the store only on success.

// applyTransition handles the plain status transitions:
//
//	(new) → IN_PROGRESS            assignee required, stamps startedAt
//	IN_PROGRESS → COMPLETED        notes and completer required, stamps completedAt
//	(new)|PENDING_APPROVAL|IN_PROGRESS → CANCELED   reason required
//
// The approval flows (preventive, completion change) have their own entry
// points below; reaching their states through here is an invalid transition.
func applyTransition(o *model.WorkOrder, newStatus model.Status, d model.TransitionDetails, now time.Time) error {
	switch {
	case o.Status == model.StatusNone && newStatus == model.StatusInProgress:
		if d.AssignedTo == "" {
			return fmt.Errorf("%w: assignee required to start work", errs.ErrValidation)
		}
		o.AssignedTo = d.AssignedTo
		t := now
		o.StartedAt = &t

	case o.Status == model.StatusInProgress && newStatus == model.StatusCompleted:
		if d.Notes == "" {
			return fmt.Errorf("%w: maintenance notes required to complete", errs.ErrValidation)
		}
		if d.CompletedBy == "" {
			return fmt.Errorf("%w: completer name required to complete", errs.ErrValidation)
		}
		o.MaintenanceNotes = d.Notes
		o.CompletedBy = d.CompletedBy
		t := now
		o.CompletedAt = &t

	case newStatus == model.StatusCanceled &&
		(o.Status == model.StatusNone || o.Status == model.StatusPendingApproval || o.Status == model.StatusInProgress):
		if d.Reason == "" {
			return fmt.Errorf("%w: cancellation reason required", errs.ErrValidation)
		}
		o.CancelReason = d.Reason

	default:
		return fmt.Errorf("%w: %s to %s", errs.ErrInvalidTransition, statusLabel(o.Status), statusLabel(newStatus))
	}

	o.Status = newStatus
	o.UpdatedAt = now
	return nil
}

// approvePreventive converts a preventive proposal into a regular new order.
// The requester is overwritten with the approver: from here on the order
// belongs to whoever accepted it.
func approvePreventive(o *model.WorkOrder, approver model.Account, now time.Time) error {
	if o.Status != model.StatusPendingApproval {
		return fmt.Errorf("%w: %s to %s", errs.ErrInvalidTransition, statusLabel(o.Status), statusLabel(model.StatusNone))
	}
	if approver.Name == "" {
		return fmt.Errorf("%w: approver name required", errs.ErrValidation)
	}
	o.Status = model.StatusNone
	o.Preventive = false
	o.ApprovedBy = approver.Name
	o.Requester = approver.Clone()
	o.RequesterSector = approver.Sector
	o.UpdatedAt = now
	return nil
}

// submitCompletionChange parks an in-progress order until a manager rules on
// a back-dated completion timestamp. completedAt is not set yet; the
// completer rides in the pending sub-record.
func submitCompletionChange(o *model.WorkOrder, notes, completedBy string, requestedAt time.Time, justification string, now time.Time) error {
	if o.Status != model.StatusInProgress {
		return fmt.Errorf("%w: %s to %s", errs.ErrInvalidTransition, statusLabel(o.Status), statusLabel(model.StatusPendingCompletionApproval))
	}
	if notes == "" || completedBy == "" {
		return fmt.Errorf("%w: notes and completer name required", errs.ErrValidation)
	}
	if requestedAt.IsZero() {
		return fmt.Errorf("%w: requested completion timestamp required", errs.ErrValidation)
	}
	if justification == "" {
		return fmt.Errorf("%w: justification required for a completion-date change", errs.ErrValidation)
	}
	o.Status = model.StatusPendingCompletionApproval
	o.MaintenanceNotes = notes
	o.PendingCompletion = &model.PendingCompletion{
		RequestedAt:   requestedAt,
		Justification: justification,
		CompletedBy:   completedBy,
	}
	o.UpdatedAt = now
	return nil
}

// resolveCompletionChange closes the completion-change approval. On
// approval the requested timestamp becomes completedAt; on rejection the
// order returns to in-progress and the notes gain an annotation, never
// losing the original text.
func resolveCompletionChange(o *model.WorkOrder, approve bool, resolvedBy string, now time.Time) error {
	if o.Status != model.StatusPendingCompletionApproval || o.PendingCompletion == nil {
		return fmt.Errorf("%w: no completion change pending", errs.ErrInvalidTransition)
	}
	if resolvedBy == "" {
		return fmt.Errorf("%w: resolver name required", errs.ErrValidation)
	}
	pc := o.PendingCompletion
	if approve {
		t := pc.RequestedAt
		o.CompletedAt = &t
		o.CompletedBy = pc.CompletedBy
		o.Status = model.StatusCompleted
	} else {
		o.Status = model.StatusInProgress
		o.MaintenanceNotes = fmt.Sprintf("%s\n[completion date change rejected by %s on %s]",
			o.MaintenanceNotes, resolvedBy, now.Format("02/01/2006"))
	}
	o.PendingCompletion = nil
	o.UpdatedAt = now
	return nil
}

func statusLabel(s model.Status) string {
	if s == model.StatusNone {
		return "new"
	}
	return string(s)
}
