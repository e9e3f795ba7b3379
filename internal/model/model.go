// Package model defines domain entities shared by the store, queue and sync layers.
package model

import "time"

// Role classifies an account within the maintenance workflow.
type Role string

// Closed set of account roles.
const (
	RoleRequester  Role = "requester"
	RoleTechnician Role = "technician"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSystem     Role = "system"
)

// Valid reports whether r is a member of the role set.
func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RoleTechnician, RoleManager, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Account is a local copy of a user record. Credentials are stored as an
// Argon2id hash with a per-account salt, never in plaintext.
type Account struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Role           Role   `json:"role"`
	Sector         string `json:"sector"`
	CredentialHash []byte `json:"credential_hash,omitempty"`
	CredentialSalt []byte `json:"credential_salt,omitempty"`
}

// Clone returns an independent deep copy.
func (a Account) Clone() Account {
	out := a
	out.CredentialHash = append([]byte(nil), a.CredentialHash...)
	out.CredentialSalt = append([]byte(nil), a.CredentialSalt...)
	return out
}

// Operability describes whether the affected equipment still runs.
type Operability string

// Equipment operability tri-state.
const (
	Operational          Operability = "operational"
	PartiallyOperational Operability = "partial"
	Inoperative          Operability = "inoperative"
)

// Status is a work order's lifecycle state. The zero value means the order is
// new and has not entered execution; it is a sentinel, not an enum member.
type Status string

// Lifecycle states beyond the zero value.
const (
	StatusNone                      Status = ""
	StatusPendingApproval           Status = "pending_approval"
	StatusInProgress                Status = "in_progress"
	StatusPendingCompletionApproval Status = "pending_completion_approval"
	StatusCompleted                 Status = "completed"
	StatusCanceled                  Status = "canceled"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Priority ranks how urgently a work order should be handled.
type Priority string

// Priority levels.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// MaintenanceType tags the discipline a work order touches.
type MaintenanceType string

// Common maintenance disciplines. The field is open: sites may tag orders
// with values outside this set.
const (
	MaintElectrical MaintenanceType = "electrical"
	MaintMechanical MaintenanceType = "mechanical"
	MaintCivil      MaintenanceType = "civil"
	MaintIT         MaintenanceType = "it"
	MaintOther      MaintenanceType = "other"
)

// Attachment is file metadata attached to a work order. Content is
// session-only: it never reaches durable entity storage. A non-empty Handle
// points at an external blob store object.
type Attachment struct {
	FileName  string `json:"file_name"`
	MediaType string `json:"media_type"`
	Handle    string `json:"handle,omitempty"`
	Content   []byte `json:"-"`
}

// ChecklistItem is one step of a per-discipline maintenance checklist.
type ChecklistItem struct {
	Name string `json:"name"`
	Done bool   `json:"done"`
}

// PendingCompletion records a back-dated completion awaiting manager
// approval. CompletedBy lives here, not on the order, until approval: the
// order's execution fields stay consistent with its status.
type PendingCompletion struct {
	RequestedAt   time.Time `json:"requested_at"`
	Justification string    `json:"justification"`
	CompletedBy   string    `json:"completed_by,omitempty"`
}

// WorkOrder is a maintenance ticket. Requester is a snapshot taken at
// creation, not a live reference: the order must stay stable even if the
// account is later edited or deleted.
type WorkOrder struct {
	ID                string                              `json:"id"`
	Title             string                              `json:"title"`
	Description       string                              `json:"description"`
	Operability       Operability                         `json:"operability"`
	Requester         Account                             `json:"requester"`
	RequesterSector   string                              `json:"requester_sector"`
	Equipment         []string                            `json:"equipment"`
	MaintenanceTypes  []MaintenanceType                   `json:"maintenance_types"`
	Priority          Priority                            `json:"priority,omitempty"`
	FailureAt         time.Time                           `json:"failure_at"`
	Deadline          *time.Time                          `json:"deadline,omitempty"`
	CreatedAt         time.Time                           `json:"created_at"`
	UpdatedAt         time.Time                           `json:"updated_at"`
	Status            Status                              `json:"status,omitempty"`
	AssignedTo        string                              `json:"assigned_to,omitempty"`
	CompletedBy       string                              `json:"completed_by,omitempty"`
	StartedAt         *time.Time                          `json:"started_at,omitempty"`
	CompletedAt       *time.Time                          `json:"completed_at,omitempty"`
	MaintenanceNotes  string                              `json:"maintenance_notes,omitempty"`
	MaterialsUsed     []string                            `json:"materials_used,omitempty"`
	CancelReason      string                              `json:"cancel_reason,omitempty"`
	Attachments       []Attachment                        `json:"attachments,omitempty"`
	Preventive        bool                                `json:"preventive,omitempty"`
	ApprovedBy        string                              `json:"approved_by,omitempty"`
	Checklist         map[MaintenanceType][]ChecklistItem `json:"checklist,omitempty"`
	PendingCompletion *PendingCompletion                  `json:"pending_completion,omitempty"`
}

// TransitionDetails carries the actor names and texts a lifecycle transition
// needs. Which fields are required depends on the target status.
type TransitionDetails struct {
	AssignedTo  string `json:"assigned_to,omitempty"`
	CompletedBy string `json:"completed_by,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Clone returns an independent deep copy. Mutating the result never affects
// the receiver.
func (w WorkOrder) Clone() WorkOrder {
	out := w
	out.Requester = w.Requester.Clone()
	out.Equipment = append([]string(nil), w.Equipment...)
	out.MaintenanceTypes = append([]MaintenanceType(nil), w.MaintenanceTypes...)
	out.MaterialsUsed = append([]string(nil), w.MaterialsUsed...)
	out.Deadline = cloneTime(w.Deadline)
	out.StartedAt = cloneTime(w.StartedAt)
	out.CompletedAt = cloneTime(w.CompletedAt)
	if w.Attachments != nil {
		out.Attachments = make([]Attachment, len(w.Attachments))
		for i, att := range w.Attachments {
			att.Content = append([]byte(nil), att.Content...)
			out.Attachments[i] = att
		}
	}
	if w.Checklist != nil {
		out.Checklist = make(map[MaintenanceType][]ChecklistItem, len(w.Checklist))
		for k, items := range w.Checklist {
			out.Checklist[k] = append([]ChecklistItem(nil), items...)
		}
	}
	if w.PendingCompletion != nil {
		pc := *w.PendingCompletion
		out.PendingCompletion = &pc
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
