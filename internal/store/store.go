// Package store holds the in-memory authoritative copy of accounts and work
// orders and applies every local mutation optimistically.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maintsync/maintsync/internal/crypto"
	"github.com/maintsync/maintsync/internal/errs"
	"github.com/maintsync/maintsync/internal/model"
	"github.com/maintsync/maintsync/internal/storage"
	"github.com/maintsync/maintsync/internal/syncq"
)

// Store owns the accounts and work-orders blobs. All mutations are
// synchronous: the caller observes the new state before any network
// activity. Each mutation persists the affected blob and appends a sync
// action in the same logical step; if either fails the whole operation
// fails and memory is rolled back, so memory, durable state and queue never
// silently diverge.
type Store struct {
	mu      sync.Mutex
	adapter storage.Adapter
	queue   *syncq.Queue
	log     *zap.Logger
	now     func() time.Time

	accounts []model.Account
	orders   []model.WorkOrder
}

// Option customizes construction.
type Option func(*Store)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New constructs a store. Call Load before use.
func New(adapter storage.Adapter, queue *syncq.Queue, log *zap.Logger, opts ...Option) *Store {
	s := &Store{
		adapter: adapter,
		queue:   queue,
		log:     log,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load restores both entity blobs. Missing or corrupt data falls back to
// the seed state (accounts) or an empty list (orders) instead of failing:
// first run and a damaged blob look the same to the caller.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := loadBlob[model.Account](ctx, s.adapter, storage.KeyAccounts, s.log)
	if err != nil {
		return err
	}
	if accounts == nil {
		accounts = SeedAccounts()
	}
	s.accounts = accounts

	orders, err := loadBlob[model.WorkOrder](ctx, s.adapter, storage.KeyOrders, s.log)
	if err != nil {
		return err
	}
	s.orders = orders
	return nil
}

// loadBlob returns nil (no error) for the bootstrap cases so the caller can
// substitute its seed.
func loadBlob[T any](ctx context.Context, adapter storage.Adapter, key string, log *zap.Logger) ([]T, error) {
	data, err := adapter.Load(ctx, key)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		log.Warn("blob corrupt, falling back to seed state", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return out, nil
}

// ---- accounts ----

// CreateAccountParams is the admin-facing creation input. Credential is
// optional plaintext; it is hashed before entering the store.
type CreateAccountParams struct {
	Name       string
	Role       model.Role
	Sector     string
	Credential string
}

// AccountUpdate is a partial edit; nil fields are untouched. An absent
// credential means no authentication change.
type AccountUpdate struct {
	Name       *string
	Sector     *string
	Role       *model.Role
	Credential *string
}

// CreateAccount validates, assigns the next numeric id and commits.
func (s *Store) CreateAccount(ctx context.Context, p CreateAccountParams) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Name == "" {
		return model.Account{}, fmt.Errorf("%w: empty account name", errs.ErrValidation)
	}
	if !p.Role.Valid() {
		return model.Account{}, fmt.Errorf("%w: unknown role %q", errs.ErrValidation, p.Role)
	}

	acc := model.Account{
		ID:     s.nextAccountIDLocked(),
		Name:   p.Name,
		Role:   p.Role,
		Sector: p.Sector,
	}
	if p.Credential != "" {
		if err := setCredential(&acc, p.Credential); err != nil {
			return model.Account{}, err
		}
	}

	next := append(cloneAccounts(s.accounts), acc)
	if err := s.commitAccountsLocked(ctx, next, &syncq.CreateAccount{Account: acc.Clone()}); err != nil {
		return model.Account{}, err
	}
	return acc.Clone(), nil
}

// UpdateAccount applies a partial edit in place.
func (s *Store) UpdateAccount(ctx context.Context, id int64, upd AccountUpdate) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.accountIndexLocked(id)
	if idx < 0 {
		return model.Account{}, fmt.Errorf("account %d: %w", id, errs.ErrNotFound)
	}

	next := cloneAccounts(s.accounts)
	acc := &next[idx]
	if upd.Name != nil {
		if *upd.Name == "" {
			return model.Account{}, fmt.Errorf("%w: empty account name", errs.ErrValidation)
		}
		acc.Name = *upd.Name
	}
	if upd.Sector != nil {
		acc.Sector = *upd.Sector
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return model.Account{}, fmt.Errorf("%w: unknown role %q", errs.ErrValidation, *upd.Role)
		}
		acc.Role = *upd.Role
	}
	if upd.Credential != nil && *upd.Credential != "" {
		if err := setCredential(acc, *upd.Credential); err != nil {
			return model.Account{}, err
		}
	}

	if err := s.commitAccountsLocked(ctx, next, &syncq.UpdateAccount{Account: acc.Clone()}); err != nil {
		return model.Account{}, err
	}
	return acc.Clone(), nil
}

// DeleteAccount removes the account. Work orders keep their requester
// snapshots; there is no cascade.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.accountIndexLocked(id)
	if idx < 0 {
		return fmt.Errorf("account %d: %w", id, errs.ErrNotFound)
	}
	next := cloneAccounts(s.accounts)
	next = append(next[:idx], next[idx+1:]...)
	return s.commitAccountsLocked(ctx, next, &syncq.DeleteAccount{AccountID: id})
}

// ListAccounts returns independent copies, ordered by id.
func (s *Store) ListAccounts() []model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := cloneAccounts(s.accounts)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetAccount returns an independent copy.
func (s *Store) GetAccount(id int64) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.accountIndexLocked(id)
	if idx < 0 {
		return model.Account{}, fmt.Errorf("account %d: %w", id, errs.ErrNotFound)
	}
	return s.accounts[idx].Clone(), nil
}

func setCredential(acc *model.Account, credential string) error {
	salt, err := crypto.RandBytes(crypto.SaltLen)
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	acc.CredentialSalt = salt
	acc.CredentialHash = crypto.HashCredential([]byte(credential), salt)
	return nil
}

func (s *Store) accountIndexLocked(id int64) int {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) nextAccountIDLocked() int64 {
	var max int64
	for i := range s.accounts {
		if s.accounts[i].ID > max {
			max = s.accounts[i].ID
		}
	}
	return max + 1
}

// ---- work orders ----

// CreateOrderParams is the creation input. The requester account is looked
// up and embedded as a snapshot.
type CreateOrderParams struct {
	Title            string
	Description      string
	Operability      model.Operability
	RequesterID      int64
	RequesterSector  string
	Equipment        []string
	MaintenanceTypes []model.MaintenanceType
	Priority         model.Priority
	FailureAt        time.Time
	Deadline         *time.Time
	Attachments      []model.Attachment
	Preventive       bool
	Checklist        map[model.MaintenanceType][]model.ChecklistItem
}

// OrderUpdate is a partial work-order edit; nil fields are untouched.
type OrderUpdate struct {
	Title            *string
	Description      *string
	Operability      *model.Operability
	Equipment        *[]string
	MaintenanceTypes *[]model.MaintenanceType
	Priority         *model.Priority
	FailureAt        *time.Time
	Deadline         *time.Time
	MaterialsUsed    *[]string
	MaintenanceNotes *string
	Attachments      *[]model.Attachment
	Checklist        *map[model.MaintenanceType][]model.ChecklistItem
}

// CreateWorkOrder builds the order with a daily-sequence id and commits.
// Preventive proposals start in pending approval; everything else starts
// with no status at all.
func (s *Store) CreateWorkOrder(ctx context.Context, p CreateOrderParams) (model.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Description == "" {
		return model.WorkOrder{}, fmt.Errorf("%w: empty description", errs.ErrValidation)
	}
	if len(p.Equipment) == 0 {
		return model.WorkOrder{}, fmt.Errorf("%w: at least one equipment name required", errs.ErrValidation)
	}
	switch p.Operability {
	case model.Operational, model.PartiallyOperational, model.Inoperative:
	default:
		return model.WorkOrder{}, fmt.Errorf("%w: unknown operability %q", errs.ErrValidation, p.Operability)
	}
	reqIdx := s.accountIndexLocked(p.RequesterID)
	if reqIdx < 0 {
		return model.WorkOrder{}, fmt.Errorf("requester %d: %w", p.RequesterID, errs.ErrNotFound)
	}
	requester := s.accounts[reqIdx].Clone()

	now := s.now()
	failureAt := p.FailureAt
	if failureAt.IsZero() {
		failureAt = now
	}
	sector := p.RequesterSector
	if sector == "" {
		sector = requester.Sector
	}
	status := model.StatusNone
	if p.Preventive {
		status = model.StatusPendingApproval
	}

	order := model.WorkOrder{
		ID:               s.nextOrderIDLocked(now),
		Title:            p.Title,
		Description:      p.Description,
		Operability:      p.Operability,
		Requester:        requester,
		RequesterSector:  sector,
		Equipment:        append([]string(nil), p.Equipment...),
		MaintenanceTypes: append([]model.MaintenanceType(nil), p.MaintenanceTypes...),
		Priority:         p.Priority,
		FailureAt:        failureAt,
		Deadline:         p.Deadline,
		CreatedAt:        now,
		UpdatedAt:        now,
		Status:           status,
		Preventive:       p.Preventive,
	}
	if len(p.Attachments) > 0 {
		order.Attachments = make([]model.Attachment, len(p.Attachments))
		copy(order.Attachments, p.Attachments)
	}
	if len(p.Checklist) > 0 {
		order.Checklist = make(map[model.MaintenanceType][]model.ChecklistItem, len(p.Checklist))
		for k, items := range p.Checklist {
			order.Checklist[k] = append([]model.ChecklistItem(nil), items...)
		}
	}

	next := append(cloneOrders(s.orders), order)
	if err := s.commitOrdersLocked(ctx, next, &syncq.CreateOrder{Order: order.Clone()}); err != nil {
		return model.WorkOrder{}, err
	}
	return order.Clone(), nil
}

// UpdateWorkOrder applies a partial edit under the state and identity guards.
func (s *Store) UpdateWorkOrder(ctx context.Context, id string, upd OrderUpdate, actorID int64) (model.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.orderIndexLocked(id)
	if idx < 0 {
		return model.WorkOrder{}, fmt.Errorf("work order %s: %w", id, errs.ErrNotFound)
	}
	if err := s.guardMutableLocked(&s.orders[idx], actorID, true); err != nil {
		return model.WorkOrder{}, err
	}

	next := cloneOrders(s.orders)
	o := &next[idx]
	if upd.Title != nil {
		o.Title = *upd.Title
	}
	if upd.Description != nil {
		if *upd.Description == "" {
			return model.WorkOrder{}, fmt.Errorf("%w: empty description", errs.ErrValidation)
		}
		o.Description = *upd.Description
	}
	if upd.Operability != nil {
		o.Operability = *upd.Operability
	}
	if upd.Equipment != nil {
		if len(*upd.Equipment) == 0 {
			return model.WorkOrder{}, fmt.Errorf("%w: at least one equipment name required", errs.ErrValidation)
		}
		o.Equipment = append([]string(nil), *upd.Equipment...)
	}
	if upd.MaintenanceTypes != nil {
		o.MaintenanceTypes = append([]model.MaintenanceType(nil), *upd.MaintenanceTypes...)
	}
	if upd.Priority != nil {
		o.Priority = *upd.Priority
	}
	if upd.FailureAt != nil {
		o.FailureAt = *upd.FailureAt
	}
	if upd.Deadline != nil {
		o.Deadline = cloneTimePtr(upd.Deadline)
	}
	if upd.MaterialsUsed != nil {
		o.MaterialsUsed = append([]string(nil), *upd.MaterialsUsed...)
	}
	if upd.MaintenanceNotes != nil {
		o.MaintenanceNotes = *upd.MaintenanceNotes
	}
	if upd.Attachments != nil {
		o.Attachments = append([]model.Attachment(nil), *upd.Attachments...)
	}
	if upd.Checklist != nil {
		o.Checklist = make(map[model.MaintenanceType][]model.ChecklistItem, len(*upd.Checklist))
		for k, items := range *upd.Checklist {
			o.Checklist[k] = append([]model.ChecklistItem(nil), items...)
		}
	}
	o.UpdatedAt = s.now()

	if err := s.commitOrdersLocked(ctx, next, &syncq.UpdateOrder{Order: o.Clone(), ActorID: actorID}); err != nil {
		return model.WorkOrder{}, err
	}
	return o.Clone(), nil
}

// DeleteWorkOrder removes the order under the state and identity guards.
// Unlike edits, deletion is not permitted while work is in progress.
func (s *Store) DeleteWorkOrder(ctx context.Context, id string, actorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.orderIndexLocked(id)
	if idx < 0 {
		return fmt.Errorf("work order %s: %w", id, errs.ErrNotFound)
	}
	if err := s.guardMutableLocked(&s.orders[idx], actorID, false); err != nil {
		return err
	}

	next := cloneOrders(s.orders)
	next = append(next[:idx], next[idx+1:]...)
	return s.commitOrdersLocked(ctx, next, &syncq.DeleteOrder{OrderID: id, ActorID: actorID})
}

// guardMutableLocked enforces the edit/delete rules: only new, pending
// approval or (edits only) in-progress orders may change, and only by their
// requester. Preventive-origin orders have no requester to match, and a
// technician may edit while work is in progress.
func (s *Store) guardMutableLocked(o *model.WorkOrder, actorID int64, edit bool) error {
	switch o.Status {
	case model.StatusNone, model.StatusPendingApproval:
	case model.StatusInProgress:
		if !edit {
			return fmt.Errorf("%w: status %s", errs.ErrNotEditable, statusLabel(o.Status))
		}
	default:
		return fmt.Errorf("%w: status %s", errs.ErrNotEditable, statusLabel(o.Status))
	}

	// preventive-origin orders are system-proposed; no requester to match
	if o.Preventive || o.ApprovedBy != "" {
		return nil
	}
	if o.Status == model.StatusInProgress {
		if actor, err := s.lookupAccountLocked(actorID); err == nil && actor.Role == model.RoleTechnician {
			return nil
		}
	}
	if o.Requester.ID != actorID {
		return fmt.Errorf("%w: only the requester may modify this work order", errs.ErrPermission)
	}
	return nil
}

func (s *Store) lookupAccountLocked(id int64) (model.Account, error) {
	idx := s.accountIndexLocked(id)
	if idx < 0 {
		return model.Account{}, errs.ErrNotFound
	}
	return s.accounts[idx], nil
}

// TransitionStatus runs the lifecycle machine for the plain transitions
// (start, direct completion, cancellation).
func (s *Store) TransitionStatus(ctx context.Context, id string, newStatus model.Status, d model.TransitionDetails) (model.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.orderIndexLocked(id)
	if idx < 0 {
		return model.WorkOrder{}, fmt.Errorf("work order %s: %w", id, errs.ErrNotFound)
	}

	now := s.now()
	next := cloneOrders(s.orders)
	if err := applyTransition(&next[idx], newStatus, d, now); err != nil {
		return model.WorkOrder{}, err
	}

	act := &syncq.Transition{OrderID: id, NewStatus: newStatus, Details: d, EffectiveAt: now}
	if err := s.commitOrdersLocked(ctx, next, act); err != nil {
		return model.WorkOrder{}, err
	}
	return next[idx].Clone(), nil
}

// ApprovePreventive converts a pending preventive proposal; the approver
// becomes the requester.
func (s *Store) ApprovePreventive(ctx context.Context, id string, approverID int64) (model.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.orderIndexLocked(id)
	if idx < 0 {
		return model.WorkOrder{}, fmt.Errorf("work order %s: %w", id, errs.ErrNotFound)
	}
	approver, err := s.lookupAccountLocked(approverID)
	if err != nil {
		return model.WorkOrder{}, fmt.Errorf("approver %d: %w", approverID, errs.ErrNotFound)
	}

	next := cloneOrders(s.orders)
	if err := approvePreventive(&next[idx], approver, s.now()); err != nil {
		return model.WorkOrder{}, err
	}

	act := &syncq.ApprovePreventive{OrderID: id, Approver: approver.Clone()}
	if err := s.commitOrdersLocked(ctx, next, act); err != nil {
		return model.WorkOrder{}, err
	}
	return next[idx].Clone(), nil
}

// SubmitCompletionChange records a back-dated completion for approval.
func (s *Store) SubmitCompletionChange(ctx context.Context, id, notes, completedBy string, requestedAt time.Time, justification string) (model.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.orderIndexLocked(id)
	if idx < 0 {
		return model.WorkOrder{}, fmt.Errorf("work order %s: %w", id, errs.ErrNotFound)
	}

	next := cloneOrders(s.orders)
	if err := submitCompletionChange(&next[idx], notes, completedBy, requestedAt, justification, s.now()); err != nil {
		return model.WorkOrder{}, err
	}

	act := &syncq.SubmitCompletionChange{
		OrderID:       id,
		Notes:         notes,
		CompletedBy:   completedBy,
		RequestedAt:   requestedAt,
		Justification: justification,
	}
	if err := s.commitOrdersLocked(ctx, next, act); err != nil {
		return model.WorkOrder{}, err
	}
	return next[idx].Clone(), nil
}

// ResolveCompletionChange approves or rejects a pending completion change.
func (s *Store) ResolveCompletionChange(ctx context.Context, id string, approve bool, resolvedBy string) (model.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.orderIndexLocked(id)
	if idx < 0 {
		return model.WorkOrder{}, fmt.Errorf("work order %s: %w", id, errs.ErrNotFound)
	}

	next := cloneOrders(s.orders)
	if err := resolveCompletionChange(&next[idx], approve, resolvedBy, s.now()); err != nil {
		return model.WorkOrder{}, err
	}

	act := &syncq.ResolveCompletionChange{OrderID: id, Approve: approve, ResolvedBy: resolvedBy}
	if err := s.commitOrdersLocked(ctx, next, act); err != nil {
		return model.WorkOrder{}, err
	}
	return next[idx].Clone(), nil
}

// ListWorkOrders returns independent copies, newest first.
func (s *Store) ListWorkOrders() []model.WorkOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := cloneOrders(s.orders)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// GetWorkOrder returns an independent copy.
func (s *Store) GetWorkOrder(id string) (model.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.orderIndexLocked(id)
	if idx < 0 {
		return model.WorkOrder{}, fmt.Errorf("work order %s: %w", id, errs.ErrNotFound)
	}
	return s.orders[idx].Clone(), nil
}

func (s *Store) orderIndexLocked(id string) int {
	for i := range s.orders {
		if s.orders[i].ID == id {
			return i
		}
	}
	return -1
}

// nextOrderIDLocked derives OS-<DDMMYYYY>-<seq>, the sequence restarting
// each calendar day. The next sequence number is the highest one already
// taken that day plus one, not a count: new orders may be deleted, and a
// count would hand out an id the day has already seen. Scanning ids is not
// safe under concurrent writers; this client is the only writer on its
// device.
func (s *Store) nextOrderIDLocked(now time.Time) string {
	prefix := "OS-" + now.Format("02012006") + "-"
	max := 0
	for i := range s.orders {
		suffix, ok := strings.CutPrefix(s.orders[i].ID, prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%d", prefix, max+1)
}

// ---- commit pipeline ----

// commitAccountsLocked persists the candidate account list, enqueues the
// action and only then swaps memory. On enqueue failure the blob is restored
// so durable state follows memory; if even the restore fails the divergence
// is logged as the known consistency risk it is.
func (s *Store) commitAccountsLocked(ctx context.Context, next []model.Account, act syncq.Action) error {
	prev, err := json.MarshalIndent(s.accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	if err := s.adapter.Save(ctx, storage.KeyAccounts, data); err != nil {
		return fmt.Errorf("persist accounts: %w", err)
	}
	if err := s.queue.Enqueue(ctx, act); err != nil {
		if rerr := s.adapter.Save(ctx, storage.KeyAccounts, prev); rerr != nil {
			s.log.Error("rollback of accounts blob failed; durable state ahead of queue",
				zap.Error(rerr))
		}
		return err
	}
	s.accounts = next
	return nil
}

// commitOrdersLocked mirrors commitAccountsLocked for the orders blob.
func (s *Store) commitOrdersLocked(ctx context.Context, next []model.WorkOrder, act syncq.Action) error {
	prev, err := json.MarshalIndent(s.orders, "", "  ")
	if err != nil {
		return fmt.Errorf("encode work orders: %w", err)
	}
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode work orders: %w", err)
	}
	if err := s.adapter.Save(ctx, storage.KeyOrders, data); err != nil {
		return fmt.Errorf("persist work orders: %w", err)
	}
	if err := s.queue.Enqueue(ctx, act); err != nil {
		if rerr := s.adapter.Save(ctx, storage.KeyOrders, prev); rerr != nil {
			s.log.Error("rollback of orders blob failed; durable state ahead of queue",
				zap.Error(rerr))
		}
		return err
	}
	s.orders = next
	return nil
}

func cloneAccounts(in []model.Account) []model.Account {
	out := make([]model.Account, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func cloneOrders(in []model.WorkOrder) []model.WorkOrder {
	out := make([]model.WorkOrder, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
