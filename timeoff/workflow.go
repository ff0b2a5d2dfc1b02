/*
workflow.go - Pending leave requests and their resolution

PURPOSE:
  Workflow owns the table of pending requests. It is created at process
  start, entries are removed only by Resolve, and nothing is persisted: a
  restart drops every pending request.

RESOLVE:
  1. Claim: under the table lock, look up and delete the entry. A second
     Resolve of the same id finds nothing and gets NotFound, so a request
     can debit at most once.
  2. Rejected: done, no balance change.
  3. Approved: under the per-user lock, seed if new -> read balance ->
     ApplyLeave -> write. A user with no facts starts from the default
     balance, like any other first contact.

FAILURES:
  - Seed or balance read fails: the entry is put back as pending and a
    *facts.StorageError is returned. The caller can retry.
  - Balance write fails: the Resolution comes back with Persisted=false.
    The entry is already gone; the balance is unchanged.

PER-USER LOCK:
  Two approvals for the same user must not both read 15 and both write
  13. The read-compute-write runs under a lock keyed by user id; approvals
  for different users do not wait on each other.

SEE ALSO:
  - ledger.go: ApplyLeave
  - facts/service.go: LeaveBalance / SetLeaveBalance
*/
package timeoff

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/shopspring/decimal"
	"github.com/warp/workfacts/facts"
	"go.uber.org/zap"
)

// BalanceStore reads and writes a user's leave balance.
// facts.Service implements it.
type BalanceStore interface {
	// EnsureSeeded gives a user with no facts the default set, including
	// the default leave balance, before it is read.
	EnsureSeeded(ctx context.Context, userID string) (bool, error)
	LeaveBalance(ctx context.Context, userID string) (float64, error)
	SetLeaveBalance(ctx context.Context, userID string, days float64) error
}

var _ BalanceStore = (*facts.Service)(nil)

// Workflow holds pending leave requests and resolves them against a
// BalanceStore.
type Workflow struct {
	mu      sync.Mutex
	pending map[string]LeaveRequest

	locks    userLocks
	balances BalanceStore
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewWorkflow creates an empty Workflow. A nil notifier or logger is
// replaced by a no-op.
func NewWorkflow(balances BalanceStore, notifier Notifier, log *zap.Logger) *Workflow {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Workflow{
		pending:  make(map[string]LeaveRequest),
		locks:    userLocks{m: make(map[string]*userLock)},
		balances: balances,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

// =============================================================================
// SUBMIT / LIST
// =============================================================================

// Submit validates in and stores a new pending request.
func (w *Workflow) Submit(ctx context.Context, in SubmitInput) (LeaveRequest, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if err := validateStruct(in); err != nil {
		return LeaveRequest{}, err
	}
	if err := checkRange(in.StartDate, in.EndDate); err != nil {
		return LeaveRequest{}, err
	}

	req := LeaveRequest{
		ID:        ksuid.New().String(),
		UserID:    in.UserID,
		LeaveType: in.LeaveType,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Days:      *in.Days,
		Reason:    in.Reason,
		Status:    StatusPending,
		CreatedAt: w.now().UTC(),
	}

	w.mu.Lock()
	w.pending[req.ID] = req
	w.mu.Unlock()

	w.log.Info("leave request submitted",
		zap.String("request_id", req.ID),
		zap.String("user_id", req.UserID),
		zap.String("leave_type", string(req.LeaveType)),
		zap.Float64("days", req.Days))
	if !req.LeaveType.Known() {
		w.log.Warn("unrecognized leave type, will not debit", zap.String("leave_type", string(req.LeaveType)))
	}

	w.notify(ctx, Event{Kind: EventSubmitted, Request: req, At: req.CreatedAt})
	return req, nil
}

// ListPending returns a snapshot of pending requests ordered by creation
// time then id. An empty userID lists every user.
func (w *Workflow) ListPending(userID string) []LeaveRequest {
	w.mu.Lock()
	out := make([]LeaveRequest, 0, len(w.pending))
	for _, r := range w.pending {
		if userID == "" || r.UserID == userID {
			out = append(out, r)
		}
	}
	w.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PendingCount returns the number of pending requests.
func (w *Workflow) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// =============================================================================
// RESOLVE / RECORD
// =============================================================================

// Resolve approves or rejects a pending request.
func (w *Workflow) Resolve(ctx context.Context, id string, approved bool, approver string) (Resolution, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Resolution{}, &facts.ValidationError{Field: "request_id", Reason: "required"}
	}

	req, ok := w.claim(id)
	if !ok {
		return Resolution{}, &facts.NotFoundError{Kind: "leave request", ID: id}
	}

	if !approved {
		req.process(StatusRejected, approver, w.now().UTC())
		res := Resolution{
			RequestID: req.ID,
			UserID:    req.UserID,
			LeaveType: req.LeaveType,
			Status:    StatusRejected,
			Approver:  approver,
			Persisted: true,
		}
		w.log.Info("leave request rejected", zap.String("request_id", id), zap.String("user_id", req.UserID))
		w.notify(ctx, Event{Kind: EventRejected, Request: req, Resolution: &res, At: *req.ProcessedAt})
		return res, nil
	}

	res, err := w.apply(ctx, req.UserID, req.LeaveType, req.Days)
	if err != nil {
		w.restore(req)
		return Resolution{}, err
	}
	res.RequestID = req.ID
	res.Approver = approver

	req.process(StatusApproved, approver, w.now().UTC())
	w.notify(ctx, Event{Kind: EventApproved, Request: req, Resolution: &res, At: *req.ProcessedAt})
	return res, nil
}

// Record applies a leave that was approved elsewhere. No pending entry is
// created.
func (w *Workflow) Record(ctx context.Context, in RecordInput) (Resolution, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if err := validateStruct(in); err != nil {
		return Resolution{}, err
	}
	if err := checkRange(in.StartDate, in.EndDate); err != nil {
		return Resolution{}, err
	}

	userID := in.UserID
	res, err := w.apply(ctx, userID, in.LeaveType, *in.Days)
	if err != nil {
		return Resolution{}, err
	}
	res.Approver = in.Approver

	now := w.now().UTC()
	req := LeaveRequest{
		UserID:    userID,
		LeaveType: in.LeaveType,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Days:      *in.Days,
		CreatedAt: now,
	}
	req.process(StatusApproved, in.Approver, now)
	w.notify(ctx, Event{Kind: EventRecorded, Request: req, Resolution: &res, At: req.CreatedAt})
	return res, nil
}

// apply runs seed -> read -> ApplyLeave -> write under the user's lock.
// Only a seed or read failure is returned as an error.
func (w *Workflow) apply(ctx context.Context, userID string, leaveType LeaveType, days float64) (Resolution, error) {
	unlock := w.locks.lock(userID)
	defer unlock()

	if _, err := w.balances.EnsureSeeded(ctx, userID); err != nil {
		w.log.Error("leave balance seed failed", zap.String("user_id", userID), zap.Error(err))
		return Resolution{}, facts.Storage("seed leave balance", err)
	}
	prev, err := w.balances.LeaveBalance(ctx, userID)
	if err != nil {
		w.log.Error("leave balance read failed", zap.String("user_id", userID), zap.Error(err))
		return Resolution{}, facts.Storage("read leave balance", err)
	}

	next, debited := ApplyLeave(prev, leaveType, days)
	res := Resolution{
		UserID:             userID,
		LeaveType:          leaveType,
		Status:             StatusApproved,
		PreviousBalance:    prev,
		RemainingLeaveDays: next,
		Debited:            debited,
		Persisted:          true,
	}
	if !debited {
		w.log.Info("leave approved without debit",
			zap.String("user_id", userID),
			zap.String("leave_type", string(leaveType)),
			zap.Float64("balance", prev))
		return res, nil
	}

	res.DaysDeducted, _ = decimal.NewFromFloat(prev).Sub(decimal.NewFromFloat(next)).Float64()
	if err := w.balances.SetLeaveBalance(ctx, userID, next); err != nil {
		res.Persisted = false
		w.log.Error("leave balance write failed",
			zap.String("user_id", userID),
			zap.Float64("previous", prev),
			zap.Float64("remaining", next),
			zap.Error(err))
		return res, nil
	}

	w.log.Info("leave debited",
		zap.String("user_id", userID),
		zap.Float64("deducted", res.DaysDeducted),
		zap.Float64("remaining", next))
	return res, nil
}

func (w *Workflow) claim(id string) (LeaveRequest, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	req, ok := w.pending[id]
	if ok {
		delete(w.pending, id)
	}
	return req, ok
}

func (w *Workflow) restore(req LeaveRequest) {
	w.mu.Lock()
	w.pending[req.ID] = req
	w.mu.Unlock()
}

func (w *Workflow) notify(ctx context.Context, ev Event) {
	if err := w.notifier.Notify(ctx, ev); err != nil {
		w.log.Warn("leave notification failed", zap.String("event", string(ev.Kind)), zap.Error(err))
	}
}

// =============================================================================
// PER-USER LOCKS
// =============================================================================

type userLocks struct {
	mu sync.Mutex
	m  map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the lock for key and returns its release. Entries are
// dropped once no goroutine holds or waits on them.
func (l *userLocks) lock(key string) func() {
	l.mu.Lock()
	ul, ok := l.m[key]
	if !ok {
		ul = &userLock{}
		l.m[key] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}
