// Package approval implements the pending-approval lifecycle (Approval
// Store, component E): creation, the atomic release state machine, and a
// background TTL sweeper. Grounded on the async-worker lifecycle shape of
// pkg/evidence/recorder/recorder.go and the pending/approved/executed
// state naming of other_examples' internal-agent-approval.go.
package approval

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"aegis-hq/aegis/pkg/evaluator"
)

// Status is the PendingApproval lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusExecuted Status = "executed"
	StatusExpired  Status = "expired"
)

// DefaultTTL is the default approval lifetime (overridden by
// APPROVAL_TTL_SECONDS).
const DefaultTTL = 15 * time.Minute

// PendingApproval is one approval-gated request, captured verbatim at
// creation time.
type PendingApproval struct {
	ID          string
	AgentID     string
	ParentAgent string
	Tool        string
	Action      string
	Params      map[string]any
	Status      Status
	CreatedAt   time.Time
	ApproverID  string // set by Release; empty while pending
}

// ResultKind tags the outcome of Release.
type ResultKind string

const (
	ResultReady    ResultKind = "ready"
	ResultNotFound ResultKind = "not_found"
	ResultConflict ResultKind = "conflict"
	ResultExpired  ResultKind = "expired"
)

// ReleaseResult is the outcome of a Release call.
type ReleaseResult struct {
	Kind          ResultKind
	Request       evaluator.Request // populated only for ResultReady
	ApprovalID    string            // populated only for ResultReady
	CurrentStatus Status            // populated only for ResultConflict
}

// Store holds PendingApproval records and enforces the single
// compare-and-set-under-lock release invariant: the only
// correctness-critical concurrency guarantee in the system.
type Store struct {
	mu      sync.Mutex
	entries map[string]*PendingApproval
	ttl     time.Duration
	logger  *slog.Logger
	sweeper *cron.Cron
}

// New constructs a Store and starts its background TTL sweeper.
func New(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		entries: make(map[string]*PendingApproval),
		ttl:     ttl,
		logger:  logger,
	}

	s.sweeper = cron.New(cron.WithSeconds())
	// Sweep cadence is internal and not externally observable.
	if _, err := s.sweeper.AddFunc("@every 30s", s.sweep); err != nil {
		logger.Error("approval sweeper: failed to schedule", "error", err)
	} else {
		s.sweeper.Start()
	}

	return s
}

// Stop halts the background sweeper. Safe to call once at shutdown.
func (s *Store) Stop() {
	if s.sweeper != nil {
		ctx := s.sweeper.Stop()
		<-ctx.Done()
	}
}

// Create allocates a UUIDv4 token for a request that evaluated to
// ApprovalRequired and stores it as pending.
func (s *Store) Create(req evaluator.Request) string {
	id := uuid.New().String()

	s.mu.Lock()
	s.entries[id] = &PendingApproval{
		ID:          id,
		AgentID:     req.AgentID,
		ParentAgent: req.ParentAgent,
		Tool:        req.Tool,
		Action:      req.Action,
		Params:      req.Params,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}
	s.mu.Unlock()

	return id
}

// Release performs the atomic release state machine. The
// adapter is never invoked while holding the lock — Release only returns
// the captured request on ResultReady; the caller (the orchestrator)
// invokes the adapter afterwards. This is what prevents double execution:
// the state has already been advanced to "executed" before Release
// returns.
func (s *Store) Release(id, approverID string) ReleaseResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return ReleaseResult{Kind: ResultNotFound}
	}

	if entry.Status != StatusPending {
		return ReleaseResult{Kind: ResultConflict, CurrentStatus: entry.Status}
	}

	if time.Since(entry.CreatedAt) > s.ttl {
		entry.Status = StatusExpired
		return ReleaseResult{Kind: ResultExpired}
	}

	// pending -> approved -> executed, one critical section.
	entry.Status = StatusApproved
	entry.Status = StatusExecuted
	entry.ApproverID = approverID

	return ReleaseResult{
		Kind:       ResultReady,
		ApprovalID: id,
		Request: evaluator.Request{
			AgentID:     entry.AgentID,
			ParentAgent: entry.ParentAgent,
			Tool:        entry.Tool,
			Action:      entry.Action,
			Params:      entry.Params,
		},
	}
}

// ListPending returns a snapshot of all entries currently in the pending
// state, for the admin view.
func (s *Store) ListPending() []PendingApproval {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []PendingApproval
	for _, entry := range s.entries {
		if entry.Status == StatusPending {
			pending = append(pending, *entry)
		}
	}
	return pending
}

// sweep marks entries past TTL as expired. Runs on the cron schedule; not
// observable beyond the store's own state.
func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, entry := range s.entries {
		if entry.Status == StatusPending && now.Sub(entry.CreatedAt) > s.ttl {
			entry.Status = StatusExpired
		}
	}
}
