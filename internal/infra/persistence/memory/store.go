// Package memory provides an in-memory implementation of the core persistence
// store used for tests, ephemeral environments and as the working set of the
// durable snapshot stores.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trafficcap/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Traffic aliases domain.Traffic for in-memory persistence operations.
	Traffic = domain.Traffic
	// Housing aliases domain.Housing.
	Housing = domain.Housing
	// Snapshot aliases domain.Snapshot.
	Snapshot = domain.Snapshot
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	traffic partition[Traffic]
	housing partition[Housing]
}

func newMemoryState() memoryState {
	return memoryState{
		traffic: newPartition(cloneTraffic),
		housing: newPartition(cloneHousing),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		traffic: s.traffic.copy(),
		housing: s.housing.copy(),
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneTraffic(t Traffic) Traffic {
	cp := t
	cp.UpdatedAt = cloneTime(t.UpdatedAt)
	return cp
}

func cloneHousing(h Housing) Housing {
	cp := h
	cp.UpdatedAt = cloneTime(h.UpdatedAt)
	return cp
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	return Snapshot{
		Traffic: state.traffic.export(),
		Housing: state.housing.export(),
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Traffic {
		state.traffic.insert(k, v)
	}
	for k, v := range s.Housing {
		state.housing.insert(k, v)
	}
	return state
}

// MigrationReport counts the repairs made while importing persisted state.
type MigrationReport struct {
	DroppedTraffic int `json:"dropped_traffic"`
	ClampedLimits  int `json:"clamped_limits"`
	DroppedHousing int `json:"dropped_housing"`
	ReassignedIDs  int `json:"reassigned_ids"`
}

// Changed reports whether any record was repaired or dropped.
func (r MigrationReport) Changed() bool {
	return r != MigrationReport{}
}

// migrateSnapshot normalizes persisted state: ids follow their map keys,
// non-positive limits are clamped and housing without residents or a traffic
// reference is dropped. Housing pointing at an unknown traffic id is kept.
func migrateSnapshot(snapshot Snapshot) (Snapshot, MigrationReport) {
	var report MigrationReport
	out := Snapshot{
		Traffic: make(map[string]Traffic, len(snapshot.Traffic)),
		Housing: make(map[string]Housing, len(snapshot.Housing)),
	}
	for id, traffic := range snapshot.Traffic {
		if id == "" {
			report.DroppedTraffic++
			continue
		}
		if traffic.ID != id {
			report.ReassignedIDs++
			traffic.ID = id
		}
		if traffic.TrafficLimit <= 0 {
			report.ClampedLimits++
			traffic.TrafficLimit = 1
		}
		out.Traffic[id] = traffic
	}
	for id, housing := range snapshot.Housing {
		if id == "" || housing.TrafficID == "" || housing.NumberOfResidents <= 0 {
			report.DroppedHousing++
			continue
		}
		if housing.ID != id {
			report.ReassignedIDs++
			housing.ID = id
		}
		out.Housing[id] = housing
	}
	return out, report
}

// CommitHook receives the candidate state of a transaction before it becomes
// visible. A non-nil error aborts the commit and leaves committed state untouched.
type CommitHook func(ctx context.Context, candidate Snapshot) error

// Option configures a Store.
type Option func(*Store)

// WithIDFunc overrides identifier generation (uuid v4 by default).
func WithIDFunc(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.idFn = fn
		}
	}
}

// WithCommitHook installs hook, run under the write lock after rules pass.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.commitHook = hook }
}

// WithNowFunc overrides the timestamp source used for created/updated fields.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// Store provides an in-memory transactional store for traffic and housing records.
type Store struct {
	mu         sync.RWMutex
	state      memoryState
	engine     *RulesEngine
	nowFn      func() time.Time
	idFn       func() string
	commitHook CommitHook
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot and reports
// the repairs applied to it. The commit hook is not invoked.
func (s *Store) ImportState(snapshot Snapshot) MigrationReport {
	migrated, report := migrateSnapshot(snapshot)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrated)
	return report
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListTraffic returns all traffic records within the snapshot.
func (v transactionView) ListTraffic() []Traffic {
	return v.state.traffic.scan(nil)
}

// ListHousing returns all housing records within the snapshot.
func (v transactionView) ListHousing() []Housing {
	return v.state.housing.scan(nil)
}

// FindTraffic looks up a traffic record by id.
func (v transactionView) FindTraffic(id string) (Traffic, bool) {
	return v.state.traffic.get(id)
}

// FindHousing looks up a housing record by id.
func (v transactionView) FindHousing(id string) (Housing, bool) {
	return v.state.housing.get(id)
}

// ScanHousing returns housing records accepted by match.
func (v transactionView) ScanHousing(match func(Housing) bool) []Housing {
	return v.state.housing.scan(match)
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces committed state only when fn succeeds, no rule blocks and
// the commit hook, if any, accepts it.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.commitHook != nil {
		if err := s.commitHook(ctx, snapshotFromMemoryState(tx.state)); err != nil {
			return result, err
		}
	}
	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// Now returns the timestamp shared by every mutation in the transaction.
func (tx *transaction) Now() time.Time {
	return tx.now
}

// FindTraffic exposes traffic lookup within the transaction scope.
func (tx *transaction) FindTraffic(id string) (Traffic, bool) {
	return tx.state.traffic.get(id)
}

// FindHousing exposes housing lookup within the transaction scope.
func (tx *transaction) FindHousing(id string) (Housing, bool) {
	return tx.state.housing.get(id)
}

// CreateTraffic stores a new traffic record.
func (tx *transaction) CreateTraffic(t Traffic) (Traffic, error) {
	if t.ID == "" {
		t.ID = tx.store.idFn()
	}
	if tx.state.traffic.has(t.ID) {
		return Traffic{}, fmt.Errorf("traffic %q already exists", t.ID)
	}
	if t.RoadName == "" {
		return Traffic{}, errors.New("traffic requires road name")
	}
	if t.TrafficLimit <= 0 {
		return Traffic{}, errors.New("traffic limit must be positive")
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = nil
	tx.state.traffic.insert(t.ID, t)
	tx.recordChange(Change{Entity: domain.EntityTraffic, Action: domain.ActionCreate, After: cloneTraffic(t)})
	return cloneTraffic(t), nil
}

// UpdateTraffic mutates an existing traffic record and stamps UpdatedAt.
func (tx *transaction) UpdateTraffic(id string, mutator func(*Traffic) error) (Traffic, error) {
	current, ok := tx.state.traffic.get(id)
	if !ok {
		return Traffic{}, domain.NotFoundError{Entity: domain.EntityTraffic, ID: id}
	}
	before := cloneTraffic(current)
	if err := mutator(&current); err != nil {
		return Traffic{}, err
	}
	if current.RoadName == "" {
		return Traffic{}, errors.New("traffic requires road name")
	}
	if current.TrafficLimit <= 0 {
		return Traffic{}, errors.New("traffic limit must be positive")
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	now := tx.now
	current.UpdatedAt = &now
	tx.state.traffic.insert(id, current)
	tx.recordChange(Change{Entity: domain.EntityTraffic, Action: domain.ActionUpdate, Before: before, After: cloneTraffic(current)})
	return cloneTraffic(current), nil
}

// CreateHousing stores a new housing record. The traffic reference is not
// checked here; capacity decisions belong to the caller and the rules engine.
func (tx *transaction) CreateHousing(h Housing) (Housing, error) {
	if h.ID == "" {
		h.ID = tx.store.idFn()
	}
	if tx.state.housing.has(h.ID) {
		return Housing{}, fmt.Errorf("housing %q already exists", h.ID)
	}
	if h.HousingName == "" {
		return Housing{}, errors.New("housing requires name")
	}
	if h.TrafficID == "" {
		return Housing{}, errors.New("housing requires traffic id")
	}
	if h.NumberOfResidents <= 0 {
		return Housing{}, errors.New("number of residents must be positive")
	}
	h.CreatedAt = tx.now
	h.UpdatedAt = nil
	tx.state.housing.insert(h.ID, h)
	tx.recordChange(Change{Entity: domain.EntityHousing, Action: domain.ActionCreate, After: cloneHousing(h)})
	return cloneHousing(h), nil
}

// Read helpers ---------------------------------------------------------------

// GetTraffic retrieves a traffic record by id from committed state.
func (s *Store) GetTraffic(id string) (Traffic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.traffic.get(id)
}

// ListTraffic returns all committed traffic records ordered by id.
func (s *Store) ListTraffic() []Traffic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.traffic.scan(nil)
}

// GetHousing retrieves a housing record by id from committed state.
func (s *Store) GetHousing(id string) (Housing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.housing.get(id)
}

// ListHousing returns all committed housing records ordered by id.
func (s *Store) ListHousing() []Housing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.housing.scan(nil)
}

// Counts reports the number of committed traffic and housing records.
func (s *Store) Counts() (traffic, housing int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.traffic.len(), s.state.housing.len()
}
