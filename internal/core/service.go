package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"trafficcap/pkg/domain"
)

// Service exposes the traffic registry, capacity calculator and housing
// allocator over a transactional persistent store.
type Service struct {
	store              domain.PersistentStore
	engine             *RulesEngine
	clock              Clock
	logger             Logger
	metrics            MetricsRecorder
	tracer             Tracer
	audit              AuditRecorder
	locks              *keyedMutex
	lenientTrafficRefs bool
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Service{
		store:              store,
		engine:             extractRulesEngine(store),
		clock:              options.clock,
		logger:             options.logger,
		metrics:            options.metrics,
		tracer:             options.tracer,
		audit:              options.audit,
		locks:              newKeyedMutex(),
		lenientTrafficRefs: options.lenientTrafficRefs,
	}
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine. A nil engine installs the default policy set.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// RulesEngine returns the engine evaluated by the store, when the store exposes one.
func (s *Service) RulesEngine() *RulesEngine {
	return s.engine
}

type rulesEngineProvider interface {
	RulesEngine() *RulesEngine
}

func extractRulesEngine(store domain.PersistentStore) *RulesEngine {
	if provider, ok := store.(rulesEngineProvider); ok {
		return provider.RulesEngine()
	}
	return nil
}

// operation describes how a service call is named in metrics, traces, audit
// entries and internal error messages.
type operation struct {
	name    string
	verb    string
	entity  EntityType
	action  Action
	audited bool
	// swallow marks reads whose failures are reported as a zero value.
	swallow bool
}

var (
	opCreateTraffic     = operation{name: "create_traffic", verb: "create traffic record", entity: EntityTraffic, action: ActionCreate, audited: true}
	opEditTrafficLimit  = operation{name: "edit_traffic_limit", verb: "edit traffic limit", entity: EntityTraffic, action: ActionUpdate, audited: true}
	opCreateHousing     = operation{name: "create_housing", verb: "create housing record", entity: EntityHousing, action: ActionCreate, audited: true}
	opGetTraffic        = operation{name: "get_traffic", verb: "get traffic record", entity: EntityTraffic}
	opListTraffic       = operation{name: "list_traffic", verb: "list traffic records", entity: EntityTraffic}
	opGetHousing        = operation{name: "get_housing", verb: "get housing record", entity: EntityHousing}
	opListHousing       = operation{name: "list_housing", verb: "list housing records", entity: EntityHousing}
	opRemainingLimit    = operation{name: "get_traffic_remaining_limit", verb: "compute remaining limit", entity: EntityTraffic, swallow: true}
	opCapacityUsage     = operation{name: "get_capacity_usage", verb: "compute capacity usage", entity: EntityTraffic}
	opListOverAllocated = operation{name: "list_over_allocated", verb: "list over-allocated traffic", entity: EntityTraffic}
)

// run wraps fn with tracing, metrics, logging and audit. Panics and errors
// outside the domain taxonomy surface as *domain.InternalError.
func (s *Service) run(ctx context.Context, op operation, fn func(context.Context) (string, error)) (err error) {
	started := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op.name)
	s.logger.Debug("operation started", "operation", op.name)

	var entityID string
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		err = classifyError(op, err)
		duration := s.clock.Now().Sub(started)
		span.End(err)
		s.metrics.Observe(ctx, op.name, err == nil, duration)
		s.logOutcome(op, entityID, duration, err)
		if op.audited {
			s.recordAudit(ctx, op, entityID, duration, err)
		}
	}()

	entityID, err = fn(ctx)
	return err
}

func classifyError(op operation, err error) error {
	if err == nil || domain.IsDomainError(err) {
		return err
	}
	var internal *domain.InternalError
	if errors.As(err, &internal) {
		return err
	}
	return &domain.InternalError{Operation: op.verb, Err: err}
}

func (s *Service) logOutcome(op operation, entityID string, duration time.Duration, err error) {
	switch {
	case err == nil:
		s.logger.Debug("operation completed", "operation", op.name, "entity_id", entityID, "duration", duration)
	case domain.IsDomainError(err):
		s.logger.Info("operation rejected", "operation", op.name, "entity_id", entityID, "error", err)
	case op.swallow:
		s.logger.Warn("operation failed; reporting zero value", "operation", op.name, "entity_id", entityID, "error", err)
	default:
		s.logger.Error("operation failed", "operation", op.name, "entity_id", entityID, "error", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, op operation, entityID string, duration time.Duration, err error) {
	entry := AuditEntry{
		Operation: op.name,
		Entity:    op.entity,
		Action:    op.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func sortTraffic(records []Traffic) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}

func sortHousing(records []Housing) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
