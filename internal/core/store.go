package core

import "trafficcap/internal/infra/persistence/memory"

// MemoryStore is the in-memory transactional store used by default services.
type MemoryStore = memory.Store

// NewMemoryStore constructs an in-memory store bound to the supplied rules engine.
func NewMemoryStore(engine *RulesEngine, opts ...memory.Option) *MemoryStore {
	return memory.NewStore(engine, opts...)
}

// MigrationReport counts the repairs applied to state loaded from a durable backend.
type MigrationReport = memory.MigrationReport
