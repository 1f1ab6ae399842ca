package core

import (
	"trafficcap/internal/infra/persistence/memory"
	"trafficcap/internal/infra/persistence/sqlite"
)

// NewSQLiteStore constructs a new SQLite-backed persistent store using the
// provided file path (may be empty for default) and rules engine.
func NewSQLiteStore(path string, engine *RulesEngine, opts ...memory.Option) (*sqlite.Store, error) {
	return sqlite.NewStore(path, engine, opts...)
}
