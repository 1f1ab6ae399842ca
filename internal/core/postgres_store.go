package core

import (
	"context"

	"trafficcap/internal/infra/persistence/memory"
	"trafficcap/internal/infra/persistence/postgres"
)

// NewPostgresStore constructs a Postgres-backed store from the provided DSN.
func NewPostgresStore(ctx context.Context, dsn string, engine *RulesEngine, opts ...memory.Option) (*postgres.Store, error) {
	return postgres.NewStore(ctx, dsn, engine, opts...)
}
