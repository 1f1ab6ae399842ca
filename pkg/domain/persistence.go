package domain

import (
	"context"
	"time"
)

// Transaction exposes the record operations a persistence implementation must
// support within an atomic scope. Records are never deleted.
type Transaction interface {
	Snapshot() TransactionView
	Now() time.Time
	CreateTraffic(Traffic) (Traffic, error)
	UpdateTraffic(id string, mutator func(*Traffic) error) (Traffic, error)
	CreateHousing(Housing) (Housing, error)
	FindTraffic(id string) (Traffic, bool)
	FindHousing(id string) (Housing, bool)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetTraffic(id string) (Traffic, bool)
	ListTraffic() []Traffic
	GetHousing(id string) (Housing, bool)
	ListHousing() []Housing
	ExportState() Snapshot
}
