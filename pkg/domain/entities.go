// Package domain defines the persistent records, payloads, error taxonomy and
// rule evaluation primitives used by trafficcap.
package domain

import "time"

// EntityType identifies the kind of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityTraffic identifies a traffic (capacity pool) record.
	EntityTraffic EntityType = "traffic"
	// EntityHousing identifies a housing (capacity consumer) record.
	EntityHousing EntityType = "housing"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records. UpdatedAt stays nil until
// the first edit.
type Base struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Traffic is a named capacity pool.
type Traffic struct {
	Base
	RoadName     string `json:"road_name"`
	TrafficLimit int    `json:"traffic_limit"`
}

// Housing consumes capacity from exactly one Traffic record.
type Housing struct {
	Base
	HousingName       string `json:"housing_name"`
	NumberOfResidents int    `json:"number_of_residents"`
	TrafficID         string `json:"traffic_id"`
}

// CapacityUsage summarizes allocation against a single traffic record.
type CapacityUsage struct {
	TrafficID          string `json:"traffic_id"`
	RoadName           string `json:"road_name"`
	TrafficLimit       int    `json:"traffic_limit"`
	AllocatedResidents int    `json:"allocated_residents"`
	RemainingLimit     int    `json:"remaining_limit"`
	HousingCount       int    `json:"housing_count"`
	OverAllocated      bool   `json:"over_allocated"`
}

// Snapshot captures a point-in-time copy of both record partitions keyed by id.
type Snapshot struct {
	Traffic map[string]Traffic `json:"traffic"`
	Housing map[string]Housing `json:"housing"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions captured in the audit trail. Records are never deleted.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
