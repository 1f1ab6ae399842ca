package core

import "trafficcap/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Traffic            = domain.Traffic
	Housing            = domain.Housing
	CapacityUsage      = domain.CapacityUsage
	TrafficPayload     = domain.TrafficPayload
	HousingPayload     = domain.HousingPayload
	HousingResponse    = domain.HousingResponse
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RulesEngine        = domain.RulesEngine
)

const (
	EntityTraffic = domain.EntityTraffic
	EntityHousing = domain.EntityHousing
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
)
