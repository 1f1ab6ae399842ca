package core

import "trafficcap/pkg/domain"

// Rule aliases domain.Rule for callers registering custom policies.
type Rule = domain.Rule

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewTrafficCapacityRule())
	return engine
}
