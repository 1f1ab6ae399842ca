package domain

import (
	"context"
	"errors"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if err.Error() == "" {
		t.Fatalf("expected error string")
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{name: "warn"})
	engine.Register(staticRule{name: "log"})
	res, err := engine.Evaluate(context.Background(), fakeView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 {
		t.Fatalf("expected two violations, got %+v", res.Violations)
	}
	if got := engine.Rules(); len(got) != 2 || got[0] != "warn" || got[1] != "log" {
		t.Fatalf("unexpected rule order %v", got)
	}
}

func TestRulesEngineEvaluateStopsOnError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{name: "first"})
	engine.Register(staticRule{name: "broken", err: errors.New("boom")})
	res, err := engine.Evaluate(context.Background(), fakeView{}, nil)
	if err == nil {
		t.Fatalf("expected rule error")
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected empty result on error, got %+v", res.Violations)
	}
}

type staticRule struct {
	name string
	err  error
}

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	if r.err != nil {
		return Result{}, r.err
	}
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}
