package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"trafficcap/pkg/domain"
)

func TestHousingAllocationScenario(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	id := mustCreateTraffic(t, svc, "Main St", 10)

	resp := mustCreateHousing(t, svc, "Block A", 6, id)
	if !resp.IsSuccess || resp.RemainingLimit != 10 || resp.Msg != domain.HousingCreatedMessage || resp.HousingID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got := svc.GetTrafficRemainingLimit(ctx, id); got != 4 {
		t.Fatalf("expected remaining 4, got %d", got)
	}

	_, err := svc.CreateHousing(ctx, HousingPayload{HousingName: "Block B", NumberOfResidents: 5, TrafficID: id})
	var capErr domain.CapacityExceededError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected capacity exceeded, got %v", err)
	}
	if capErr.RemainingLimit != 4 || capErr.Requested != 5 || capErr.TrafficID != id {
		t.Fatalf("unexpected capacity error %+v", capErr)
	}
	housing, _ := svc.ListHousing(ctx, id)
	if len(housing) != 1 || housing[0].ID != resp.HousingID {
		t.Fatalf("rejected allocation must not write, got %+v", housing)
	}
}

func TestHousingBoundaryResidents(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name      string
		residents int
		wantErr   bool
		remaining int
	}{
		{name: "exactly remaining", residents: 7, remaining: 0},
		{name: "one over remaining", residents: 8, wantErr: true, remaining: 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewInMemoryService(nil)
			id := mustCreateTraffic(t, svc, "Main St", 7)
			_, err := svc.CreateHousing(ctx, HousingPayload{HousingName: "Block", NumberOfResidents: tc.residents, TrafficID: id})
			if tc.wantErr != (err != nil) {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
			if tc.wantErr && !errors.Is(err, domain.ErrCapacityExceeded) {
				t.Fatalf("expected capacity error, got %v", err)
			}
			if got := svc.GetTrafficRemainingLimit(ctx, id); got != tc.remaining {
				t.Fatalf("expected remaining %d, got %d", tc.remaining, got)
			}
		})
	}
}

func TestHousingValidation(t *testing.T) {
	svc := NewInMemoryService(nil)
	id := mustCreateTraffic(t, svc, "Main St", 10)
	for field, payload := range map[string]HousingPayload{
		"housing_name":        {NumberOfResidents: 1, TrafficID: id},
		"number_of_residents": {HousingName: "A", NumberOfResidents: 0, TrafficID: id},
		"traffic_id":          {HousingName: "A", NumberOfResidents: 1},
	} {
		_, err := svc.CreateHousing(context.Background(), payload)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) || verr.Field != field {
			t.Fatalf("expected validation error on %s, got %v", field, err)
		}
	}
}

func TestHousingUnknownTrafficReference(t *testing.T) {
	ctx := context.Background()
	payload := HousingPayload{HousingName: "Ghost", NumberOfResidents: 1, TrafficID: "nope"}

	strict := NewInMemoryService(nil)
	if _, err := strict.CreateHousing(ctx, payload); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found by default, got %v", err)
	}

	lenient := NewInMemoryService(nil, WithLenientTrafficReference())
	_, err := lenient.CreateHousing(ctx, payload)
	var capErr domain.CapacityExceededError
	if !errors.As(err, &capErr) || capErr.RemainingLimit != 0 {
		t.Fatalf("expected capacity exceeded with remaining 0, got %v", err)
	}
	if list, _ := lenient.ListHousing(ctx, ""); len(list) != 0 {
		t.Fatalf("expected no housing written")
	}
}

// overcommitRule blocks every housing creation the way the capacity rule does
// when a store races past the service-level check.
type overcommitRule struct{}

func (overcommitRule) Name() string { return TrafficCapacityRuleName }

func (overcommitRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	for _, c := range changes {
		if c.Entity == domain.EntityHousing {
			return domain.Result{Violations: []domain.Violation{{Rule: TrafficCapacityRuleName, Severity: domain.SeverityBlock}}}, nil
		}
	}
	return domain.Result{}, nil
}

func TestCommitTimeRuleViolationMapsToCapacityExceeded(t *testing.T) {
	ctx := context.Background()
	engine := NewRulesEngine()
	engine.Register(overcommitRule{})
	svc := NewInMemoryService(engine)
	id := mustCreateTraffic(t, svc, "Main St", 10)

	_, err := svc.CreateHousing(ctx, HousingPayload{HousingName: "Block A", NumberOfResidents: 2, TrafficID: id})
	var capErr domain.CapacityExceededError
	if !errors.As(err, &capErr) || capErr.RemainingLimit != 10 {
		t.Fatalf("expected mapped capacity error with committed remaining 10, got %v", err)
	}
	if svc.RulesEngine() != engine {
		t.Fatalf("expected service to expose store engine")
	}
}

func TestConcurrentHousingNeverOvershoots(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	id := mustCreateTraffic(t, svc, "Main St", 25)

	const workers = 40
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CreateHousing(ctx, HousingPayload{HousingName: fmt.Sprintf("H%d", i), NumberOfResidents: 2, TrafficID: id})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrCapacityExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if accepted != 12 {
		t.Fatalf("expected 12 accepted allocations of 2 against 25, got %d", accepted)
	}
	usage, err := svc.CapacityUsage(ctx, id)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage.AllocatedResidents != 24 || usage.RemainingLimit != 1 || usage.OverAllocated {
		t.Fatalf("unexpected usage %+v", usage)
	}
	if n := svc.locks.size(); n != 0 {
		t.Fatalf("expected keyed locks to be released, %d remain", n)
	}
}

func TestListAndGetHousing(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	main := mustCreateTraffic(t, svc, "Main St", 10)
	side := mustCreateTraffic(t, svc, "Side St", 10)
	a := mustCreateHousing(t, svc, "A", 1, main)
	mustCreateHousing(t, svc, "B", 1, side)

	all, err := svc.ListHousing(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 housing records, got %d (%v)", len(all), err)
	}
	onlyMain, _ := svc.ListHousing(ctx, main)
	if len(onlyMain) != 1 || onlyMain[0].TrafficID != main {
		t.Fatalf("unexpected filtered list %+v", onlyMain)
	}
	got, err := svc.GetHousing(ctx, a.HousingID)
	if err != nil || got.HousingName != "A" || got.UpdatedAt != nil {
		t.Fatalf("unexpected housing %+v (%v)", got, err)
	}
	if _, err := svc.GetHousing(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
