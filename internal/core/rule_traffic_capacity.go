package core

import (
	"context"
	"fmt"
	"sort"

	"trafficcap/pkg/domain"
)

// TrafficCapacityRuleName identifies violations raised by the traffic capacity rule.
const TrafficCapacityRuleName = "traffic_capacity"

// NewTrafficCapacityRule returns the commit-time rule that blocks housing
// allocations pushing a traffic record past its limit. Only traffic touched by
// housing creations in the transaction is checked; limit edits never block.
func NewTrafficCapacityRule() domain.Rule {
	return trafficCapacityRule{}
}

type trafficCapacityRule struct{}

func (trafficCapacityRule) Name() string { return TrafficCapacityRuleName }

func (trafficCapacityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityHousing || change.Action != domain.ActionCreate {
			continue
		}
		housing, ok := change.After.(domain.Housing)
		if !ok {
			continue
		}
		touched[housing.TrafficID] = struct{}{}
	}
	if len(touched) == 0 {
		return domain.Result{}, nil
	}

	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res := domain.Result{}
	for _, id := range ids {
		allocated, _ := domain.AllocatedResidents(view, id)
		traffic, ok := view.FindTraffic(id)
		if !ok {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     TrafficCapacityRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("housing allocated against unknown traffic %s", id),
				Entity:   domain.EntityTraffic,
				EntityID: id,
			})
			continue
		}
		if allocated > traffic.TrafficLimit {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     TrafficCapacityRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("traffic %s (%s) over limit: %d/%d residents", traffic.RoadName, traffic.ID, allocated, traffic.TrafficLimit),
				Entity:   domain.EntityTraffic,
				EntityID: traffic.ID,
			})
		}
	}
	return res, nil
}
