package core

import (
	"context"

	"trafficcap/pkg/domain"
)

// GetTrafficRemainingLimit reports the residents still assignable to the
// traffic record. It never fails: unknown ids, store errors and panics all
// yield zero, so callers cannot tell "missing" from "fully consumed" here.
// CapacityUsage is the explicit alternative.
func (s *Service) GetTrafficRemainingLimit(ctx context.Context, id string) int {
	var remaining int
	err := s.run(ctx, opRemainingLimit, func(ctx context.Context) (string, error) {
		return id, s.store.View(ctx, func(view domain.TransactionView) error {
			remaining = domain.RemainingLimit(view, id)
			return nil
		})
	})
	if err != nil {
		return 0
	}
	return remaining
}

// CapacityUsage summarizes allocation for a traffic record, returning a
// NotFoundError for unknown ids.
func (s *Service) CapacityUsage(ctx context.Context, id string) (CapacityUsage, error) {
	var usage CapacityUsage
	err := s.run(ctx, opCapacityUsage, func(ctx context.Context) (string, error) {
		return id, s.store.View(ctx, func(view domain.TransactionView) error {
			traffic, ok := view.FindTraffic(id)
			if !ok {
				return domain.NotFoundError{Entity: EntityTraffic, ID: id}
			}
			usage = domain.Usage(view, traffic)
			return nil
		})
	})
	if err != nil {
		return CapacityUsage{}, err
	}
	return usage, nil
}

// ListOverAllocated reports traffic records whose allocated residents exceed
// their current limit, which only happens after a downward limit edit.
func (s *Service) ListOverAllocated(ctx context.Context) ([]CapacityUsage, error) {
	out := []CapacityUsage{}
	err := s.run(ctx, opListOverAllocated, func(ctx context.Context) (string, error) {
		return "", s.store.View(ctx, func(view domain.TransactionView) error {
			traffic := view.ListTraffic()
			sortTraffic(traffic)
			for _, t := range traffic {
				if usage := domain.Usage(view, t); usage.OverAllocated {
					out = append(out, usage)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// committedRemaining reads the remaining limit outside any transaction.
func (s *Service) committedRemaining(ctx context.Context, id string) int {
	var remaining int
	_ = s.store.View(ctx, func(view domain.TransactionView) error {
		remaining = domain.RemainingLimit(view, id)
		return nil
	})
	return remaining
}
