package core

import (
	"context"
	"errors"

	"trafficcap/pkg/domain"
)

// CreateHousing allocates residents against a traffic record. The remaining
// limit is computed and the record inserted under a per-traffic lock inside a
// single store transaction; the response reports the remaining limit observed
// before the allocation.
func (s *Service) CreateHousing(ctx context.Context, payload HousingPayload) (HousingResponse, error) {
	var resp HousingResponse
	err := s.run(ctx, opCreateHousing, func(ctx context.Context) (string, error) {
		if err := payload.Validate(); err != nil {
			return "", err
		}
		unlock := s.locks.Lock(payload.TrafficID)
		defer unlock()

		var (
			remaining int
			created   Housing
		)
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			view := tx.Snapshot()
			if _, ok := view.FindTraffic(payload.TrafficID); !ok && !s.lenientTrafficRefs {
				return domain.NotFoundError{Entity: EntityTraffic, ID: payload.TrafficID}
			}
			remaining = domain.RemainingLimit(view, payload.TrafficID)
			if remaining < payload.NumberOfResidents {
				return domain.CapacityExceededError{
					TrafficID:      payload.TrafficID,
					Requested:      payload.NumberOfResidents,
					RemainingLimit: remaining,
				}
			}
			var err error
			created, err = tx.CreateHousing(Housing{
				HousingName:       payload.HousingName,
				NumberOfResidents: payload.NumberOfResidents,
				TrafficID:         payload.TrafficID,
			})
			return err
		})
		if err != nil {
			return "", s.capacityFromRuleViolation(ctx, payload, err)
		}
		resp = HousingResponse{
			Msg:            domain.HousingCreatedMessage,
			IsSuccess:      true,
			RemainingLimit: remaining,
			HousingID:      created.ID,
		}
		return created.ID, nil
	})
	if err != nil {
		return HousingResponse{}, err
	}
	return resp, nil
}

// capacityFromRuleViolation maps a blocking traffic_capacity violation raised
// at commit time onto the capacity taxonomy. Other errors pass through.
func (s *Service) capacityFromRuleViolation(ctx context.Context, payload HousingPayload, err error) error {
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		return err
	}
	for _, v := range violation.Result.Violations {
		if v.Rule == TrafficCapacityRuleName && v.Severity == domain.SeverityBlock {
			return domain.CapacityExceededError{
				TrafficID:      payload.TrafficID,
				Requested:      payload.NumberOfResidents,
				RemainingLimit: s.committedRemaining(ctx, payload.TrafficID),
			}
		}
	}
	return err
}

// GetHousing returns the housing record with the given id.
func (s *Service) GetHousing(ctx context.Context, id string) (Housing, error) {
	var found Housing
	err := s.run(ctx, opGetHousing, func(ctx context.Context) (string, error) {
		return id, s.store.View(ctx, func(view domain.TransactionView) error {
			housing, ok := view.FindHousing(id)
			if !ok {
				return domain.NotFoundError{Entity: EntityHousing, ID: id}
			}
			found = housing
			return nil
		})
	})
	if err != nil {
		return Housing{}, err
	}
	return found, nil
}

// ListHousing returns housing records ordered by creation time, restricted to
// one traffic record when trafficID is non-empty.
func (s *Service) ListHousing(ctx context.Context, trafficID string) ([]Housing, error) {
	var records []Housing
	err := s.run(ctx, opListHousing, func(ctx context.Context) (string, error) {
		return trafficID, s.store.View(ctx, func(view domain.TransactionView) error {
			if trafficID == "" {
				records = view.ListHousing()
				return nil
			}
			records = view.ScanHousing(func(h Housing) bool { return h.TrafficID == trafficID })
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortHousing(records)
	return records, nil
}
