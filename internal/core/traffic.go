package core

import (
	"context"

	"trafficcap/pkg/domain"
)

// CreateTraffic validates the payload and stores a new traffic record,
// returning its generated identifier.
func (s *Service) CreateTraffic(ctx context.Context, payload TrafficPayload) (string, error) {
	var id string
	err := s.run(ctx, opCreateTraffic, func(ctx context.Context) (string, error) {
		if err := payload.Validate(domain.OpCreateTraffic); err != nil {
			return "", err
		}
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			created, err := tx.CreateTraffic(Traffic{RoadName: payload.RoadName, TrafficLimit: payload.Limit})
			if err != nil {
				return err
			}
			id = created.ID
			return nil
		})
		return id, err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// EditTrafficLimit overwrites the road name and limit of an existing traffic
// record. Housing already allocated against it is left untouched, so a lowered
// limit may leave the record over-allocated.
func (s *Service) EditTrafficLimit(ctx context.Context, id string, payload TrafficPayload) (Traffic, error) {
	var updated Traffic
	err := s.run(ctx, opEditTrafficLimit, func(ctx context.Context) (string, error) {
		if id == "" {
			return "", &domain.ValidationError{Operation: domain.OpEditTrafficLimit, Reason: "invalid ID"}
		}
		unlock := s.locks.Lock(id)
		defer unlock()

		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindTraffic(id); !ok {
				return domain.NotFoundError{Entity: EntityTraffic, ID: id}
			}
			if err := payload.Validate(domain.OpEditTrafficLimit); err != nil {
				return err
			}
			var err error
			updated, err = tx.UpdateTraffic(id, func(t *Traffic) error {
				t.RoadName = payload.RoadName
				t.TrafficLimit = payload.Limit
				return nil
			})
			return err
		})
		return id, err
	})
	if err != nil {
		return Traffic{}, err
	}
	return updated, nil
}

// GetTraffic returns the traffic record with the given id.
func (s *Service) GetTraffic(ctx context.Context, id string) (Traffic, error) {
	var found Traffic
	err := s.run(ctx, opGetTraffic, func(ctx context.Context) (string, error) {
		return id, s.store.View(ctx, func(view domain.TransactionView) error {
			traffic, ok := view.FindTraffic(id)
			if !ok {
				return domain.NotFoundError{Entity: EntityTraffic, ID: id}
			}
			found = traffic
			return nil
		})
	})
	if err != nil {
		return Traffic{}, err
	}
	return found, nil
}

// ListTraffic returns every traffic record ordered by creation time.
func (s *Service) ListTraffic(ctx context.Context) ([]Traffic, error) {
	var records []Traffic
	err := s.run(ctx, opListTraffic, func(ctx context.Context) (string, error) {
		return "", s.store.View(ctx, func(view domain.TransactionView) error {
			records = view.ListTraffic()
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortTraffic(records)
	return records, nil
}
