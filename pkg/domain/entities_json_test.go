package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRecordWireNames(t *testing.T) {
	created := time.Date(2024, time.November, 5, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		value  any
		fields []string
		absent []string
	}{
		{
			name:   "traffic",
			value:  Traffic{Base: Base{ID: "t1", CreatedAt: created}, RoadName: "Main St", TrafficLimit: 10},
			fields: []string{"id", "created_at", "road_name", "traffic_limit"},
			absent: []string{"updated_at"},
		},
		{
			name:   "housing",
			value:  Housing{Base: Base{ID: "h1", CreatedAt: created, UpdatedAt: &created}, HousingName: "Block A", NumberOfResidents: 4, TrafficID: "t1"},
			fields: []string{"id", "created_at", "updated_at", "housing_name", "number_of_residents", "traffic_id"},
		},
		{
			name:   "housing response",
			value:  HousingResponse{Msg: HousingCreatedMessage, IsSuccess: true, RemainingLimit: 6},
			fields: []string{"msg", "isSuccess", "remainingLimit"},
			absent: []string{"housing_id"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(tc.value)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var obj map[string]any
			if err := json.Unmarshal(raw, &obj); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			for _, f := range tc.fields {
				if _, ok := obj[f]; !ok {
					t.Fatalf("missing field %q in %s", f, raw)
				}
			}
			for _, f := range tc.absent {
				if _, ok := obj[f]; ok {
					t.Fatalf("unexpected field %q in %s", f, raw)
				}
			}
		})
	}
}
