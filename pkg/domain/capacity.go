package domain

// AllocatedResidents sums the residents of every housing record bound to trafficID.
func AllocatedResidents(view RuleView, trafficID string) (total int, count int) {
	for _, h := range view.ScanHousing(func(h Housing) bool { return h.TrafficID == trafficID }) {
		total += h.NumberOfResidents
		count++
	}
	return total, count
}

// RemainingLimit returns the traffic limit minus allocated residents, floored
// at zero. Empty or unknown identifiers yield zero.
func RemainingLimit(view RuleView, trafficID string) int {
	if trafficID == "" {
		return 0
	}
	traffic, ok := view.FindTraffic(trafficID)
	if !ok {
		return 0
	}
	allocated, _ := AllocatedResidents(view, trafficID)
	return max(0, traffic.TrafficLimit-allocated)
}

// Usage computes the allocation summary for a resolved traffic record.
func Usage(view RuleView, traffic Traffic) CapacityUsage {
	allocated, count := AllocatedResidents(view, traffic.ID)
	return CapacityUsage{
		TrafficID:          traffic.ID,
		RoadName:           traffic.RoadName,
		TrafficLimit:       traffic.TrafficLimit,
		AllocatedResidents: allocated,
		RemainingLimit:     max(0, traffic.TrafficLimit-allocated),
		HousingCount:       count,
		OverAllocated:      allocated > traffic.TrafficLimit,
	}
}
