package companies

import "domainfinder/internal/domain"

// Revenue heuristic in NOK. Per-head rates fall tier to tier; the figures are
// deliberately coarse.
const (
	RevenueFloor int64 = 1_000_000

	RateSmall     int64 = 2_000_000 // 1-10 employees
	RateMedium    int64 = 1_500_000 // 11-50
	RateLarge     int64 = 1_200_000 // 51-250
	RateVeryLarge int64 = 1_000_000 // >250
)

// ClassifySize buckets an employee count. Upper bounds are inclusive.
func ClassifySize(employees int) domain.SizeCategory {
	switch {
	case employees <= 0:
		return domain.SizeMicro
	case employees <= 10:
		return domain.SizeSmall
	case employees <= 50:
		return domain.SizeMedium
	case employees <= 250:
		return domain.SizeLarge
	default:
		return domain.SizeVeryLarge
	}
}

// RateFor returns the per-head rate applied to a given employee count.
func RateFor(employees int) int64 {
	switch ClassifySize(employees) {
	case domain.SizeSmall:
		return RateSmall
	case domain.SizeMedium:
		return RateMedium
	case domain.SizeLarge:
		return RateLarge
	case domain.SizeVeryLarge:
		return RateVeryLarge
	}
	return 0
}

// EstimateRevenue returns nil when the count is unknown (ok=false) so callers
// can tell an absent estimate from the zero-employee floor.
func EstimateRevenue(employees int, ok bool) *int64 {
	if !ok || employees < 0 {
		return nil
	}
	var v int64
	if employees == 0 {
		v = RevenueFloor
	} else {
		v = int64(employees) * RateFor(employees)
	}
	return &v
}

// Classify derives size, industry and revenue estimate for an entity. It
// never fails and never modifies the entity.
func Classify(e domain.Entity) domain.ClassifiedEntity {
	employees, ok := e.EmployeeCount()
	size := domain.SizeMicro
	if ok {
		size = ClassifySize(employees)
	}
	return domain.ClassifiedEntity{
		Entity:           e,
		Size:             size,
		Industry:         IndustryCategory(e.IndustryCode()),
		EstimatedRevenue: EstimateRevenue(employees, ok),
	}
}
