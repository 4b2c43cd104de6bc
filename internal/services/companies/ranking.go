package companies

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"domainfinder/internal/domain"
)

// Service ranks registry entities by estimated revenue.
type Service struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log.Named("companies")}
}

// Rank filters, classifies, sorts and truncates. See the package functions
// for the individual steps.
func (s *Service) Rank(entities []domain.Entity, minEmployees, maxResults int) []domain.ClassifiedEntity {
	filtered := FilterByEmployees(entities, minEmployees)
	s.log.Info("filtered companies",
		zap.Int("input", len(entities)),
		zap.Int("kept", len(filtered)),
		zap.Int("min_employees", minEmployees))

	ranked := Rank(filtered, 0, maxResults)
	s.log.Info("ranked companies", zap.Int("selected", len(ranked)))
	return ranked
}

// FilterByEmployees keeps entities whose employee count is known and at least
// minEmployees. Entities without a count never pass, whatever the threshold.
func FilterByEmployees(entities []domain.Entity, minEmployees int) []domain.Entity {
	out := make([]domain.Entity, 0, len(entities))
	for _, e := range entities {
		if n, ok := e.EmployeeCount(); ok && n >= minEmployees {
			out = append(out, e)
		}
	}
	return out
}

// SortByRevenue sorts descending by estimate, absent counted as 0. The sort
// is stable: equal estimates keep their input order.
func SortByRevenue(classified []domain.ClassifiedEntity) {
	slices.SortStableFunc(classified, func(a, b domain.ClassifiedEntity) int {
		return cmp.Compare(b.RevenueOrZero(), a.RevenueOrZero())
	})
}

// Rank runs filter, classify, sort and truncate. maxResults <= 0 disables
// truncation.
func Rank(entities []domain.Entity, minEmployees, maxResults int) []domain.ClassifiedEntity {
	filtered := FilterByEmployees(entities, minEmployees)
	classified := make([]domain.ClassifiedEntity, len(filtered))
	for i, e := range filtered {
		classified[i] = Classify(e)
	}
	SortByRevenue(classified)
	if maxResults > 0 && len(classified) > maxResults {
		classified = classified[:maxResults]
	}
	return classified
}
