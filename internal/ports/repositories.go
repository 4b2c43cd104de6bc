package ports

import (
	"context"

	"domainfinder/internal/domain"
)

// DomainRepository stores the last verification outcome per registrable
// domain (eTLD+1).
type DomainRepository interface {
	Upsert(ctx context.Context, rec domain.DomainRecord) (domainID string, err error)
	GetLatest(ctx context.Context, registrable string) (rec domain.DomainRecord, found bool, err error)
}

// RunRepository manages run records.
type RunRepository interface {
	Create(ctx context.Context, params domain.RunParams) (runID string, err error)
	Get(ctx context.Context, runID string) (domain.Run, error)
	Status(ctx context.Context, runID string) (status string, progress float64, err error)
}

// ResultRepository stores the report of a finished run.
type ResultRepository interface {
	SaveReport(ctx context.Context, runID string, report domain.Report) error
	LoadReport(ctx context.Context, runID string) (domain.Report, error)
}
