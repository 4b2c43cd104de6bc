package ports

import (
	"context"

	"domainfinder/internal/domain"
)

// Registry is the business register: paged search and lookup by
// organisation number.
type Registry interface {
	Search(ctx context.Context, q SearchQuery) (SearchPage, error)
	Lookup(ctx context.Context, orgNumber string) (entity domain.Entity, found bool, err error)
	// SearchActive pages through the register until max non-deleted entities
	// are collected. On error it returns what it accumulated with the error.
	SearchActive(ctx context.Context, max int) ([]domain.Entity, error)
	// GetAll lists up to maxPages pages, deleted entities included.
	GetAll(ctx context.Context, maxPages int) ([]domain.Entity, error)
}

type SearchQuery struct {
	Name string
	Page int
	Size int
}

type SearchPage struct {
	Entities   []domain.Entity
	Number     int
	TotalPages int
}

// Verifier checks whether a candidate domain exists. Check never fails; all
// failures map to an outcome.
type Verifier interface {
	Check(ctx context.Context, host string) domain.VerifyOutcome
	Verify(ctx context.Context, host string) bool
}

// Discoverer finds the verified domains of one entity.
type Discoverer interface {
	Discover(ctx context.Context, e domain.Entity) []string
}

// Pipeline runs ranking plus discovery and enriches single companies.
type Pipeline interface {
	Run(ctx context.Context, params domain.RunParams, progress func(float64)) (domain.Report, error)
	Enrich(ctx context.Context, orgNumber string) (domain.Result, error)
}

// Runs enqueues and tracks ranking runs.
type Runs interface {
	Enqueue(ctx context.Context, params domain.RunParams) (runID string, err error)
	Status(ctx context.Context, runID string) (status string, progress float64, err error)
	Results(ctx context.Context, runID string) (domain.Report, error)
}

// Domains verifies ad-hoc URLs and remembers the outcome.
type Domains interface {
	Check(ctx context.Context, rawURL string) (domain.DomainRecord, error)
	Latest(ctx context.Context, registrable string) (domain.DomainRecord, error)
}

// ErrNotFound is returned by repositories and services for missing records.
var ErrNotFound = errString("not found")

type errString string

func (e errString) Error() string { return string(e) }
