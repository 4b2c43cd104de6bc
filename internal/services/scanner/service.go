package scanner

import (
	"context"

	"domainfinder/internal/domain"
	"domainfinder/internal/ports"
)

// Service enqueues ranking runs and reports on them. The work itself is done
// by the scanrunner workers through Pipeline.
type Service struct {
	runs    ports.RunRepository
	results ports.ResultRepository
}

var _ ports.Runs = (*Service)(nil)

func New(runs ports.RunRepository, results ports.ResultRepository) *Service {
	return &Service{runs: runs, results: results}
}

func (s *Service) Enqueue(ctx context.Context, params domain.RunParams) (string, error) {
	if params.MaxCompanies <= 0 || params.MinEmployees < 0 {
		return "", ErrInvalidParams
	}
	return s.runs.Create(ctx, params)
}

func (s *Service) Status(ctx context.Context, runID string) (string, float64, error) {
	return s.runs.Status(ctx, runID)
}

// Results returns the report of a completed run, or ErrRunNotFinished while
// it is still queued or running.
func (s *Service) Results(ctx context.Context, runID string) (domain.Report, error) {
	status, _, err := s.runs.Status(ctx, runID)
	if err != nil {
		return domain.Report{}, err
	}
	if status != StatusCompleted {
		return domain.Report{}, ErrRunNotFinished
	}
	return s.results.LoadReport(ctx, runID)
}

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	ErrNoInputData     = errString("no entities returned by the registry")
	ErrInvalidParams   = errString("max_companies must be positive and min_employees not negative")
	ErrRunNotFinished  = errString("run has not completed")
	ErrCompanyNotFound = errString("company not found")
)

type errString string

func (e errString) Error() string { return string(e) }
