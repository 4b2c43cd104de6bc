package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"domainfinder/internal/domain"
	"domainfinder/internal/ports"
)

var (
	_ ports.DomainRepository = (*DB)(nil)
	_ ports.RunRepository    = (*DB)(nil)
	_ ports.ResultRepository = (*DB)(nil)
	_ ports.JobRepository    = (*DB)(nil)
)

// DomainRepository

func (db *DB) Upsert(ctx context.Context, rec domain.DomainRecord) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO domains (id, registrable_domain, outcome, checked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (registrable_domain) DO UPDATE
		SET outcome = EXCLUDED.outcome, checked_at = EXCLUDED.checked_at
		RETURNING id
	`, uuid.NewString(), strings.ToLower(rec.RegistrableDomain), rec.Outcome.String(), rec.CheckedAt).Scan(&id)
	return id, err
}

func (db *DB) GetLatest(ctx context.Context, registrable string) (domain.DomainRecord, bool, error) {
	var (
		rec     domain.DomainRecord
		outcome string
	)
	err := db.Pool.QueryRow(ctx, `
		SELECT id, registrable_domain, outcome, checked_at
		FROM domains WHERE registrable_domain = $1
	`, strings.ToLower(registrable)).Scan(&rec.ID, &rec.RegistrableDomain, &outcome, &rec.CheckedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	rec.Outcome = domain.ParseVerifyOutcome(outcome)
	return rec, true, nil
}

// RunRepository

// Create inserts a queued run together with its job row.
func (db *DB) Create(ctx context.Context, params domain.RunParams) (runID string, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	runID = uuid.NewString()
	if _, err = tx.Exec(ctx, `
		INSERT INTO runs (id, max_companies, min_employees, status, progress)
		VALUES ($1, $2, $3, 'queued', 0)
	`, runID, params.MaxCompanies, params.MinEmployees); err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `INSERT INTO run_jobs (id, run_id) VALUES ($1, $2)`, uuid.NewString(), runID); err != nil {
		return "", err
	}
	return runID, nil
}

func (db *DB) Get(ctx context.Context, runID string) (domain.Run, error) {
	if uuid.Validate(runID) != nil {
		return domain.Run{}, ErrNotFound
	}
	var r domain.Run
	err := db.Pool.QueryRow(ctx, `
		SELECT id, max_companies, min_employees, status, progress, created_at, started_at, finished_at
		FROM runs WHERE id = $1
	`, runID).Scan(&r.ID, &r.Params.MaxCompanies, &r.Params.MinEmployees, &r.Status, &r.Progress,
		&r.CreatedAt, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Run{}, ErrNotFound
	}
	return r, err
}

func (db *DB) Status(ctx context.Context, runID string) (string, float64, error) {
	if uuid.Validate(runID) != nil {
		return "", 0, ErrNotFound
	}
	var status string
	var progress float64
	err := db.Pool.QueryRow(ctx, `SELECT status, progress FROM runs WHERE id = $1`, runID).Scan(&status, &progress)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, ErrNotFound
	}
	return status, progress, err
}

// ResultRepository

var resultColumns = []string{
	"run_id", "position", "organization_number", "business_name", "unique_domains",
	"estimated_revenue", "employees", "size_category", "industry", "municipality", "founded", "nace_code",
}

// SaveReport replaces the stored results of a run.
func (db *DB) SaveReport(ctx context.Context, runID string, report domain.Report) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `UPDATE runs SET generated_at = $2 WHERE id = $1`, runID, report.Metadata.GeneratedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err = tx.Exec(ctx, `DELETE FROM run_results WHERE run_id = $1`, runID); err != nil {
		return err
	}
	return copyResults(ctx, tx, runID, report)
}

// SaveCompletedRun records a run that already finished elsewhere, with its
// report, as completed. No job row is created, so workers never pick it up.
func (db *DB) SaveCompletedRun(ctx context.Context, params domain.RunParams, report domain.Report) (runID string, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	runID = uuid.NewString()
	if _, err = tx.Exec(ctx, `
		INSERT INTO runs (id, max_companies, min_employees, status, progress, started_at, finished_at, generated_at)
		VALUES ($1, $2, $3, 'completed', 1, $4, now(), $4)
	`, runID, params.MaxCompanies, params.MinEmployees, report.Metadata.GeneratedAt); err != nil {
		return "", err
	}
	if err = copyResults(ctx, tx, runID, report); err != nil {
		return "", err
	}
	return runID, nil
}

func copyResults(ctx context.Context, tx pgx.Tx, runID string, report domain.Report) error {
	rows := make([][]any, len(report.Companies))
	for i, c := range report.Companies {
		rows[i] = []any{
			runID, i, c.OrganizationNumber, c.BusinessName, c.UniqueDomains,
			c.EstimatedRevenue, c.Employees, c.SizeCategory, c.Industry, c.Municipality, c.Founded, c.NACECode,
		}
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"run_results"}, resultColumns, pgx.CopyFromRows(rows))
	return err
}

func (db *DB) LoadReport(ctx context.Context, runID string) (domain.Report, error) {
	if uuid.Validate(runID) != nil {
		return domain.Report{}, ErrNotFound
	}
	var generatedAt *time.Time
	err := db.Pool.QueryRow(ctx, `SELECT generated_at FROM runs WHERE id = $1`, runID).Scan(&generatedAt)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && generatedAt == nil) {
		return domain.Report{}, ErrNotFound
	}
	if err != nil {
		return domain.Report{}, err
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT organization_number, business_name, unique_domains, estimated_revenue, employees,
		       size_category, industry, municipality, founded, nace_code
		FROM run_results WHERE run_id = $1 ORDER BY position
	`, runID)
	if err != nil {
		return domain.Report{}, err
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Result, error) {
		var r domain.Result
		err := row.Scan(&r.OrganizationNumber, &r.BusinessName, &r.UniqueDomains, &r.EstimatedRevenue,
			&r.Employees, &r.SizeCategory, &r.Industry, &r.Municipality, &r.Founded, &r.NACECode)
		if r.UniqueDomains == nil {
			r.UniqueDomains = []string{}
		}
		return r, err
	})
	if err != nil {
		return domain.Report{}, err
	}
	return domain.NewReport(results, generatedAt.UTC()), nil
}

var ErrNotFound = ports.ErrNotFound
