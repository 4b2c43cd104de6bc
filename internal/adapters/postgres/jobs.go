package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"domainfinder/internal/ports"
)

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.RunJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id, run_id FROM run_jobs
		WHERE status = 'queued'
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&job.ID, &job.RunID)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE run_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
	`, job.ID); err != nil {
		return job, false, err
	}
	if _, err = tx.Exec(ctx, `
		UPDATE runs SET status='running', started_at=COALESCE(started_at, now()) WHERE id=$1
	`, job.RunID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) UpdateRunProgress(ctx context.Context, runID string, progress float64) error {
	progress = min(max(progress, 0), 1)
	_, err := db.Pool.Exec(ctx, `UPDATE runs SET progress=$2 WHERE id=$1`, runID, progress)
	return err
}

// MarkCompleted completes the job and its run atomically.
func (db *DB) MarkCompleted(ctx context.Context, jobID string) error {
	return db.finish(ctx, jobID, "completed", "")
}

// MarkFailed fails the job and its run, keeping reason on both.
func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	return db.finish(ctx, jobID, "failed", reason)
}

func (db *DB) finish(ctx context.Context, jobID, status, reason string) (err error) {
	// the caller's ctx may already be cancelled when a run is aborted
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
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

	var errText *string
	if reason != "" {
		errText = &reason
	}
	var runID string
	if err = tx.QueryRow(ctx, `SELECT run_id FROM run_jobs WHERE id=$1`, jobID).Scan(&runID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE run_jobs SET status=$2, last_error=$3, finished_at=now() WHERE id=$1`,
		jobID, status, errText); err != nil {
		return err
	}
	if status == "completed" {
		_, err = tx.Exec(ctx, `UPDATE runs SET status='completed', progress=1, finished_at=now() WHERE id=$1`, runID)
	} else {
		_, err = tx.Exec(ctx, `UPDATE runs SET status=$2, error=$3, finished_at=now() WHERE id=$1`, runID, status, errText)
	}
	return err
}

// StartJobForRun marks the job for a specific run as running and returns the job id.
func (db *DB) StartJobForRun(ctx context.Context, runID string) (jobID string, err error) {
	if uuid.Validate(runID) != nil {
		return "", ErrNotFound
	}
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

	err = tx.QueryRow(ctx, `
		SELECT id FROM run_jobs
		WHERE run_id = $1 AND status = 'queued'
		FOR UPDATE SKIP LOCKED
	`, runID).Scan(&jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `UPDATE run_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1`, jobID); err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `UPDATE runs SET status='running', started_at=COALESCE(started_at, now()) WHERE id=$1`, runID); err != nil {
		return "", err
	}
	return jobID, nil
}
