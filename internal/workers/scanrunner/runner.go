package scanrunner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"domainfinder/internal/ports"
)

// RunProcessor performs the work for a job's run id.
type RunProcessor interface {
	Process(ctx context.Context, runID string) error
}

// PipelineProcessor runs the ranking pipeline for a stored run, streams its
// progress to the run row and stores the report.
type PipelineProcessor struct {
	Runs     ports.RunRepository
	Jobs     ports.JobRepository
	Results  ports.ResultRepository
	Pipeline ports.Pipeline
	Log      *zap.Logger
}

func (p PipelineProcessor) Process(ctx context.Context, runID string) error {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	run, err := p.Runs.Get(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	report, err := p.Pipeline.Run(ctx, run.Params, func(frac float64) {
		if err := p.Jobs.UpdateRunProgress(ctx, runID, frac); err != nil && ctx.Err() == nil {
			log.Warn("progress update failed", zap.String("run_id", runID), zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	return p.Results.SaveReport(ctx, runID, report)
}

// Run starts worker goroutines that claim jobs and process them.
func Run(ctx context.Context, repo ports.JobRepository, processor RunProcessor, concurrency int, pollInterval time.Duration, log *zap.Logger) {
	if concurrency < 1 {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("scanrunner")
	jobsCh := make(chan ports.RunJob, concurrency)

	// dispatcher loop
	go func() {
		defer close(jobsCh)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						if ctx.Err() == nil {
							log.Error("job claim error", zap.Error(err))
						}
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						// claimed but never started; leave it failed rather than running forever
						_ = repo.MarkFailed(ctx, job.ID, "shutdown before start")
						return
					}
				}
			}
		}
	}()

	// workers
	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				complete(ctx, repo, processor, job, log.With(zap.Int("worker", idx)))
			}
		}(i)
	}
}

func complete(ctx context.Context, repo ports.JobRepository, processor RunProcessor, job ports.RunJob, log *zap.Logger) {
	start := time.Now()
	if err := processor.Process(ctx, job.RunID); err != nil {
		_ = repo.MarkFailed(ctx, job.ID, err.Error())
		log.Error("job failed", zap.String("job_id", job.ID), zap.String("run_id", job.RunID), zap.Error(err))
		return
	}
	if err := repo.MarkCompleted(ctx, job.ID); err != nil {
		log.Error("complete err", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	log.Info("job completed", zap.String("run_id", job.RunID), zap.Duration("took", time.Since(start)))
}

// ErrAlreadyStarted is returned by ProcessInline when no queued job exists
// for the run.
var ErrAlreadyStarted = errors.New("run already started or unknown")

// ProcessInline starts and processes a specific run synchronously using the same processor logic
// as the background workers. It marks the job as running, calls processor.Process, and completes or fails.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor RunProcessor, runID string) error {
	jobID, err := repo.StartJobForRun(ctx, runID)
	if errors.Is(err, ports.ErrNotFound) {
		return ErrAlreadyStarted
	}
	if err != nil {
		return err
	}
	if err := processor.Process(ctx, runID); err != nil {
		_ = repo.MarkFailed(ctx, jobID, err.Error())
		return err
	}
	return repo.MarkCompleted(ctx, jobID)
}
