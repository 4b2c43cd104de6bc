// Command domainfinder ranks the largest active Norwegian companies by
// estimated revenue and writes the domains found for each of them.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"domainfinder/internal/adapters/output"
	pg "domainfinder/internal/adapters/postgres"
	"domainfinder/internal/adapters/s3sink"
	"domainfinder/internal/app"
	"domainfinder/internal/config"
	"domainfinder/internal/domain"
	"domainfinder/internal/logger"
	"domainfinder/internal/metrics"
	"domainfinder/internal/ports"
	"domainfinder/internal/services/scanner"
)

const previewSize = 10

func main() {
	config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(pflag.CommandLine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("run failed", zap.Error(err))
		stop()
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	m := metrics.New(prometheus.NewRegistry())

	var db *pg.DB
	var domains ports.DomainRepository
	if cfg.DatabaseURL != "" {
		var err error
		db, err = pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		domains = db
	}

	a, err := app.New(ctx, cfg, log, m, domains)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	params := domain.RunParams{MaxCompanies: cfg.Pipeline.MaxCompanies, MinEmployees: cfg.Pipeline.MinEmployees}
	log.Info("starting run",
		zap.Int("max_companies", params.MaxCompanies),
		zap.Int("min_employees", params.MinEmployees))

	start := time.Now()
	report, err := a.Pipeline.Run(ctx, params, progressLogger(log))
	if errors.Is(err, scanner.ErrNoInputData) {
		return err
	}
	if err != nil {
		// Interrupted: keep what finished.
		log.Warn("run interrupted, writing partial results", zap.Error(err))
	}

	if err := write(context.WithoutCancel(ctx), cfg, log, report); err != nil {
		return err
	}
	if db != nil {
		if err := persist(context.WithoutCancel(ctx), db, params, report); err != nil {
			log.Warn("persisting run failed", zap.Error(err))
		}
	}

	var avg float64
	if report.Metadata.TotalCompanies > 0 {
		avg = float64(report.Metadata.TotalDomains) / float64(report.Metadata.TotalCompanies)
	}
	log.Info("run finished",
		zap.Int("companies", report.Metadata.TotalCompanies),
		zap.Int("with_domains", report.CompaniesWithDomains()),
		zap.Int("domains", report.Metadata.TotalDomains),
		zap.Float64("avg_domains_per_company", avg),
		zap.Duration("took", time.Since(start)))
	for i, res := range report.Companies {
		if i == previewSize {
			break
		}
		var revenue int64
		if res.EstimatedRevenue != nil {
			revenue = *res.EstimatedRevenue
		}
		log.Info("top company",
			zap.Int("rank", i+1),
			zap.String("name", res.BusinessName),
			zap.String("org_number", res.OrganizationNumber),
			zap.Int64("estimated_revenue", revenue),
			zap.Strings("domains", res.UniqueDomains))
	}
	return nil
}

func progressLogger(log *zap.Logger) func(float64) {
	last := -10
	return func(p float64) {
		pct := int(p * 100)
		if pct/10 == last/10 && pct != 100 {
			return
		}
		last = pct
		log.Info("progress", zap.Int("percent", pct))
	}
}

func write(ctx context.Context, cfg config.Config, log *zap.Logger, report domain.Report) error {
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	dest := output.Path(cfg.Output.File, format)

	var buf bytes.Buffer
	if err := output.Write(&buf, format, report); err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}

	if s3sink.IsS3URL(dest) {
		sink, err := s3sink.New(ctx, s3sink.Config{
			Region:       cfg.Output.S3Region,
			Endpoint:     cfg.Output.S3Endpoint,
			UsePathStyle: cfg.Output.S3PathStyle,
		}, log)
		if err != nil {
			return err
		}
		return sink.Upload(ctx, dest, format.ContentType(), buf.Bytes())
	}

	if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	log.Info("results written", zap.String("file", dest), zap.String("format", string(format)))
	return nil
}

// persist records the finished report as a completed run.
func persist(ctx context.Context, db *pg.DB, params domain.RunParams, report domain.Report) error {
	_, err := db.SaveCompletedRun(ctx, params, report)
	return err
}
