package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httpadapter "domainfinder/internal/adapters/http"
	pg "domainfinder/internal/adapters/postgres"
	"domainfinder/internal/app"
	"domainfinder/internal/config"
	"domainfinder/internal/logger"
	"domainfinder/internal/metrics"
	ports "domainfinder/internal/ports"
	profsvc "domainfinder/internal/services/profiles"
	scansvc "domainfinder/internal/services/scanner"
	scanworker "domainfinder/internal/workers/scanrunner"
)

func main() {
	cfg, err := config.Load(nil)
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

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required for Postgres adapters")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect error", zap.Error(err))
	}
	defer db.Close()

	// Wire repositories to services (ports)
	var _ ports.DomainRepository = db
	var _ ports.RunRepository = db
	var _ ports.ResultRepository = db
	var _ ports.JobRepository = db

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a, err := app.New(ctx, cfg, log, m, db)
	if err != nil {
		log.Fatal("wiring error", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	scanner := scansvc.New(db, db)
	profiles := profsvc.New(a.Verifier, db)

	processor := scanworker.PipelineProcessor{Runs: db, Jobs: db, Results: db, Pipeline: a.Pipeline, Log: log}
	srv := httpadapter.New(httpadapter.Deps{
		Runs:      scanner,
		Pipeline:  a.Pipeline,
		Domains:   profiles,
		Jobs:      db,
		Processor: processor,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Log:       log,
	})
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	// Optional background job workers
	if cfg.ScanWorkers > 0 {
		go scanworker.Run(ctx, db, processor, cfg.ScanWorkers, 500*time.Millisecond, log)
		log.Info("scan workers started", zap.Int("workers", cfg.ScanWorkers))
	}

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Info("listening", zap.String("addr", cfg.ListenAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}
}
