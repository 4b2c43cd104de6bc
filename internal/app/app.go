// Package app assembles the registry client, verifier chain and pipeline
// shared by the CLI and the server.
package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"domainfinder/internal/adapters/brreg"
	"domainfinder/internal/adapters/cache"
	"domainfinder/internal/adapters/netcheck"
	"domainfinder/internal/adapters/websites"
	"domainfinder/internal/config"
	"domainfinder/internal/metrics"
	"domainfinder/internal/ports"
	"domainfinder/internal/services/companies"
	"domainfinder/internal/services/discovery"
	"domainfinder/internal/services/profiles"
	"domainfinder/internal/services/scanner"
)

type App struct {
	Registry *brreg.Client
	Verifier ports.Verifier
	Pipeline *scanner.Pipeline

	closers []io.Closer
}

// New wires the components. domains may be nil; when set, verified outcomes
// are recorded there.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, m *metrics.Metrics, domains ports.DomainRepository) (*App, error) {
	a := &App{}

	a.Registry = brreg.New(brreg.Config{
		BaseURL:           cfg.Registry.BaseURL,
		UserAgent:         cfg.Registry.UserAgent,
		Timeout:           cfg.Registry.Timeout,
		PageSize:          cfg.Registry.PageSize,
		RequestsPerSecond: cfg.Registry.RequestsPerSecond,
	}, brreg.WithLogger(log), brreg.WithMetrics(m))

	var verifier ports.Verifier = netcheck.New(netcheck.Config{
		DNSTimeout:   cfg.Verifier.DNSTimeout,
		ProbeTimeout: cfg.Verifier.ProbeTimeout,
		UserAgent:    cfg.Verifier.UserAgent,
	}, netcheck.WithLogger(log), netcheck.WithMetrics(m))

	var store cache.Store
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("verification cache: %w", err)
		}
		a.closers = append(a.closers, rs)
		store = rs
	} else {
		store = cache.NewMemoryStore()
	}
	verifier = cache.NewVerifier(verifier, store, cfg.CacheTTL, log, m)
	if domains != nil {
		verifier = profiles.NewRecordingVerifier(verifier, domains, log)
	}
	a.Verifier = verifier

	opts := []discovery.Option{
		discovery.WithWorkers(cfg.Discovery.Workers),
		discovery.WithLogger(log),
		discovery.WithMetrics(m),
	}
	if cfg.Discovery.HarvestLinks {
		opts = append(opts, discovery.WithExpander(websites.New(websites.Config{
			Timeout:   cfg.Verifier.ProbeTimeout,
			UserAgent: cfg.Verifier.UserAgent,
			MaxPages:  cfg.Discovery.HarvestPages,
		}, websites.WithLogger(log))))
	}
	discoverer := discovery.New(verifier, opts...)

	pipelineOpts := []scanner.PipelineOption{
		scanner.WithEntityWorkers(cfg.Pipeline.EntityWorkers),
		scanner.WithLogger(log),
		scanner.WithMetrics(m),
	}
	if cfg.Pipeline.IncludeDeleted {
		pipelineOpts = append(pipelineOpts, scanner.WithDeletedEntities(cfg.Registry.PageSize))
	}
	a.Pipeline = scanner.NewPipeline(a.Registry, companies.New(log), discoverer, pipelineOpts...)
	return a, nil
}

func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
