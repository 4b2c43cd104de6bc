package scanner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"domainfinder/internal/domain"
	"domainfinder/internal/metrics"
	"domainfinder/internal/ports"
	"domainfinder/internal/services/companies"
)

// FetchFactor is how many registry entities are fetched per wanted result;
// filtering drops many of them.
const FetchFactor = 3

const DefaultEntityWorkers = 4

// Pipeline fetches, ranks and discovers domains for the top entities.
type Pipeline struct {
	registry   ports.Registry
	ranker     *companies.Service
	discoverer ports.Discoverer
	workers    int
	log        *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	// allPageSize > 0 lists the whole register instead of active entities.
	allPageSize int
}

var _ ports.Pipeline = (*Pipeline)(nil)

type PipelineOption func(*Pipeline)

func WithEntityWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithDeletedEntities ranks the whole register, deleted entities included,
// reading as many pages of pageSize as the fetch limit needs.
func WithDeletedEntities(pageSize int) PipelineOption {
	return func(p *Pipeline) { p.allPageSize = pageSize }
}

func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l == nil {
			l = zap.NewNop()
		}
		p.log = l.Named("pipeline")
	}
}

func WithMetrics(m *metrics.Metrics) PipelineOption { return func(p *Pipeline) { p.metrics = m } }

func WithClock(now func() time.Time) PipelineOption { return func(p *Pipeline) { p.now = now } }

func NewPipeline(registry ports.Registry, ranker *companies.Service, discoverer ports.Discoverer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry:   registry,
		ranker:     ranker,
		discoverer: discoverer,
		workers:    DefaultEntityWorkers,
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ranker == nil {
		p.ranker = companies.New(p.log)
	}
	return p
}

// Run ranks the register and discovers domains for the top
// params.MaxCompanies entities. Results keep ranking order. If ctx ends
// early the finished records are returned with ctx's error. progress, when
// not nil, receives the completed fraction after every entity.
func (p *Pipeline) Run(ctx context.Context, params domain.RunParams, progress func(float64)) (domain.Report, error) {
	start := p.now()
	p.log.Info("fetching companies from registry", zap.Int("max_companies", params.MaxCompanies))

	entities, err := p.fetch(ctx, params.MaxCompanies*FetchFactor)
	if err != nil {
		p.log.Warn("registry fetch incomplete, continuing with what was returned",
			zap.Int("fetched", len(entities)), zap.Error(err))
	}
	if len(entities) == 0 {
		if err != nil {
			return domain.Report{}, fmt.Errorf("%w: %w", ErrNoInputData, err)
		}
		return domain.Report{}, ErrNoInputData
	}
	p.log.Info("found active companies", zap.Int("count", len(entities)))

	ranked := p.ranker.Rank(entities, params.MinEmployees, params.MaxCompanies)
	p.metrics.AddRanked(len(ranked))

	results, runErr := p.discoverAll(ctx, ranked, progress)
	report := domain.NewReport(results, p.now())
	p.metrics.ObserveRun(p.now().Sub(start))
	p.log.Info("run finished",
		zap.Int("companies", report.Metadata.TotalCompanies),
		zap.Int("domains", report.Metadata.TotalDomains),
		zap.Bool("complete", runErr == nil))
	return report, runErr
}

func (p *Pipeline) fetch(ctx context.Context, limit int) ([]domain.Entity, error) {
	if p.allPageSize <= 0 {
		return p.registry.SearchActive(ctx, limit)
	}
	pages := (limit + p.allPageSize - 1) / p.allPageSize
	return p.registry.GetAll(ctx, pages)
}

func (p *Pipeline) discoverAll(ctx context.Context, ranked []domain.ClassifiedEntity, progress func(float64)) ([]domain.Result, error) {
	var (
		mu    sync.Mutex
		done  int
		slots = make([]*domain.Result, len(ranked))
		g     errgroup.Group
	)
	progressOut := newProgressReporter(progress)
	g.SetLimit(p.workers)
	for i, c := range ranked {
		if ctx.Err() != nil {
			break
		}
		i, c := i, c
		g.Go(func() error {
			p.log.Info("processing company",
				zap.Int("position", i+1), zap.Int("of", len(ranked)), zap.String("name", c.Entity.Name()))
			domains := p.discoverer.Discover(ctx, c.Entity)
			if ctx.Err() != nil {
				// discovery was cut short; the record would be incomplete
				return nil
			}
			res := domain.NewResult(c, domains)
			logFound(p.log, c.Entity.Name(), domains)

			mu.Lock()
			slots[i] = &res
			done++
			fraction := float64(done) / float64(len(ranked))
			mu.Unlock()

			progressOut.report(fraction)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]domain.Result, 0, len(ranked))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	if len(ranked) == 0 {
		progressOut.report(1)
	}
	return results, ctx.Err()
}

// progressReporter delivers fractions in increasing order without making
// workers wait on a slow callback: while one worker reports, the others only
// record their fraction and the reporting worker delivers the latest one.
type progressReporter struct {
	fn func(float64)

	mu        sync.Mutex
	pending   float64
	reported  float64
	reporting bool
}

func newProgressReporter(fn func(float64)) *progressReporter {
	return &progressReporter{fn: fn, pending: -1, reported: -1}
}

func (r *progressReporter) report(f float64) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	r.pending = max(r.pending, f)
	if r.reporting {
		r.mu.Unlock()
		return
	}
	r.reporting = true
	for r.pending > r.reported {
		next := r.pending
		r.reported = next
		r.mu.Unlock()
		r.fn(next)
		r.mu.Lock()
	}
	r.reporting = false
	r.mu.Unlock()
}

func logFound(log *zap.Logger, name string, domains []string) {
	if len(domains) == 0 {
		log.Debug("no domains found", zap.String("name", name))
		return
	}
	preview := strings.Join(domains[:min(3, len(domains))], ", ")
	if len(domains) > 3 {
		preview += "..."
	}
	log.Info("found domains", zap.String("name", name), zap.String("domains", preview))
}

// Enrich looks one organisation up, classifies it and discovers its domains.
func (p *Pipeline) Enrich(ctx context.Context, orgNumber string) (domain.Result, error) {
	e, found, err := p.registry.Lookup(ctx, orgNumber)
	if err != nil {
		return domain.Result{}, err
	}
	if !found {
		return domain.Result{}, ErrCompanyNotFound
	}
	c := companies.Classify(e)
	return domain.NewResult(c, p.discoverer.Discover(ctx, e)), nil
}
