// Package discovery finds the verified domains of an entity: candidates from
// every strategy are unioned, then verified on a bounded pool.
package discovery

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"domainfinder/internal/domain"
	"domainfinder/internal/metrics"
	"domainfinder/internal/ports"
	"domainfinder/internal/services/candidates"
)

const DefaultWorkers = 8

// Expander proposes further candidates once the first verified set is known,
// e.g. hosts linked from the company's own home page.
type Expander interface {
	Expand(ctx context.Context, e domain.Entity, verified []string) []string
}

type Option func(*Orchestrator)

func WithStrategies(s ...candidates.Strategy) Option {
	return func(o *Orchestrator) { o.strategies = s }
}

func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithExpander(x Expander) Option { return func(o *Orchestrator) { o.expander = x } }

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l == nil {
			l = zap.NewNop()
		}
		o.log = l.Named("discovery")
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

type Orchestrator struct {
	strategies []candidates.Strategy
	verifier   ports.Verifier
	workers    int
	expander   Expander
	log        *zap.Logger
	metrics    *metrics.Metrics
}

var _ ports.Discoverer = (*Orchestrator)(nil)

func New(verifier ports.Verifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		strategies: candidates.DefaultStrategies(),
		verifier:   verifier,
		workers:    DefaultWorkers,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Candidates unions the output of every strategy.
func (o *Orchestrator) Candidates(ctx context.Context, e domain.Entity) candidates.Set {
	out := candidates.Set{}
	for _, s := range o.strategies {
		out.Union(s.Candidates(ctx, e))
	}
	return out
}

// Discover returns the verified candidates of e, sorted. An entity without a
// name yields an empty slice.
func (o *Orchestrator) Discover(ctx context.Context, e domain.Entity) []string {
	cands := o.Candidates(ctx, e)
	verified := o.verifyAll(ctx, cands.Sorted())
	generated := len(cands)

	if o.expander != nil && len(verified) > 0 {
		var extra []string
		for _, h := range o.expander.Expand(ctx, e, verified.Sorted()) {
			if !cands.Has(h) {
				cands.Add(h)
				extra = append(extra, h)
			}
		}
		generated += len(extra)
		verified.Union(o.verifyAll(ctx, extra))
	}

	o.metrics.AddCandidates(generated, len(verified))
	o.log.Debug("discovered domains",
		zap.String("org_number", e.Identifier()),
		zap.Int("candidates", generated),
		zap.Int("verified", len(verified)))
	return verified.Sorted()
}

// verifyAll checks hosts concurrently. Once ctx is done no new checks start;
// the ones already running finish and count.
func (o *Orchestrator) verifyAll(ctx context.Context, hosts []string) candidates.Set {
	var (
		mu  sync.Mutex
		out = candidates.Set{}
		g   errgroup.Group
	)
	g.SetLimit(o.workers)
	for _, h := range hosts {
		if ctx.Err() != nil {
			break
		}
		h := h
		g.Go(func() error {
			if o.verifier.Verify(ctx, h) {
				mu.Lock()
				out.Add(h)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
