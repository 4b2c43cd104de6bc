// Package netcheck decides whether a candidate domain is real: it must
// resolve. An http/https probe runs afterwards but only refines the outcome.
package netcheck

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"domainfinder/internal/domain"
	"domainfinder/internal/metrics"
)

const (
	DefaultDNSTimeout   = 5 * time.Second
	DefaultProbeTimeout = 5 * time.Second
	DefaultUserAgent    = "Norwegian-Companies-Domain-Finder/1.0"
)

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Prober reports whether anything answers at rawURL.
type Prober interface {
	Probe(ctx context.Context, rawURL string) error
}

type Config struct {
	DNSTimeout   time.Duration
	ProbeTimeout time.Duration
	UserAgent    string
}

type Option func(*Verifier)

func WithResolver(r Resolver) Option { return func(v *Verifier) { v.resolver = r } }

func WithProber(p Prober) Option { return func(v *Verifier) { v.prober = p } }

func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) {
		if l == nil {
			l = zap.NewNop()
		}
		v.log = l.Named("netcheck")
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(v *Verifier) { v.metrics = m } }

// Verifier checks candidate domains. Safe for concurrent use.
type Verifier struct {
	resolver     Resolver
	prober       Prober
	dnsTimeout   time.Duration
	probeTimeout time.Duration
	log          *zap.Logger
	metrics      *metrics.Metrics
}

func New(cfg Config, opts ...Option) *Verifier {
	if cfg.DNSTimeout <= 0 {
		cfg.DNSTimeout = DefaultDNSTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	v := &Verifier{
		resolver:     net.DefaultResolver,
		dnsTimeout:   cfg.DNSTimeout,
		probeTimeout: cfg.ProbeTimeout,
		log:          zap.NewNop(),
	}
	for _, o := range opts {
		o(v)
	}
	if v.prober == nil {
		v.prober = NewHTTPProber(NewHTTPClient(cfg.ProbeTimeout), cfg.UserAgent)
	}
	return v
}

// Verify is the public boolean contract: true when the name resolved.
func (v *Verifier) Verify(ctx context.Context, host string) bool {
	return v.Check(ctx, host).Verified()
}

// Check resolves host and, when it resolves, probes http then https.
// It never returns an error; every failure maps to an outcome.
func (v *Verifier) Check(ctx context.Context, host string) domain.VerifyOutcome {
	outcome := v.check(ctx, host)
	v.metrics.ObserveVerification(outcome.String())
	v.log.Debug("verified candidate", zap.String("domain", host), zap.Stringer("outcome", outcome))
	return outcome
}

func (v *Verifier) check(ctx context.Context, host string) domain.VerifyOutcome {
	host, ok := NormalizeHost(host)
	if !ok {
		return domain.OutcomeDNSFailure
	}

	dctx, cancel := context.WithTimeout(ctx, v.dnsTimeout)
	addrs, err := v.resolver.LookupHost(dctx, host)
	timedOut := dctx.Err() != nil
	cancel()
	if err != nil {
		if timedOut || isTimeout(err) {
			return domain.OutcomeTimeout
		}
		return domain.OutcomeDNSFailure
	}
	if len(addrs) == 0 {
		return domain.OutcomeDNSFailure
	}

	for _, scheme := range []string{"http", "https"} {
		if ctx.Err() != nil {
			break
		}
		pctx, cancel := context.WithTimeout(ctx, v.probeTimeout)
		err := v.prober.Probe(pctx, scheme+"://"+host+"/")
		cancel()
		if err == nil {
			return domain.OutcomeResolved
		}
		v.log.Debug("probe failed", zap.String("domain", host), zap.String("scheme", scheme), zap.Error(err))
	}
	return domain.OutcomeUnreachable
}

// NormalizeHost lower-cases and trims a bare host name. Anything carrying a
// scheme, path, port or whitespace inside is rejected.
func NormalizeHost(host string) (string, bool) {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" || len(host) > 253 || strings.ContainsAny(host, "/:@ \t\r\n") {
		return "", false
	}
	return host, true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout
	}
	return false
}
