// Package cache remembers verification outcomes so repeated runs do not
// re-resolve the same candidates.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"domainfinder/internal/domain"
	"domainfinder/internal/metrics"
	"domainfinder/internal/ports"
)

// Store keeps outcomes for a limited time.
type Store interface {
	Get(ctx context.Context, host string) (outcome domain.VerifyOutcome, found bool, err error)
	Set(ctx context.Context, host string, outcome domain.VerifyOutcome, ttl time.Duration) error
}

// Verifier is a read-through cache in front of another verifier. Timeouts
// are transient and never cached. Store errors fall through to the inner
// verifier.
type Verifier struct {
	inner   ports.Verifier
	store   Store
	ttl     time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

var _ ports.Verifier = (*Verifier)(nil)

func NewVerifier(inner ports.Verifier, store Store, ttl time.Duration, log *zap.Logger, m *metrics.Metrics) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{inner: inner, store: store, ttl: ttl, log: log.Named("cache"), metrics: m}
}

func (v *Verifier) Check(ctx context.Context, host string) domain.VerifyOutcome {
	outcome, found, err := v.store.Get(ctx, host)
	switch {
	case err != nil:
		v.metrics.ObserveCache("error")
		v.log.Warn("cache read failed", zap.String("domain", host), zap.Error(err))
	case found:
		v.metrics.ObserveCache("hit")
		return outcome
	default:
		v.metrics.ObserveCache("miss")
	}

	outcome = v.inner.Check(ctx, host)
	if outcome == domain.OutcomeTimeout {
		return outcome
	}
	if err := v.store.Set(ctx, host, outcome, v.ttl); err != nil {
		v.log.Warn("cache write failed", zap.String("domain", host), zap.Error(err))
	}
	return outcome
}

func (v *Verifier) Verify(ctx context.Context, host string) bool {
	return v.Check(ctx, host).Verified()
}
