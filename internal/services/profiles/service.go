// Package profiles keeps the last verification state of registrable domains
// and verifies ad-hoc URLs.
package profiles

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"domainfinder/internal/domain"
	"domainfinder/internal/ports"
)

type Service struct {
	verifier ports.Verifier
	domains  ports.DomainRepository
	now      func() time.Time
}

var _ ports.Domains = (*Service)(nil)

// New returns the service. domains may be nil, in which case checks are not
// remembered and Latest always reports ErrNotFound.
func New(verifier ports.Verifier, domains ports.DomainRepository) *Service {
	return &Service{verifier: verifier, domains: domains, now: time.Now}
}

// Check reduces rawURL to its registrable domain, verifies it and stores the
// outcome.
func (s *Service) Check(ctx context.Context, rawURL string) (domain.DomainRecord, error) {
	registrable, err := Registrable(rawURL)
	if err != nil {
		return domain.DomainRecord{}, err
	}
	rec := domain.DomainRecord{
		RegistrableDomain: registrable,
		Outcome:           s.verifier.Check(ctx, registrable),
		CheckedAt:         s.now().UTC(),
	}
	if s.domains == nil {
		return rec, nil
	}
	id, err := s.domains.Upsert(ctx, rec)
	if err != nil {
		return domain.DomainRecord{}, err
	}
	rec.ID = id
	return rec, nil
}

func (s *Service) Latest(ctx context.Context, registrable string) (domain.DomainRecord, error) {
	if s.domains == nil {
		return domain.DomainRecord{}, ErrNotFound
	}
	rec, found, err := s.domains.GetLatest(ctx, strings.ToLower(registrable))
	if err != nil {
		return domain.DomainRecord{}, err
	}
	if !found {
		return domain.DomainRecord{}, ErrNotFound
	}
	return rec, nil
}

// Registrable returns the eTLD+1 of a URL or bare host name. Hosts that are
// themselves a public suffix are returned unchanged.
func Registrable(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" || !strings.Contains(host, ".") {
		return "", ErrInvalidURL
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		registrable = host
	}
	return registrable, nil
}

// RecordingVerifier stores every verified outcome it sees in a
// DomainRepository. Storage failures are logged and never change the
// outcome.
type RecordingVerifier struct {
	inner   ports.Verifier
	domains ports.DomainRepository
	log     *zap.Logger
	now     func() time.Time
}

var _ ports.Verifier = (*RecordingVerifier)(nil)

func NewRecordingVerifier(inner ports.Verifier, domains ports.DomainRepository, log *zap.Logger) *RecordingVerifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecordingVerifier{inner: inner, domains: domains, log: log.Named("profiles"), now: time.Now}
}

func (r *RecordingVerifier) Check(ctx context.Context, host string) domain.VerifyOutcome {
	outcome := r.inner.Check(ctx, host)
	if !outcome.Verified() {
		return outcome
	}
	_, err := r.domains.Upsert(ctx, domain.DomainRecord{
		RegistrableDomain: host,
		Outcome:           outcome,
		CheckedAt:         r.now().UTC(),
	})
	if err != nil {
		r.log.Warn("store domain outcome", zap.String("host", host), zap.Error(err))
	}
	return outcome
}

func (r *RecordingVerifier) Verify(ctx context.Context, host string) bool {
	return r.Check(ctx, host).Verified()
}

var (
	ErrNotFound   = ports.ErrNotFound
	ErrInvalidURL = errString("invalid url")
)

type errString string

func (e errString) Error() string { return string(e) }
