package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the domain finder. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Verifications       *prometheus.CounterVec
	VerificationCache   *prometheus.CounterVec
	RegistryRequests    *prometheus.CounterVec
	EntitiesRanked      prometheus.Counter
	CandidatesGenerated prometheus.Counter
	DomainsVerified     prometheus.Counter
	RunDuration         prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "domainfinder_verifications_total",
			Help: "Candidate domain verifications by outcome",
		}, []string{"outcome"}),
		VerificationCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "domainfinder_verification_cache_total",
			Help: "Verification cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		RegistryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "domainfinder_registry_requests_total",
			Help: "Registry API requests by result",
		}, []string{"result"}),
		EntitiesRanked: f.NewCounter(prometheus.CounterOpts{
			Name: "domainfinder_entities_ranked_total",
			Help: "Entities that survived filtering and were ranked",
		}),
		CandidatesGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "domainfinder_candidates_generated_total",
			Help: "Unique candidate domains generated",
		}),
		DomainsVerified: f.NewCounter(prometheus.CounterOpts{
			Name: "domainfinder_domains_verified_total",
			Help: "Candidate domains that verified",
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "domainfinder_run_duration_seconds",
			Help:    "Wall time of complete ranking runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
}

func (m *Metrics) ObserveVerification(outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.VerificationCache.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRegistryRequest(result string) {
	if m == nil {
		return
	}
	m.RegistryRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) AddRanked(n int) {
	if m == nil {
		return
	}
	m.EntitiesRanked.Add(float64(n))
}

func (m *Metrics) AddCandidates(generated, verified int) {
	if m == nil {
		return
	}
	m.CandidatesGenerated.Add(float64(generated))
	m.DomainsVerified.Add(float64(verified))
}

func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}
