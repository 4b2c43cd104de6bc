package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"domainfinder/internal/domain"
	"domainfinder/internal/ports"
	"domainfinder/internal/services/companies"
	"domainfinder/internal/services/discovery"
)

type fakeRegistry struct {
	entities []domain.Entity
	err      error
	asked    int
	pages    int
}

func (f *fakeRegistry) Search(context.Context, ports.SearchQuery) (ports.SearchPage, error) {
	return ports.SearchPage{Entities: f.entities}, f.err
}

func (f *fakeRegistry) Lookup(_ context.Context, org string) (domain.Entity, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	for _, e := range f.entities {
		if e.Identifier() == org {
			return e, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeRegistry) SearchActive(_ context.Context, max int) ([]domain.Entity, error) {
	f.asked = max
	var active []domain.Entity
	for _, e := range f.entities {
		if !e.Deleted() {
			active = append(active, e)
		}
	}
	return active, f.err
}

func (f *fakeRegistry) GetAll(_ context.Context, maxPages int) ([]domain.Entity, error) {
	f.pages = maxPages
	return f.entities, f.err
}

type liveSet map[string]bool

func (l liveSet) Check(ctx context.Context, host string) domain.VerifyOutcome {
	if l[host] {
		return domain.OutcomeResolved
	}
	return domain.OutcomeDNSFailure
}

func (l liveSet) Verify(ctx context.Context, host string) bool { return l.Check(ctx, host).Verified() }

// byName discovers one fixed domain per entity name; block names wait for ctx.
type byName struct {
	domains map[string][]string
	block   map[string]bool
}

func (b byName) Discover(ctx context.Context, e domain.Entity) []string {
	if b.block[e.Name()] {
		<-ctx.Done()
		return nil
	}
	return b.domains[e.Name()]
}

func company(id, name string, employees any) domain.Entity {
	e := domain.Entity{domain.FieldIdentifier: id, domain.FieldName: name}
	if employees != nil {
		e[domain.FieldEmployees] = employees
	}
	return e
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestRun_NordicKraftEndToEnd(t *testing.T) {
	reg := &fakeRegistry{entities: []domain.Entity{
		company("900000000", "Nordic Kraft AS", float64(120)),
		company("900000001", "Tiny AS", float64(2)),
		company("900000002", "Unknown AS", nil),
	}}
	live := liveSet{"nordickraft.no": true, "nordic-kraft.com": true, "tiny.no": true}
	p := NewPipeline(reg, companies.New(nil), discovery.New(live), WithClock(func() time.Time { return fixedNow }))

	report, err := p.Run(context.Background(), domain.RunParams{MaxCompanies: 5, MinEmployees: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, 15, reg.asked)

	require.Len(t, report.Companies, 1)
	got := report.Companies[0]
	assert.Equal(t, "900000000", got.OrganizationNumber)
	assert.Equal(t, "large", got.SizeCategory)
	assert.Equal(t, domain.IndustryUnknown, got.Industry)
	require.NotNil(t, got.EstimatedRevenue)
	assert.Equal(t, int64(120*1_200_000), *got.EstimatedRevenue)
	assert.Equal(t, []string{"nordic-kraft.com", "nordickraft.no"}, got.UniqueDomains)

	assert.Equal(t, fixedNow, report.Metadata.GeneratedAt)
	assert.Equal(t, 1, report.Metadata.TotalCompanies)
	assert.Equal(t, 2, report.Metadata.TotalDomains)
}

func TestRun_KeepsRankOrderAndTruncates(t *testing.T) {
	reg := &fakeRegistry{entities: []domain.Entity{
		company("1", "A", float64(15)),
		company("2", "B", float64(300)),
		company("3", "C", float64(40)),
		company("4", "D", float64(11)),
		company("5", "E", float64(100)),
	}}
	var (
		mu    sync.Mutex
		fracs []float64
	)
	p := NewPipeline(reg, nil, byName{}, WithEntityWorkers(3))

	report, err := p.Run(context.Background(), domain.RunParams{MaxCompanies: 3, MinEmployees: 10}, func(f float64) {
		mu.Lock()
		fracs = append(fracs, f)
		mu.Unlock()
	})
	require.NoError(t, err)

	var ids []string
	for _, c := range report.Companies {
		ids = append(ids, c.OrganizationNumber)
		assert.Equal(t, []string{}, c.UniqueDomains)
	}
	assert.Equal(t, []string{"2", "5", "3"}, ids)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, fracs)
	assert.InDelta(t, 1.0, fracs[len(fracs)-1], 1e-9)
	for i := 1; i < len(fracs); i++ {
		assert.Greater(t, fracs[i], fracs[i-1])
	}
}

func TestRun_NoInputData(t *testing.T) {
	p := NewPipeline(&fakeRegistry{}, nil, byName{})
	_, err := p.Run(context.Background(), domain.RunParams{MaxCompanies: 10}, nil)
	assert.ErrorIs(t, err, ErrNoInputData)

	cause := errors.New("registry down")
	p = NewPipeline(&fakeRegistry{err: cause}, nil, byName{})
	_, err = p.Run(context.Background(), domain.RunParams{MaxCompanies: 10}, nil)
	assert.ErrorIs(t, err, ErrNoInputData)
	assert.ErrorIs(t, err, cause)
}

func TestRun_PartialFetchStillRuns(t *testing.T) {
	reg := &fakeRegistry{
		entities: []domain.Entity{company("1", "Kiwi AS", float64(50))},
		err:      errors.New("page 3 failed"),
	}
	p := NewPipeline(reg, nil, byName{domains: map[string][]string{"Kiwi AS": {"kiwi.no"}}})

	report, err := p.Run(context.Background(), domain.RunParams{MaxCompanies: 10, MinEmployees: 10}, nil)
	require.NoError(t, err)
	require.Len(t, report.Companies, 1)
	assert.Equal(t, []string{"kiwi.no"}, report.Companies[0].UniqueDomains)
}

func TestRun_NothingQualifies(t *testing.T) {
	var last float64
	reg := &fakeRegistry{entities: []domain.Entity{company("1", "Tiny", float64(1))}}
	report, err := NewPipeline(reg, nil, byName{}).Run(context.Background(),
		domain.RunParams{MaxCompanies: 10, MinEmployees: 10}, func(f float64) { last = f })
	require.NoError(t, err)
	assert.Empty(t, report.Companies)
	assert.NotNil(t, report.Companies)
	assert.Equal(t, 1.0, last)
}

func TestRun_CancelReturnsFinishedRecords(t *testing.T) {
	reg := &fakeRegistry{entities: []domain.Entity{
		company("1", "Fast", float64(500)),
		company("2", "Slow", float64(100)),
		company("3", "Never", float64(20)),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	disc := byName{
		domains: map[string][]string{"Fast": {"fast.no"}},
		block:   map[string]bool{"Slow": true},
	}
	p := NewPipeline(reg, nil, disc, WithEntityWorkers(1))

	report, err := p.Run(ctx, domain.RunParams{MaxCompanies: 3, MinEmployees: 0}, func(f float64) {
		// the first entity is done; stop the run while the second blocks
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Companies, 1)
	assert.Equal(t, "1", report.Companies[0].OrganizationNumber)
	assert.Equal(t, []string{"fast.no"}, report.Companies[0].UniqueDomains)
}

// signalOnName closes reached once Discover is called for name.
type signalOnName struct {
	name    string
	reached chan struct{}
	once    *sync.Once
}

func (s signalOnName) Discover(_ context.Context, e domain.Entity) []string {
	if e.Name() == s.name {
		s.once.Do(func() { close(s.reached) })
	}
	return nil
}

func TestRun_SlowProgressDoesNotHoldUpWorkers(t *testing.T) {
	reg := &fakeRegistry{entities: []domain.Entity{
		company("1", "A", float64(300)),
		company("2", "B", float64(200)),
		company("3", "C", float64(100)),
	}}
	disc := signalOnName{name: "C", reached: make(chan struct{}), once: &sync.Once{}}
	p := NewPipeline(reg, nil, disc, WithEntityWorkers(2))

	var (
		mu      sync.Mutex
		fracs   []float64
		stalled bool
	)
	report, err := p.Run(context.Background(), domain.RunParams{MaxCompanies: 3, MinEmployees: 0}, func(f float64) {
		mu.Lock()
		first := len(fracs) == 0
		fracs = append(fracs, f)
		mu.Unlock()
		if !first {
			return
		}
		// the third company only starts once another worker has recorded
		// its result while this callback is still running
		select {
		case <-disc.reached:
		case <-time.After(2 * time.Second):
			stalled = true
		}
	})
	require.NoError(t, err)
	assert.False(t, stalled, "workers waited on the progress callback")
	assert.Len(t, report.Companies, 3)

	mu.Lock()
	defer mu.Unlock()
	assert.InDelta(t, 1.0, fracs[len(fracs)-1], 1e-9)
	for i := 1; i < len(fracs); i++ {
		assert.Greater(t, fracs[i], fracs[i-1])
	}
}

func TestRun_IncludesDeletedEntities(t *testing.T) {
	gone := company("2", "Gone", float64(900))
	gone[domain.FieldDeleted] = "2020-01-01"
	reg := &fakeRegistry{entities: []domain.Entity{company("1", "Here", float64(50)), gone}}

	active, err := NewPipeline(reg, nil, byName{}).Run(context.Background(),
		domain.RunParams{MaxCompanies: 5, MinEmployees: 10}, nil)
	require.NoError(t, err)
	require.Len(t, active.Companies, 1)
	assert.Equal(t, "1", active.Companies[0].OrganizationNumber)

	all, err := NewPipeline(reg, nil, byName{}, WithDeletedEntities(20)).Run(context.Background(),
		domain.RunParams{MaxCompanies: 10, MinEmployees: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.pages, "30 entities at 20 per page")
	require.Len(t, all.Companies, 2)
	assert.Equal(t, "2", all.Companies[0].OrganizationNumber)
}

func TestNewPipeline_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPipeline(&fakeRegistry{}, nil, byName{}, WithLogger(nil))
	})
}

func TestEnrich(t *testing.T) {
	reg := &fakeRegistry{entities: []domain.Entity{company("900000000", "Nordic Kraft AS", float64(120))}}
	p := NewPipeline(reg, nil, discovery.New(liveSet{"nordic.no": true}))

	res, err := p.Enrich(context.Background(), "900000000")
	require.NoError(t, err)
	assert.Equal(t, "Nordic Kraft AS", res.BusinessName)
	assert.Equal(t, []string{"nordic.no"}, res.UniqueDomains)
	assert.Equal(t, "large", res.SizeCategory)

	_, err = p.Enrich(context.Background(), "1")
	assert.ErrorIs(t, err, ErrCompanyNotFound)
}
