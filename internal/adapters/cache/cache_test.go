package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"domainfinder/internal/domain"
)

type countingVerifier struct {
	mu       sync.Mutex
	outcomes map[string]domain.VerifyOutcome
	calls    map[string]int
}

func newCountingVerifier(outcomes map[string]domain.VerifyOutcome) *countingVerifier {
	return &countingVerifier{outcomes: outcomes, calls: map[string]int{}}
}

func (c *countingVerifier) Check(_ context.Context, host string) domain.VerifyOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[host]++
	return c.outcomes[host]
}

func (c *countingVerifier) Verify(ctx context.Context, host string) bool {
	return c.Check(ctx, host).Verified()
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (domain.VerifyOutcome, bool, error) {
	return 0, false, errors.New("down")
}

func (brokenStore) Set(context.Context, string, domain.VerifyOutcome, time.Duration) error {
	return errors.New("down")
}

func TestVerifier_CachesOutcome(t *testing.T) {
	inner := newCountingVerifier(map[string]domain.VerifyOutcome{
		"statoil.no": domain.OutcomeResolved,
		"gone.no":    domain.OutcomeDNSFailure,
	})
	v := NewVerifier(inner, NewMemoryStore(), time.Hour, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Equal(t, domain.OutcomeResolved, v.Check(ctx, "statoil.no"))
		assert.False(t, v.Verify(ctx, "gone.no"))
	}
	assert.Equal(t, 1, inner.calls["statoil.no"])
	assert.Equal(t, 1, inner.calls["gone.no"])
}

func TestVerifier_DoesNotCacheTimeouts(t *testing.T) {
	inner := newCountingVerifier(map[string]domain.VerifyOutcome{"slow.no": domain.OutcomeTimeout})
	store := NewMemoryStore()
	v := NewVerifier(inner, store, time.Hour, nil, nil)

	v.Check(context.Background(), "slow.no")
	v.Check(context.Background(), "slow.no")
	assert.Equal(t, 2, inner.calls["slow.no"])
	assert.Zero(t, store.Len())
}

func TestVerifier_StoreErrorsFallThrough(t *testing.T) {
	inner := newCountingVerifier(map[string]domain.VerifyOutcome{"statoil.no": domain.OutcomeUnreachable})
	v := NewVerifier(inner, brokenStore{}, time.Hour, nil, nil)

	assert.True(t, v.Verify(context.Background(), "statoil.no"))
}

func TestMemoryStore_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a.no", domain.OutcomeResolved, time.Minute))
	got, found, err := s.Get(ctx, "a.no")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.OutcomeResolved, got)

	now = now.Add(2 * time.Minute)
	_, found, err = s.Get(ctx, "a.no")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, s.Len())
}

func TestRedisStore_Integration(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, url)
	require.NoError(t, err)
	defer s.Close()

	host := "integration-" + time.Now().Format("150405.000000") + ".no"
	_, found, err := s.Get(ctx, host)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, host, domain.OutcomeUnreachable, time.Minute))
	got, found, err := s.Get(ctx, host)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.OutcomeUnreachable, got)
}
