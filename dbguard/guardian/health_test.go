//go:build unit

package guardian

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// healthGuardian builds a guardian with health checks enabled, stubbed deps,
// a controllable clock, and a counting health query returning healthy.
func healthGuardian(t *testing.T, cfg Config) (*Guardian, *fakeClock, *int) {
	t.Helper()

	cfg.UnhealthyWithoutConnection = true

	g, err := New(cfg)
	require.NoError(t, err)

	stubDeps(t, g, &fakeDB{}, nil)

	clock := newFakeClock()
	g.deps.now = clock.Now

	queries := 0
	g.deps.healthQuery = func(ctx context.Context, db dbresolver.DB, query string) (bool, error) {
		queries++

		return true, nil
	}

	return g, clock, &queries
}

func TestHealthCheck_OptOutAlwaysHealthy(t *testing.T) {
	t.Parallel()

	g, err := New(Config{UnhealthyWithoutConnection: false})
	require.NoError(t, err)

	// Deps stay nil on purpose: the opt-out path must touch nothing.
	assert.True(t, g.HealthCheck(context.Background()))
	assert.Nil(t, g.lastHealthCheck)
	assert.False(t, g.IsConnected())
}

func TestHealthCheck_HealthyAndCached(t *testing.T) {
	t.Parallel()

	g, clock, queries := healthGuardian(t, Config{HealthCheckInterval: 30 * time.Second})

	assert.True(t, g.HealthCheck(context.Background()))
	assert.Equal(t, 1, *queries)

	// Within the window the cached result is served without querying.
	clock.Advance(10 * time.Second)
	assert.True(t, g.HealthCheck(context.Background()))
	assert.Equal(t, 1, *queries)
}

func TestHealthCheck_WindowBoundaryInclusive(t *testing.T) {
	t.Parallel()

	g, clock, queries := healthGuardian(t, Config{HealthCheckInterval: 30 * time.Second})

	assert.True(t, g.HealthCheck(context.Background()))

	// Exactly at the boundary the cached result still counts as fresh.
	clock.Advance(30 * time.Second)
	assert.True(t, g.HealthCheck(context.Background()))
	assert.Equal(t, 1, *queries)

	// One step past it the check runs again.
	clock.Advance(time.Nanosecond)
	assert.True(t, g.HealthCheck(context.Background()))
	assert.Equal(t, 2, *queries)
}

func TestHealthCheck_NegativeResultCached(t *testing.T) {
	t.Parallel()

	g, clock, _ := healthGuardian(t, Config{HealthCheckInterval: 30 * time.Second})

	queryErrs := 0
	g.deps.healthQuery = func(ctx context.Context, db dbresolver.DB, query string) (bool, error) {
		queryErrs++

		return false, errors.New("server has gone away")
	}

	assert.False(t, g.HealthCheck(context.Background()))
	require.NotNil(t, g.lastHealthCheck)
	assert.False(t, g.lastHealthCheck.healthy)

	// A cached unhealthy result is replayed inside the window; it is not
	// confused with "no result yet".
	clock.Advance(10 * time.Second)
	assert.False(t, g.HealthCheck(context.Background()))
	assert.Equal(t, 1, queryErrs)
}

func TestHealthCheck_NoRowsIsUnhealthy(t *testing.T) {
	t.Parallel()

	g, _, _ := healthGuardian(t, Config{})
	g.deps.healthQuery = func(ctx context.Context, db dbresolver.DB, query string) (bool, error) {
		return false, nil
	}

	assert.False(t, g.HealthCheck(context.Background()))
}

func TestHealthCheck_ConnectFailureIsUnhealthy(t *testing.T) {
	t.Parallel()

	g, err := New(Config{UnhealthyWithoutConnection: true})
	require.NoError(t, err)

	stubDeps(t, g, nil, errors.New("refused"))

	assert.False(t, g.HealthCheck(context.Background()))
	require.NotNil(t, g.lastHealthCheck)
	assert.False(t, g.lastHealthCheck.healthy)
}

func TestHealthCheck_LazilyConnects(t *testing.T) {
	t.Parallel()

	g, _, queries := healthGuardian(t, Config{})

	require.False(t, g.IsConnected())
	assert.True(t, g.HealthCheck(context.Background()))
	assert.True(t, g.IsConnected())
	assert.Equal(t, 1, *queries)
}

func TestHealthCheck_HonorsLazyCooldown(t *testing.T) {
	t.Parallel()

	g, err := New(Config{
		UnhealthyWithoutConnection: true,
		ConnectionAttemptInterval:  time.Minute,
		HealthCheckInterval:        time.Second,
	})
	require.NoError(t, err)

	calls := stubDeps(t, g, nil, errors.New("refused"))
	clock := newFakeClock()
	g.deps.now = clock.Now

	assert.False(t, g.HealthCheck(context.Background()))
	assert.Equal(t, 1, calls.opens)

	// The health cache expires but the connect cooldown still holds, so the
	// probe reports unhealthy without re-dialing.
	clock.Advance(2 * time.Second)
	assert.False(t, g.HealthCheck(context.Background()))
	assert.Equal(t, 1, calls.opens)
}

func TestHealthCheck_NilContext(t *testing.T) {
	t.Parallel()

	g, _, _ := healthGuardian(t, Config{})

	assert.True(t, g.HealthCheck(nil)) //nolint:staticcheck
}

func TestHealthCheck_UsesConfiguredQuery(t *testing.T) {
	t.Parallel()

	g, _, _ := healthGuardian(t, Config{HealthCheckQuery: "SELECT 1 FROM heartbeat"})

	var gotQuery string

	g.deps.healthQuery = func(ctx context.Context, db dbresolver.DB, query string) (bool, error) {
		gotQuery = query

		return true, nil
	}

	g.HealthCheck(context.Background())
	assert.Equal(t, "SELECT 1 FROM heartbeat", gotQuery)
}
