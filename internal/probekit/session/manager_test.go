package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probekit/probekit/internal/probekit/config"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() *config.EffectiveConfig {
	return &config.EffectiveConfig{
		Features: map[string]bool{config.FeatureAPITools: true},
		Tools: map[string]config.ToolSettings{
			"api_request": {TimeoutMs: 2000, MaxRetries: 2, RetryDelayMs: 1},
		},
		Security: config.SecurityConfig{
			MaxSessions:           25,
			MaxHistoryEntries:     100,
			MaxRequestsPerSecond:  1000,
			SessionTimeoutSeconds: 300,
			MaxRequestTimeoutMs:   5000,
			RetryableStatuses:     []int{500, 502, 503, 504},
			RedactHeaders:         []string{"Authorization", "Cookie", "X-Api-Key"},
		},
	}
}

func newTestManager(t *testing.T, cfg *config.EffectiveConfig) (*Manager, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	m := NewManager(cfg)
	m.now = clk.Now
	t.Cleanup(m.Shutdown)
	return m, clk
}

func TestGetOrCreateGeneratesID(t *testing.T) {
	m, _ := newTestManager(t, testConfig())

	s, err := m.GetOrCreate("")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())

	s2, err := m.GetOrCreate("")
	require.NoError(t, err)
	assert.NotEqual(t, s.ID(), s2.ID())
}

func TestGetOrCreateReturnsExisting(t *testing.T) {
	m, _ := newTestManager(t, testConfig())

	s, err := m.GetOrCreate("sess-1")
	require.NoError(t, err)
	again, err := m.GetOrCreate("sess-1")
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestSessionLimitRejectsNew(t *testing.T) {
	cfg := testConfig()
	cfg.Security.MaxSessions = 2
	m, _ := newTestManager(t, cfg)

	_, err := m.GetOrCreate("a")
	require.NoError(t, err)
	_, err = m.GetOrCreate("b")
	require.NoError(t, err)

	_, err = m.GetOrCreate("c")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionLimitExceeded)

	// Existing sessions are still reachable at the limit.
	_, err = m.GetOrCreate("a")
	assert.NoError(t, err)
}

func TestStatusIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, testConfig())

	s, err := m.GetOrCreate("sess-1")
	require.NoError(t, err)
	before := s.lastActivityAt

	snap1, err := m.Status("sess-1")
	require.NoError(t, err)
	snap2, err := m.Status("sess-1")
	require.NoError(t, err)
	assert.Equal(t, snap1, snap2)

	// Status queries do not count as activity.
	assert.Equal(t, before, s.lastActivityAt)
}

func TestStatusUnknownSession(t *testing.T) {
	m, _ := newTestManager(t, testConfig())

	_, err := m.Status("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStatusReportsIdle(t *testing.T) {
	m, clk := newTestManager(t, testConfig())

	_, err := m.GetOrCreate("sess-1")
	require.NoError(t, err)

	clk.Advance(idleAfter + time.Second)
	snap, err := m.Status("sess-1")
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, snap.Status)
}

func TestExpireSweepReapsIdleSessions(t *testing.T) {
	cfg := testConfig()
	cfg.Security.SessionTimeoutSeconds = 60
	m, clk := newTestManager(t, cfg)

	_, err := m.GetOrCreate("old")
	require.NoError(t, err)
	clk.Advance(30 * time.Second)
	_, err = m.GetOrCreate("fresh")
	require.NoError(t, err)

	clk.Advance(45 * time.Second)
	m.Expire()

	_, err = m.Status("old")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Status("fresh")
	assert.NoError(t, err)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestExpiredSessionNotFoundBeforeSweep(t *testing.T) {
	cfg := testConfig()
	cfg.Security.SessionTimeoutSeconds = 60
	m, clk := newTestManager(t, cfg)

	_, err := m.GetOrCreate("sess-1")
	require.NoError(t, err)

	// Past the expiry window but before any sweep has run.
	clk.Advance(2 * time.Minute)
	_, err = m.Status("sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReusedIDStartsFreshAfterExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.Security.SessionTimeoutSeconds = 60
	m, clk := newTestManager(t, cfg)

	s, err := m.GetOrCreate("sess-1")
	require.NoError(t, err)
	s.mu.Lock()
	s.appendEntry(HistoryEntry{Attempt: 1, Outcome: OutcomeSuccess})
	s.mu.Unlock()

	clk.Advance(2 * time.Minute)

	fresh, err := m.GetOrCreate("sess-1")
	require.NoError(t, err)
	assert.NotSame(t, s, fresh)
	assert.Empty(t, fresh.history)
	assert.Zero(t, fresh.metrics.RequestCount)
}

func TestExpiredSessionsDoNotCountAgainstLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.MaxSessions = 1
	cfg.Security.SessionTimeoutSeconds = 60
	m, clk := newTestManager(t, cfg)

	_, err := m.GetOrCreate("a")
	require.NoError(t, err)
	clk.Advance(2 * time.Minute)

	// "a" is expired even though the sweep has not reaped it yet.
	_, err = m.GetOrCreate("b")
	assert.NoError(t, err)
}

func TestCloseRemovesSession(t *testing.T) {
	m, _ := newTestManager(t, testConfig())

	_, err := m.GetOrCreate("sess-1")
	require.NoError(t, err)
	require.NoError(t, m.Close("sess-1"))

	_, err = m.Status("sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = m.Close("sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestShutdownRejectsNewSessions(t *testing.T) {
	m, _ := newTestManager(t, testConfig())

	_, err := m.GetOrCreate("sess-1")
	require.NoError(t, err)
	m.Shutdown()

	_, err = m.GetOrCreate("sess-2")
	assert.ErrorIs(t, err, ErrManagerClosed)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestRateLimiterLazyRefill(t *testing.T) {
	clk := newFakeClock()
	l := newRateLimiter(2, time.Second, clk.Now)

	assert.True(t, l.allow())
	assert.True(t, l.allow())
	assert.False(t, l.allow())

	clk.Advance(time.Second)
	assert.True(t, l.allow())
}
