package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/probekit/probekit/internal/common/apperrors"
	"github.com/probekit/probekit/internal/common/uuid"
	"github.com/probekit/probekit/internal/probekit/config"
)

// sweepInterval is how often the expire sweep runs.
const sweepInterval = 10 * time.Second

// Manager owns all API-testing sessions for the process. It is created once
// at startup with the effective configuration and injected into the tool
// handlers; Shutdown clears all sessions.
type Manager struct {
	cfg     *config.EffectiveConfig
	limiter *rateLimiter
	client  *http.Client
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewManager creates a session manager governed by the given configuration.
func NewManager(cfg *config.EffectiveConfig) *Manager {
	m := &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		now:      time.Now,
		client: &http.Client{
			// Per-attempt timeouts come from request contexts; the client
			// ceiling is a backstop.
			Timeout: cfg.MaxRequestTimeout() + time.Second,
		},
		stopSweep: make(chan struct{}),
	}
	if cfg.Security.RateLimitEnabled {
		m.limiter = newRateLimiter(cfg.Security.MaxRequestsPerSecond, time.Second, m.now)
	}
	return m
}

// Start launches the periodic expire sweep. The sweep touches only session
// bookkeeping and never waits on an in-flight request.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopSweep:
				return
			case <-ticker.C:
				m.Expire()
			}
		}
	}()
}

// GetOrCreate returns the live session with the given id, bumping its
// activity timestamp, or creates one. An empty id generates a fresh unique
// id. A known-but-reaped id starts over with fresh history. Fails with
// ErrSessionLimitExceeded when creating would exceed maxSessions: in-flight
// work is protected, so new sessions are rejected rather than evicting an
// active one.
func (m *Manager) GetOrCreate(id string) (*Session, apperrors.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}

	now := m.now()
	expiry := m.cfg.SessionTimeout()

	if id != "" {
		if s, exists := m.sessions[id]; exists {
			s.mu.Lock()
			live := s.liveStatus(now, expiry)
			if live == StatusActive || live == StatusIdle {
				s.status = StatusActive
				s.lastActivityAt = now
				s.mu.Unlock()
				return s, nil
			}
			s.status = StatusExpired
			s.mu.Unlock()
			delete(m.sessions, id)
		}
	} else {
		id = uuid.New().String()
	}

	if m.liveCountLocked(now, expiry) >= m.cfg.Security.MaxSessions {
		return nil, ErrSessionLimitExceeded.Msg(
			fmt.Sprintf("creating session %s would exceed the limit of %d", id, m.cfg.Security.MaxSessions))
	}

	s := &Session{
		id:             id,
		createdAt:      now,
		lastActivityAt: now,
		status:         StatusActive,
		maxHistory:     m.cfg.Security.MaxHistoryEntries,
		logger:         log.With().Str("session_id", id).Logger(),
	}
	m.sessions[id] = s
	s.logger.Debug().Msg("session created")
	return s, nil
}

// Status returns a point-in-time snapshot of the session. A session past its
// idle window is treated as reaped even if the sweep has not run yet.
func (m *Manager) Status(id string) (Snapshot, apperrors.Error) {
	m.mu.Lock()
	s, exists := m.sessions[id]
	m.mu.Unlock()
	if !exists {
		return Snapshot{}, ErrSessionNotFound.Msg(fmt.Sprintf("session not found: %s", id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := m.now()
	expiry := m.cfg.SessionTimeout()
	if st := s.liveStatus(now, expiry); st == StatusExpired || st == StatusClosed {
		return Snapshot{}, ErrSessionNotFound.Msg(fmt.Sprintf("session not found: %s", id))
	}
	return s.snapshot(now, expiry), nil
}

// Close marks the session closed and removes it from accounting.
func (m *Manager) Close(id string) apperrors.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, exists := m.sessions[id]
	if !exists {
		return ErrSessionNotFound.Msg(fmt.Sprintf("session not found: %s", id))
	}
	s.mu.Lock()
	s.status = StatusClosed
	s.mu.Unlock()
	delete(m.sessions, id)
	s.logger.Debug().Msg("session closed")
	return nil
}

// Expire scans all sessions and reaps any whose last activity exceeds the
// session timeout. Reaped sessions are excluded from maxSessions accounting
// and from GetOrCreate lookups; reusing their id starts fresh history.
func (m *Manager) Expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	expiry := m.cfg.SessionTimeout()
	for id, s := range m.sessions {
		s.mu.Lock()
		if s.liveStatus(now, expiry) == StatusExpired {
			s.status = StatusExpired
			s.mu.Unlock()
			delete(m.sessions, id)
			s.logger.Info().Msg("session expired")
			continue
		}
		s.mu.Unlock()
	}
}

// ActiveCount returns the number of sessions counted against maxSessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveCountLocked(m.now(), m.cfg.SessionTimeout())
}

// liveCountLocked counts non-expired sessions. Callers must hold m.mu.
func (m *Manager) liveCountLocked(now time.Time, expiry time.Duration) int {
	count := 0
	for _, s := range m.sessions {
		s.mu.Lock()
		st := s.liveStatus(now, expiry)
		s.mu.Unlock()
		if st != StatusExpired && st != StatusClosed {
			count++
		}
	}
	return count
}

// Shutdown stops the sweep, closes all sessions, and clears the store.
// The manager rejects further operations afterwards.
func (m *Manager) Shutdown() {
	m.sweepOnce.Do(func() { close(m.stopSweep) })
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.mu.Lock()
		s.status = StatusClosed
		s.mu.Unlock()
		delete(m.sessions, id)
	}
	m.closed = true
	log.Debug().Msg("session manager shut down")
}
