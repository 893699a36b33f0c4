// Package session implements the API-testing session manager: lifecycle of
// concurrent outbound HTTP test sessions, their retry and timeout policy,
// rate limiting, bounded history tracking, and report generation.
//
// Execution on a single session is serialized through a per-session
// execution lock; session bookkeeping lives behind a separate state lock
// that is never held across network I/O, so session creation, status
// queries, and the expire sweep never wait on another session's in-flight
// request.
package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive  Status = "active"
	StatusIdle    Status = "idle"
	StatusExpired Status = "expired"
	StatusClosed  Status = "closed"
)

// idleAfter is how long a session goes without activity before its status
// reads idle. Distinct from the expiry window, which reaps the session.
const idleAfter = 60 * time.Second

// Outcome classifies one recorded attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeRetried Outcome = "retried"
	OutcomeFailed  Outcome = "failed"
)

// RecordedRequest is the request half of a history entry.
type RecordedRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// RecordedResponse is the response half of a history entry. Status 0 means
// the attempt never produced a response (transport failure or timeout).
type RecordedResponse struct {
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	LatencyMs int64             `json:"latency_ms"`
	Error     string            `json:"error,omitempty"`
}

// HistoryEntry records one request/response attempt. Immutable once appended.
type HistoryEntry struct {
	Request   RecordedRequest  `json:"request"`
	Response  RecordedResponse `json:"response"`
	Attempt   int              `json:"attempt"` // 1-based attempt number
	Timestamp time.Time        `json:"timestamp"`
	Outcome   Outcome          `json:"outcome"`
}

// Metrics aggregates per-session request statistics.
type Metrics struct {
	RequestCount   int   `json:"request_count"`
	ErrorCount     int   `json:"error_count"`
	TotalLatencyMs int64 `json:"total_latency_ms"`
}

// AverageLatencyMs returns the mean attempt latency, or 0 with no requests.
func (m Metrics) AverageLatencyMs() int64 {
	if m.RequestCount == 0 {
		return 0
	}
	return m.TotalLatencyMs / int64(m.RequestCount)
}

// Session is a stateful, bounded-history context for a sequence of related
// outbound HTTP test calls. Owned exclusively by the Manager; external
// callers reference it only by id.
type Session struct {
	id             string
	createdAt      time.Time
	lastActivityAt time.Time
	status         Status
	history        []HistoryEntry
	metrics        Metrics
	maxHistory     int
	logger         zerolog.Logger

	// mu guards the bookkeeping fields (status, lastActivityAt, history,
	// metrics) and is never held across network I/O. execMu serializes
	// Execute per session so history order stays consistent; manager-level
	// scans take only mu and never wait on an in-flight request.
	mu     sync.Mutex
	execMu sync.Mutex
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// touch bumps the activity timestamp.
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivityAt = now
	s.mu.Unlock()
}

// record appends a history entry and bumps the activity timestamp.
func (s *Session) record(e HistoryEntry, now time.Time) {
	s.mu.Lock()
	s.appendEntry(e)
	s.lastActivityAt = now
	s.mu.Unlock()
}

// appendEntry adds a history entry, evicting the oldest entry first when the
// bound is reached. Callers must hold s.mu.
func (s *Session) appendEntry(e HistoryEntry) {
	if len(s.history) >= s.maxHistory {
		evict := len(s.history) - s.maxHistory + 1
		s.history = append(s.history[:0], s.history[evict:]...)
	}
	s.history = append(s.history, e)
	s.metrics.RequestCount++
	s.metrics.TotalLatencyMs += e.Response.LatencyMs
	if e.Outcome != OutcomeSuccess {
		s.metrics.ErrorCount++
	}
}

// liveStatus computes the externally visible status at the given instant.
// Callers must hold s.mu.
func (s *Session) liveStatus(now time.Time, expiry time.Duration) Status {
	switch s.status {
	case StatusExpired, StatusClosed:
		return s.status
	}
	idle := now.Sub(s.lastActivityAt)
	if idle > expiry {
		return StatusExpired
	}
	if idle > idleAfter {
		return StatusIdle
	}
	return StatusActive
}

// Snapshot is a point-in-time view of a session for status queries.
type Snapshot struct {
	ID             string    `json:"id"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	HistoryLength  int       `json:"history_length"`
	Metrics        Metrics   `json:"metrics"`
	LastOutcome    Outcome   `json:"last_outcome,omitempty"`
}

// snapshot builds a Snapshot. Callers must hold s.mu.
func (s *Session) snapshot(now time.Time, expiry time.Duration) Snapshot {
	snap := Snapshot{
		ID:             s.id,
		Status:         s.liveStatus(now, expiry),
		CreatedAt:      s.createdAt,
		LastActivityAt: s.lastActivityAt,
		HistoryLength:  len(s.history),
		Metrics:        s.metrics,
	}
	if len(s.history) > 0 {
		snap.LastOutcome = s.history[len(s.history)-1].Outcome
	}
	return snap
}

// historyCopy returns a copy of the retained history. Callers must hold s.mu.
func (s *Session) historyCopy() []HistoryEntry {
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}
