package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-playground/validator/v10"

	"github.com/probekit/probekit/internal/common/apperrors"
)

// RequestSpec describes one outbound HTTP test call.
type RequestSpec struct {
	Method    string            `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	URL       string            `json:"url" validate:"required,url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	TimeoutMs int               `json:"timeout_ms,omitempty" validate:"min=0"` // per-call override, clamped to the configured ceiling
}

var validate = validator.New()

// maxRecordedBodyBytes bounds how much of a response body is retained in
// history. Larger bodies are truncated, not dropped.
const maxRecordedBodyBytes = 256 * 1024

// apiToolName keys the tool settings governing Execute.
const apiToolName = "api_request"

// Execute performs the outbound HTTP call for the session under the
// configured retry and timeout policy. Every attempt is appended to the
// session history with an incrementing 1-based attempt number; the terminal
// attempt's outcome is the call's outcome. Retries use a fixed delay:
// predictable timing for test assertions is worth more here than backoff
// sophistication. On exhausting retries the call fails with ErrRequestFailed
// carrying the last attempt's detail; the session stays usable.
func (m *Manager) Execute(ctx context.Context, s *Session, spec RequestSpec) (*HistoryEntry, apperrors.Error) {
	if err := validate.Struct(&spec); err != nil {
		return nil, ErrInvalidRequestSpec.MsgErr(fmt.Sprintf("request spec for session %s", s.id), err)
	}
	if m.limiter != nil && !m.limiter.allow() {
		return nil, ErrRateLimited.Msg(
			fmt.Sprintf("request budget of %d/s exhausted", m.cfg.Security.MaxRequestsPerSecond))
	}

	settings := m.cfg.ToolSettingsFor(apiToolName)
	timeout := time.Duration(settings.TimeoutMs) * time.Millisecond
	if spec.TimeoutMs > 0 {
		timeout = time.Duration(spec.TimeoutMs) * time.Millisecond
		if timeout > m.cfg.MaxRequestTimeout() {
			timeout = m.cfg.MaxRequestTimeout()
		}
	}
	attempts := settings.MaxRetries + 1
	retryDelay := time.Duration(settings.RetryDelayMs) * time.Millisecond

	// Per-session critical section: concurrent Execute calls on the same
	// session run one at a time so history order stays consistent. The
	// bookkeeping lock is taken only around appends, never across the
	// network call, so other sessions and the expire sweep proceed freely.
	s.execMu.Lock()
	defer s.execMu.Unlock()
	s.touch(m.now())

	var last HistoryEntry
	attempt := 0
	err := retry.Do(func() error {
		attempt++
		entry := m.doAttempt(ctx, spec, timeout, attempt)
		failed := entry.Response.Error != "" || m.cfg.IsRetryableStatus(entry.Response.Status)
		switch {
		case !failed:
			entry.Outcome = OutcomeSuccess
		case attempt < attempts:
			entry.Outcome = OutcomeRetried
		default:
			entry.Outcome = OutcomeFailed
		}
		s.record(entry, m.now())
		last = entry
		if failed {
			if entry.Response.Error != "" {
				return fmt.Errorf("attempt %d: %s", attempt, entry.Response.Error)
			}
			return fmt.Errorf("attempt %d: retryable status %d", attempt, entry.Response.Status)
		}
		return nil
	},
		retry.Attempts(uint(attempts)),
		retry.Delay(retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)

	if err != nil {
		s.logger.Warn().Err(err).Int("attempts", attempt).Str("url", spec.URL).Msg("request failed")
		return &last, ErrRequestFailed.MsgErr(
			fmt.Sprintf("request to %s failed after %d attempts", spec.URL, attempt), err)
	}
	s.logger.Debug().Int("attempts", attempt).Str("url", spec.URL).Int("status", last.Response.Status).Msg("request completed")
	return &last, nil
}

// doAttempt performs one HTTP attempt and records it. A transport failure or
// timeout yields an entry with Response.Status 0 and the error text.
func (m *Manager) doAttempt(ctx context.Context, spec RequestSpec, timeout time.Duration, attempt int) HistoryEntry {
	entry := HistoryEntry{
		Request: RecordedRequest{
			Method:  spec.Method,
			URL:     spec.URL,
			Headers: spec.Headers,
			Body:    spec.Body,
		},
		Attempt:   attempt,
		Timestamp: m.now(),
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if spec.Body != "" {
		bodyReader = strings.NewReader(spec.Body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, spec.Method, spec.URL, bodyReader)
	if err != nil {
		entry.Response.Error = err.Error()
		return entry
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := m.client.Do(req)
	entry.Response.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		entry.Response.Error = err.Error()
		return entry
	}
	defer resp.Body.Close()

	entry.Response.Status = resp.StatusCode
	entry.Response.Headers = flattenHeaders(resp.Header)
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordedBodyBytes))
	if err != nil {
		entry.Response.Error = fmt.Sprintf("reading response body: %v", err)
		return entry
	}
	entry.Response.Body = string(body)
	return entry
}

func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
