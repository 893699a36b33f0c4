package session

import (
	"net/http"

	"github.com/probekit/probekit/internal/common/apperrors"
)

var (
	// ErrSessionError is the base error for all session-related errors.
	ErrSessionError apperrors.Error = apperrors.New("error in processing session").SetStatusCode(http.StatusInternalServerError)

	// ErrSessionLimitExceeded is returned when creating a session would
	// exceed the configured maximum. New-session creation is rejected
	// rather than evicting an active session.
	ErrSessionLimitExceeded apperrors.Error = ErrSessionError.New("session limit exceeded").SetStatusCode(http.StatusTooManyRequests)

	// ErrSessionNotFound is returned when a session id is unknown, or the
	// session has been expired-and-reaped or closed.
	ErrSessionNotFound apperrors.Error = ErrSessionError.New("session not found").SetStatusCode(http.StatusNotFound)

	// ErrRateLimited is returned when the request budget for the current
	// interval is exhausted. Calls fail fast instead of queuing.
	ErrRateLimited apperrors.Error = ErrSessionError.New("rate limited").SetStatusCode(http.StatusTooManyRequests)

	// ErrRequestFailed is returned when an outbound request fails after
	// exhausting its retries. Carries the last attempt's detail.
	ErrRequestFailed apperrors.Error = ErrSessionError.New("request failed").SetStatusCode(http.StatusBadGateway)

	// ErrInvalidRequestSpec is returned when a request specification fails
	// structural validation.
	ErrInvalidRequestSpec apperrors.Error = ErrSessionError.New("invalid request spec").SetStatusCode(http.StatusBadRequest)

	// ErrManagerClosed is returned when an operation is attempted after
	// the manager has been shut down.
	ErrManagerClosed apperrors.Error = ErrSessionError.New("session manager is shut down").SetStatusCode(http.StatusServiceUnavailable)
)
