package dispatch

import (
	"net/http"

	"github.com/probekit/probekit/internal/common/apperrors"
)

var (
	// ErrDispatchError is the base error for protocol dispatch errors.
	ErrDispatchError apperrors.Error = apperrors.New("error dispatching request").SetStatusCode(http.StatusInternalServerError)

	// ErrProtocolSequence is returned when a method arrives before the
	// initialize handshake, or after the connection is closed. The request
	// is rejected without side effects.
	ErrProtocolSequence apperrors.Error = ErrDispatchError.New("method received out of protocol sequence").SetStatusCode(http.StatusConflict)

	// ErrUnsupportedVersion is returned when the client requests a protocol
	// version with a different major than the server's.
	ErrUnsupportedVersion apperrors.Error = ErrDispatchError.New("unsupported protocol version").SetStatusCode(http.StatusBadRequest)

	// ErrMethodNotFound is returned for unrecognized protocol methods.
	ErrMethodNotFound apperrors.Error = ErrDispatchError.New("method not found").SetStatusCode(http.StatusNotFound)

	// ErrInvalidParams is returned when method params do not parse.
	ErrInvalidParams apperrors.Error = ErrDispatchError.New("invalid params").SetStatusCode(http.StatusBadRequest)
)
