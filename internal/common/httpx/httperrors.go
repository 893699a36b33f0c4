// Package httpx provides HTTP response helpers shared by the probekit
// transports: JSON responders, error envelopes, and a tracking
// ResponseWriter wrapper.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/probekit/probekit/internal/common/apperrors"
)

// Error represents an HTTP error response with status code and description.
type Error struct {
	Description string `json:"description"`
	StatusCode  int    `json:"http_status_code"`
}

type errorRsp struct {
	Error string `json:"error"`
}

// Send writes the error response to the provided ResponseWriter.
// If the writer is nil, no action is taken.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	rspJson, err := json.Marshal(&errorRsp{Error: e.Description})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("unable to encode error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	w.Write(rspJson)
}

// Error returns the error description.
func (e *Error) Error() string {
	return e.Description
}

// SendError sends an application error as an HTTP error response.
// If the error is nil, no action is taken.
func SendError(w http.ResponseWriter, err apperrors.Error) {
	if err == nil {
		return
	}
	statusCode := err.StatusCode()
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	(&Error{
		StatusCode:  statusCode,
		Description: err.ErrorAll(),
	}).Send(w)
}

// ErrApplicationError returns a generic internal error response.
func ErrApplicationError(msg string) *Error {
	return &Error{
		Description: msg,
		StatusCode:  http.StatusInternalServerError,
	}
}

// ErrInvalidRequest returns a bad request error response.
func ErrInvalidRequest(msg string) *Error {
	return &Error{
		Description: msg,
		StatusCode:  http.StatusBadRequest,
	}
}

// ErrRequestTimeout returns a timeout error response.
func ErrRequestTimeout() *Error {
	return &Error{
		Description: "request timed out",
		StatusCode:  http.StatusRequestTimeout,
	}
}
