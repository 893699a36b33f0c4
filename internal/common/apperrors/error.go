// Package apperrors provides a chainable error type used across probekit.
// Errors derived from a common base remain matchable with errors.Is while
// carrying call-site specific messages and an HTTP status code that the
// transport layer maps onto wire responses.
package apperrors

// Error is the interface implemented by all probekit application errors.
// All derivation methods return Error to support method chaining.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // fresh error using current as template
	Msg(msg string) Error                  // new message, wraps the original
	MsgErr(msg string, err ...error) Error // new message, wraps extra errors
	Err(err ...error) Error                // attaches additional errors
	SetStatusCode(int) Error               // sets the HTTP status code
	StatusCode() int                       // returns the current status code
	ErrorAll() string                      // full message including wrapped errors
	UnwrapAll() []error                    // all wrapped errors
}
