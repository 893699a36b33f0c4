package browser

import (
	"net/http"

	"github.com/probekit/probekit/internal/common/apperrors"
)

var (
	// ErrBrowserError is the base error for all browser backend errors.
	ErrBrowserError apperrors.Error = apperrors.New("error in browser backend").SetStatusCode(http.StatusInternalServerError)

	// ErrNotLaunched is returned when a page operation is attempted before
	// Launch, or after Terminate.
	ErrNotLaunched apperrors.Error = ErrBrowserError.New("browser not launched").SetStatusCode(http.StatusConflict)

	// ErrLaunchFailed is returned when the browser process could not be
	// started.
	ErrLaunchFailed apperrors.Error = ErrBrowserError.New("browser launch failed").SetStatusCode(http.StatusBadGateway)

	// ErrNavigationFailed is returned when a page navigation does not
	// complete.
	ErrNavigationFailed apperrors.Error = ErrBrowserError.New("navigation failed").SetStatusCode(http.StatusBadGateway)

	// ErrCaptureFailed is returned when a screenshot or DOM capture fails.
	ErrCaptureFailed apperrors.Error = ErrBrowserError.New("capture failed").SetStatusCode(http.StatusBadGateway)
)
