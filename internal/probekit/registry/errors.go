package registry

import (
	"net/http"

	"github.com/probekit/probekit/internal/common/apperrors"
)

var (
	// ErrRegistry is the base error for all tool registry errors.
	ErrRegistry apperrors.Error = apperrors.New("tool registry error").SetStatusCode(http.StatusInternalServerError)

	// ErrDuplicateTool is returned when a tool name is registered twice.
	// Fatal at startup.
	ErrDuplicateTool apperrors.Error = ErrRegistry.New("duplicate tool name")

	// ErrInvalidDescriptor is returned when a descriptor is malformed,
	// for example an input schema that does not compile. Fatal at startup.
	ErrInvalidDescriptor apperrors.Error = ErrRegistry.New("invalid tool descriptor")

	// ErrToolNotFound is returned when no tool with the requested name is
	// registered. Distinct from ErrToolDisabled so callers can tell
	// "doesn't exist" from "exists but turned off".
	ErrToolNotFound apperrors.Error = ErrRegistry.New("tool not found").SetStatusCode(http.StatusNotFound)

	// ErrToolDisabled is returned when the tool exists but its required
	// feature flag is false in the effective configuration.
	ErrToolDisabled apperrors.Error = ErrRegistry.New("tool disabled").SetStatusCode(http.StatusForbidden)

	// ErrInvalidArguments is returned when tool call arguments fail
	// validation against the tool's input schema.
	ErrInvalidArguments apperrors.Error = ErrRegistry.New("invalid arguments").SetStatusCode(http.StatusBadRequest)
)
