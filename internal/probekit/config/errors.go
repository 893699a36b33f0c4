package config

import (
	"net/http"

	"github.com/probekit/probekit/internal/common/apperrors"
)

var (
	// ErrConfig is the base error for all configuration errors.
	// Configuration errors are fatal at startup.
	ErrConfig apperrors.Error = apperrors.New("configuration error").SetStatusCode(http.StatusInternalServerError)

	// ErrTypeConflict is returned when an overlay sets a key to a type
	// incompatible with the base document.
	ErrTypeConflict apperrors.Error = ErrConfig.New("overlay type conflict")

	// ErrInvalidConfig is returned when the merged configuration fails
	// structural validation.
	ErrInvalidConfig apperrors.Error = ErrConfig.New("invalid configuration")

	// ErrUnreadableConfig is returned when a configuration document cannot
	// be read or parsed.
	ErrUnreadableConfig apperrors.Error = ErrConfig.New("unable to read configuration")
)
