// Package browser provides the browser automation backend behind the
// browser_* tools. The Backend interface isolates tool handlers from the
// driver so tests can substitute a fake.
package browser

import (
	"context"

	"github.com/probekit/probekit/internal/common/apperrors"
)

// NavigateOptions controls a page navigation.
type NavigateOptions struct {
	WaitUntil string  `json:"wait_until,omitempty"` // load, domcontentloaded, networkidle
	TimeoutMs float64 `json:"timeout_ms,omitempty"`
}

// PageInfo describes the page after a completed navigation.
type PageInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ScreenshotOptions controls a screenshot capture.
type ScreenshotOptions struct {
	FullPage bool   `json:"full_page,omitempty"`
	Selector string `json:"selector,omitempty"` // capture a single element instead of the viewport
}

// Backend is a single-page browser capability. Launch must succeed before
// any page operation; Terminate releases the browser and makes the backend
// relaunchable.
type Backend interface {
	Launch(ctx context.Context) apperrors.Error
	Navigate(ctx context.Context, url string, opts NavigateOptions) (*PageInfo, apperrors.Error)
	Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, apperrors.Error)
	DOM(ctx context.Context, selector string) (string, apperrors.Error)
	Terminate() apperrors.Error
}

// Config holds backend launch parameters.
type Config struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	TimeoutMs      float64
}

const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 720
	defaultTimeoutMs      = 30000
)

func (c *Config) applyDefaults() {
	if c.ViewportWidth == 0 {
		c.ViewportWidth = defaultViewportWidth
	}
	if c.ViewportHeight == 0 {
		c.ViewportHeight = defaultViewportHeight
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = defaultTimeoutMs
	}
}
