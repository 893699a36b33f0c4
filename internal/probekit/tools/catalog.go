// Package tools implements the built-in tool catalog: the api_* family
// backed by the session manager and the browser_* family backed by the
// browser backend. Handlers receive schema-validated arguments from the
// dispatcher and return JSON-serializable results.
package tools

import (
	"github.com/probekit/probekit/internal/common/apperrors"
	"github.com/probekit/probekit/internal/probekit/artifacts"
	"github.com/probekit/probekit/internal/probekit/browser"
	"github.com/probekit/probekit/internal/probekit/config"
	"github.com/probekit/probekit/internal/probekit/registry"
	"github.com/probekit/probekit/internal/probekit/session"
)

// Catalog bundles the collaborators the tool handlers need.
type Catalog struct {
	cfg     *config.EffectiveConfig
	manager *session.Manager
	backend browser.Backend
	store   *artifacts.Store
}

// NewCatalog creates the catalog. The browser backend may be nil when
// browser tools are feature-gated off; their descriptors still register so
// callers get ToolDisabledError rather than ToolNotFoundError.
func NewCatalog(cfg *config.EffectiveConfig, mgr *session.Manager, backend browser.Backend, store *artifacts.Store) *Catalog {
	return &Catalog{
		cfg:     cfg,
		manager: mgr,
		backend: backend,
		store:   store,
	}
}

// Register adds every built-in tool to the registry. Called once at
// startup; a registration failure is fatal.
func (c *Catalog) Register(reg *registry.Registry) apperrors.Error {
	descriptors := []registry.Descriptor{
		{
			Name:            "api_request",
			Description:     "Execute an HTTP request within a test session, with retry and timeout policy",
			Category:        registry.CategoryAPI,
			RequiredFeature: config.FeatureAPITools,
			InputSchema:     apiRequestSchema,
			Handler:         registry.HandlerFunc(c.apiRequest),
		},
		{
			Name:            "api_session_status",
			Description:     "Get a point-in-time snapshot of a test session",
			Category:        registry.CategoryAPI,
			RequiredFeature: config.FeatureAPITools,
			InputSchema:     sessionIDSchema,
			Handler:         registry.HandlerFunc(c.apiSessionStatus),
		},
		{
			Name:            "api_session_report",
			Description:     "Render a report of a session's request history",
			Category:        registry.CategoryAPI,
			RequiredFeature: config.FeatureAPITools,
			InputSchema:     apiSessionReportSchema,
			Handler:         registry.HandlerFunc(c.apiSessionReport),
		},
		{
			Name:            "api_session_close",
			Description:     "Close a test session and release its resources",
			Category:        registry.CategoryAPI,
			RequiredFeature: config.FeatureAPITools,
			InputSchema:     sessionIDSchema,
			Handler:         registry.HandlerFunc(c.apiSessionClose),
		},
		{
			Name:            "browser_navigate",
			Description:     "Navigate the browser to a URL",
			Category:        registry.CategoryBrowser,
			RequiredFeature: config.FeatureBrowserTools,
			InputSchema:     browserNavigateSchema,
			Handler:         registry.HandlerFunc(c.browserNavigate),
		},
		{
			Name:            "browser_screenshot",
			Description:     "Capture a screenshot of the current page and save it as an artifact",
			Category:        registry.CategoryBrowser,
			RequiredFeature: config.FeatureBrowserTools,
			InputSchema:     browserScreenshotSchema,
			Handler:         registry.HandlerFunc(c.browserScreenshot),
		},
		{
			Name:            "browser_dom",
			Description:     "Capture the serialized DOM of the current page",
			Category:        registry.CategoryBrowser,
			RequiredFeature: config.FeatureBrowserTools,
			InputSchema:     browserDOMSchema,
			Handler:         registry.HandlerFunc(c.browserDOM),
		},
		{
			Name:            "browser_close",
			Description:     "Terminate the browser instance",
			Category:        registry.CategoryBrowser,
			RequiredFeature: config.FeatureBrowserTools,
			Handler:         registry.HandlerFunc(c.browserClose),
		},
	}
	for _, d := range descriptors {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}
