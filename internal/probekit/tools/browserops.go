package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/probekit/probekit/internal/common/apperrors"
	"github.com/probekit/probekit/internal/probekit/browser"
	"github.com/probekit/probekit/internal/probekit/registry"
)

// maxInlineDOMBytes bounds how much HTML is returned inline in a
// browser_dom result. Larger captures are truncated; the full capture is
// still saved when requested.
const maxInlineDOMBytes = 512 * 1024

type browserNavigateArgs struct {
	URL       string  `json:"url"`
	WaitUntil string  `json:"waitUntil"`
	TimeoutMs float64 `json:"timeoutMs"`
}

func (c *Catalog) browserNavigate(ctx context.Context, args json.RawMessage) (any, apperrors.Error) {
	var a browserNavigateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, registry.ErrInvalidArguments.MsgErr("browser_navigate arguments", err)
	}
	if aerr := c.backend.Launch(ctx); aerr != nil {
		return nil, aerr
	}
	info, aerr := c.backend.Navigate(ctx, a.URL, browser.NavigateOptions{
		WaitUntil: a.WaitUntil,
		TimeoutMs: a.TimeoutMs,
	})
	if aerr != nil {
		return nil, aerr
	}
	return info, nil
}

type browserScreenshotArgs struct {
	Name     string `json:"name"`
	FullPage bool   `json:"fullPage"`
	Selector string `json:"selector"`
}

// BrowserScreenshotResult is the browser_screenshot tool result.
type BrowserScreenshotResult struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

func (c *Catalog) browserScreenshot(ctx context.Context, args json.RawMessage) (any, apperrors.Error) {
	var a browserScreenshotArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, registry.ErrInvalidArguments.MsgErr("browser_screenshot arguments", err)
		}
	}

	data, aerr := c.backend.Screenshot(ctx, browser.ScreenshotOptions{
		FullPage: a.FullPage,
		Selector: a.Selector,
	})
	if aerr != nil {
		return nil, aerr
	}

	name := a.Name
	if name == "" {
		name = fmt.Sprintf("screenshot-%d", time.Now().Unix())
	}
	path, aerr := c.store.Save(name, data)
	if aerr != nil {
		return nil, aerr
	}
	return &BrowserScreenshotResult{Path: path, Bytes: len(data)}, nil
}

type browserDOMArgs struct {
	Selector string `json:"selector"`
	Save     bool   `json:"save"`
}

// BrowserDOMResult is the browser_dom tool result.
type BrowserDOMResult struct {
	HTML      string `json:"html"`
	Truncated bool   `json:"truncated,omitempty"`
	Path      string `json:"path,omitempty"` // set when saved as an artifact
}

func (c *Catalog) browserDOM(ctx context.Context, args json.RawMessage) (any, apperrors.Error) {
	var a browserDOMArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, registry.ErrInvalidArguments.MsgErr("browser_dom arguments", err)
		}
	}

	html, aerr := c.backend.DOM(ctx, a.Selector)
	if aerr != nil {
		return nil, aerr
	}

	result := &BrowserDOMResult{HTML: html}
	if a.Save {
		name := fmt.Sprintf("dom-%d.html", time.Now().Unix())
		path, aerr := c.store.Save(name, []byte(html))
		if aerr != nil {
			return nil, aerr
		}
		result.Path = path
	}
	if len(result.HTML) > maxInlineDOMBytes {
		result.HTML = result.HTML[:maxInlineDOMBytes]
		result.Truncated = true
	}
	return result, nil
}

func (c *Catalog) browserClose(ctx context.Context, args json.RawMessage) (any, apperrors.Error) {
	if aerr := c.backend.Terminate(); aerr != nil {
		return nil, aerr
	}
	return map[string]any{"closed": true}, nil
}
