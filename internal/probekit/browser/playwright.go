package browser

import (
	"context"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog/log"

	"github.com/probekit/probekit/internal/common/apperrors"
)

// playwrightBackend drives a headless Chromium through Playwright. One
// backend owns one browser process with one page; concurrent tool calls
// serialize on the backend mutex.
type playwrightBackend struct {
	cfg Config

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	pctx    playwright.BrowserContext
	page    playwright.Page
}

// NewPlaywrightBackend creates an unlaunched Playwright-backed Backend.
func NewPlaywrightBackend(cfg Config) Backend {
	cfg.applyDefaults()
	return &playwrightBackend{cfg: cfg}
}

// Launch installs the driver if needed and starts the browser. Driver output
// is discarded: stdout belongs to the stdio transport.
func (b *playwrightBackend) Launch(ctx context.Context) apperrors.Error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.page != nil {
		return nil
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return ErrLaunchFailed.MsgErr("installing driver", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return ErrLaunchFailed.MsgErr("starting driver", err)
	}

	brw, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.cfg.Headless),
	})
	if err != nil {
		pw.Stop()
		return ErrLaunchFailed.MsgErr("launching chromium", err)
	}

	pctx, err := brw.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  b.cfg.ViewportWidth,
			Height: b.cfg.ViewportHeight,
		},
	})
	if err != nil {
		brw.Close()
		pw.Stop()
		return ErrLaunchFailed.MsgErr("creating browser context", err)
	}

	page, err := pctx.NewPage()
	if err != nil {
		pctx.Close()
		brw.Close()
		pw.Stop()
		return ErrLaunchFailed.MsgErr("creating page", err)
	}
	page.SetDefaultTimeout(b.cfg.TimeoutMs)

	b.pw = pw
	b.browser = brw
	b.pctx = pctx
	b.page = page
	log.Ctx(ctx).Debug().Bool("headless", b.cfg.Headless).Msg("browser launched")
	return nil
}

func (b *playwrightBackend) Navigate(ctx context.Context, url string, opts NavigateOptions) (*PageInfo, apperrors.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.page == nil {
		return nil, ErrNotLaunched
	}

	gotoOpts := playwright.PageGotoOptions{}
	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		gotoOpts.WaitUntil = &waitUntil
	}
	if opts.TimeoutMs > 0 {
		gotoOpts.Timeout = &opts.TimeoutMs
	}

	if _, err := b.page.Goto(url, gotoOpts); err != nil {
		return nil, ErrNavigationFailed.MsgErr(url, err)
	}

	title, err := b.page.Title()
	if err != nil {
		title = ""
	}
	info := &PageInfo{URL: b.page.URL(), Title: title}
	log.Ctx(ctx).Debug().Str("url", info.URL).Msg("navigation complete")
	return info, nil
}

func (b *playwrightBackend) Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, apperrors.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.page == nil {
		return nil, ErrNotLaunched
	}

	if opts.Selector != "" {
		el, err := b.page.QuerySelector(opts.Selector)
		if err != nil {
			return nil, ErrCaptureFailed.MsgErr(opts.Selector, err)
		}
		if el == nil {
			return nil, ErrCaptureFailed.Msg("no element matches selector: " + opts.Selector)
		}
		data, err := el.Screenshot()
		if err != nil {
			return nil, ErrCaptureFailed.MsgErr("element screenshot", err)
		}
		return data, nil
	}

	data, err := b.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(opts.FullPage),
	})
	if err != nil {
		return nil, ErrCaptureFailed.MsgErr("page screenshot", err)
	}
	return data, nil
}

// DOM returns the serialized HTML of the page, or of the first element
// matching the selector.
func (b *playwrightBackend) DOM(ctx context.Context, selector string) (string, apperrors.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.page == nil {
		return "", ErrNotLaunched
	}

	if selector == "" {
		html, err := b.page.Content()
		if err != nil {
			return "", ErrCaptureFailed.MsgErr("page content", err)
		}
		return html, nil
	}

	el, err := b.page.QuerySelector(selector)
	if err != nil {
		return "", ErrCaptureFailed.MsgErr(selector, err)
	}
	if el == nil {
		return "", ErrCaptureFailed.Msg("no element matches selector: " + selector)
	}
	html, err := el.InnerHTML()
	if err != nil {
		return "", ErrCaptureFailed.MsgErr("element content", err)
	}
	return html, nil
}

// Terminate releases the page, browser, and driver. Close errors during
// teardown are logged and swallowed so cleanup always completes.
func (b *playwrightBackend) Terminate() apperrors.Error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.page == nil {
		return nil
	}

	if err := b.page.Close(); err != nil {
		log.Warn().Err(err).Msg("closing page")
	}
	if err := b.pctx.Close(); err != nil {
		log.Warn().Err(err).Msg("closing browser context")
	}
	if err := b.browser.Close(); err != nil {
		log.Warn().Err(err).Msg("closing browser")
	}
	if err := b.pw.Stop(); err != nil {
		log.Warn().Err(err).Msg("stopping driver")
	}
	b.page = nil
	b.pctx = nil
	b.browser = nil
	b.pw = nil
	return nil
}
