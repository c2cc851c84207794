package homely

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"homely-scraper/utils"
)

const (
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	jsScrollToBottom = `window.scrollTo(0, document.body.scrollHeight)`

	// Gallery reveal: scroll the button into view, then click. The site
	// sometimes swallows the synthetic user event, so the programmatic
	// fallback clicks via el.click().
	jsScrollGalleryButton = `
		(function() {
			var btn = document.querySelector("div[aria-label='Gallery button bar'] button:first-of-type");
			if (!btn) return false;
			btn.scrollIntoView(true);
			return true;
		})()`
	jsClickGalleryButton = `
		(function() {
			var btn = document.querySelector("div[aria-label='Gallery button bar'] button:first-of-type");
			if (!btn) return false;
			btn.click();
			return true;
		})()`

	selDetailMarker   = `section[aria-label="Property description"]`
	selGalleryButton  = `div[aria-label="Gallery button bar"] button:first-of-type`
	selGalleryMarker  = `div[aria-label="Vertical image gallery"]`
	galleryScrollWait = 2 * time.Second
)

// RendererConfig holds the timing knobs for the render protocol.
type RendererConfig struct {
	SettleDelay time.Duration
	WaitTimeout time.Duration
	PageTimeout time.Duration
	ChromeBin   string
	Headless    bool
}

// Renderer owns one interactive browser context. A renderer is bound to
// a single worker for its whole life: the underlying session is a
// heavyweight, stateful resource and is not safe to share.
type Renderer struct {
	cfg    RendererConfig
	logger *utils.Logger

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelBrows context.CancelFunc
}

// NewRenderer launches a browser context for one worker. Release must be
// called when the worker shuts down.
func NewRenderer(cfg RendererConfig, logger *utils.Logger) (*Renderer, error) {
	if cfg.PageTimeout == 0 {
		cfg.PageTimeout = 90 * time.Second
	}

	chromeBin := cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrows := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	// Start the browser now so a broken binary fails at worker startup.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrows()
		cancelAlloc()
		return nil, fmt.Errorf("renderer: start browser: %w", err)
	}

	return &Renderer{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancelBrows: cancelBrows,
	}, nil
}

// Release shuts the browser session down.
func (r *Renderer) Release() {
	r.cancelBrows()
	r.cancelAlloc()
}

// RenderIndex loads a listing index page, forces lazy content to
// materialize with a full-page scroll, and returns the DOM snapshot.
func (r *Renderer) RenderIndex(ctx context.Context, pageURL string) (string, error) {
	tabCtx, cancel := r.newTab(ctx)
	defer cancel()

	var snapshot string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(r.cfg.SettleDelay),
		chromedp.Evaluate(jsScrollToBottom, nil),
		chromedp.Sleep(galleryScrollWait),
		chromedp.OuterHTML("html", &snapshot),
	)
	if err != nil {
		return "", fmt.Errorf("renderer: index %s: %w", pageURL, err)
	}
	return snapshot, nil
}

// RenderDetail drives the full detail-page protocol and returns the
// detail snapshot plus the gallery snapshot. The gallery snapshot is
// empty when the reveal fails; that is a soft failure and extraction
// proceeds with empty media sets.
func (r *Renderer) RenderDetail(ctx context.Context, pageURL string) (detail, gallery string, err error) {
	tabCtx, cancel := r.newTab(ctx)
	defer cancel()

	// Stage 1: Loaded.
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(r.cfg.SettleDelay),
	)
	if err != nil {
		return "", "", fmt.Errorf("renderer: navigate %s: %w", pageURL, err)
	}

	// Stage 2: DetailReady. A missing marker is a soft failure; we keep
	// whatever content is present.
	if err := r.waitVisible(tabCtx, selDetailMarker); err != nil {
		r.logger.Warn("detail marker not found, proceeding with partial page: %s (%v)", pageURL, err)
	}

	err = chromedp.Run(tabCtx,
		chromedp.Evaluate(jsScrollToBottom, nil),
		chromedp.Sleep(galleryScrollWait),
		chromedp.OuterHTML("html", &detail),
	)
	if err != nil {
		return "", "", fmt.Errorf("renderer: snapshot %s: %w", pageURL, err)
	}

	// Stage 3: GalleryRevealed. Any failure here degrades to empty
	// image/floor-plan sets.
	gallery, gerr := r.revealGallery(tabCtx)
	if gerr != nil {
		r.logger.Warn("gallery reveal failed for %s: %v", pageURL, gerr)
		return detail, "", nil
	}
	return detail, gallery, nil
}

// revealGallery clicks the gallery control and snapshots the revealed
// gallery container.
func (r *Renderer) revealGallery(tabCtx context.Context) (string, error) {
	var found bool
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(jsScrollGalleryButton, &found)); err != nil {
		return "", fmt.Errorf("scroll gallery button: %w", err)
	}
	if !found {
		return "", fmt.Errorf("gallery button not present")
	}

	// Direct interaction first; the programmatic click is the fallback
	// when the user event does not register.
	clickCtx, cancelClick := context.WithTimeout(tabCtx, r.cfg.WaitTimeout)
	err := chromedp.Run(clickCtx, chromedp.Click(selGalleryButton, chromedp.ByQuery))
	cancelClick()
	if err != nil {
		r.logger.Debug("standard click failed, falling back to JS click: %v", err)
		var clicked bool
		jsErr := chromedp.Run(tabCtx, chromedp.Evaluate(jsClickGalleryButton, &clicked))
		if cerr := galleryClickError(clicked, jsErr); cerr != nil {
			return "", cerr
		}
	}

	if err := r.waitVisible(tabCtx, selGalleryMarker); err != nil {
		return "", fmt.Errorf("gallery container did not appear: %w", err)
	}

	var snapshot string
	err = chromedp.Run(tabCtx,
		chromedp.Evaluate(jsScrollToBottom, nil),
		chromedp.Sleep(galleryScrollWait),
		chromedp.OuterHTML("html", &snapshot),
	)
	if err != nil {
		return "", fmt.Errorf("snapshot gallery: %w", err)
	}
	return snapshot, nil
}

// galleryClickError classifies the outcome of the JS click fallback: the
// evaluate itself can fail, or it can run cleanly against a page where
// the button no longer exists.
func galleryClickError(clicked bool, err error) error {
	if err != nil {
		return fmt.Errorf("js click failed: %w", err)
	}
	if !clicked {
		return errors.New("gallery button vanished before fallback click")
	}
	return nil
}

// waitVisible waits for a marker element with the configured bound.
func (r *Renderer) waitVisible(tabCtx context.Context, sel string) error {
	waitCtx, cancel := context.WithTimeout(tabCtx, r.cfg.WaitTimeout)
	defer cancel()
	return chromedp.Run(waitCtx, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

// newTab opens a fresh tab in the worker's browser, bounded by the page
// timeout and the caller's context.
func (r *Renderer) newTab(ctx context.Context) (context.Context, context.CancelFunc) {
	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	timeoutCtx, cancelTimeout := context.WithTimeout(tabCtx, r.cfg.PageTimeout)

	stop := context.AfterFunc(ctx, cancelTimeout)
	return timeoutCtx, func() {
		stop()
		cancelTimeout()
		cancelTab()
	}
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
