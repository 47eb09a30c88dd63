// Package browser - chrome.go drives a headless Chrome through the DevTools protocol.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/crawlerr"
	"github.com/jonathan/weixin-spider/internal/fetch"
)

// ChromeOptions configures the headless browser.
type ChromeOptions struct {
	ExecPath        string // Empty uses chromedp's lookup
	Headless        bool
	UserAgent       string
	WindowWidth     int
	WindowHeight    int
	PageLoadTimeout time.Duration
}

// DefaultChromeOptions mirrors a desktop Chrome on a 1080p screen.
func DefaultChromeOptions() ChromeOptions {
	return ChromeOptions{
		Headless:        true,
		UserAgent:       fetch.DefaultUserAgent,
		WindowWidth:     1920,
		WindowHeight:    1080,
		PageLoadTimeout: 30 * time.Second,
	}
}

// ChromeDriver is the full-browser backend.
type ChromeDriver struct {
	ctx             context.Context // chromedp tab context; cancelling it closes the browser
	cancel          context.CancelFunc
	allocCancel     context.CancelFunc
	pageLoadTimeout time.Duration
	logger          *zap.Logger
}

// NewChromeDriver launches Chrome and opens one tab.
// The browser lives until Close, independent of ctx's cancellation.
func NewChromeDriver(ctx context.Context, opts ChromeOptions, logger *zap.Logger) (*ChromeDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = DefaultChromeOptions().PageLoadTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, &crawlerr.BackendError{
			Backend: BackendChrome,
			Message: "failed to start browser",
			Cause:   err,
		}
	}

	logger.Info("chrome browser started", zap.Bool("headless", opts.Headless))

	return &ChromeDriver{
		ctx:             browserCtx,
		cancel:          cancel,
		allocCancel:     allocCancel,
		pageLoadTimeout: opts.PageLoadTimeout,
		logger:          logger,
	}, nil
}

// Name implements Driver.
func (d *ChromeDriver) Name() string { return BackendChrome }

// ImageLimit implements Driver. The full browser reads every image.
func (d *ChromeDriver) ImageLimit() int { return 0 }

// run executes actions on the tab bounded by timeout and by the caller's ctx.
func (d *ChromeDriver) run(ctx context.Context, op string, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return &crawlerr.TimeoutError{Operation: op, Cause: err}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &crawlerr.BackendError{Backend: BackendChrome, Message: op, Cause: err}
}

// Navigate implements Driver.
func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	d.logger.Debug("navigate", zap.String("url", url))
	return d.run(ctx, "navigate", d.pageLoadTimeout, chromedp.Navigate(url))
}

// WaitFor implements Driver.
func (d *ChromeDriver) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return d.run(ctx, "wait for "+selector, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// domResult is what every query script returns, so null results never reach chromedp.
type domResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
	Count int    `json:"count"`
}

const (
	scriptText  = `(() => { const el = document.querySelector(%s); return el ? {found: true, value: el.innerText || ""} : {found: false}; })()`
	scriptHTML  = `(() => { const el = document.querySelector(%s); return el ? {found: true, value: el.innerHTML} : {found: false}; })()`
	scriptAttr  = `(() => { const el = document.querySelectorAll(%s)[%d]; return el ? {found: true, value: el.getAttribute(%s) || ""} : {found: false}; })()`
	scriptCount = `(() => ({found: true, count: document.querySelectorAll(%s).length}))()`
)

func (d *ChromeDriver) evaluate(ctx context.Context, op, script string) (domResult, error) {
	var res domResult
	err := d.run(ctx, op, d.pageLoadTimeout, chromedp.Evaluate(script, &res))
	return res, err
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// QueryText implements Driver.
func (d *ChromeDriver) QueryText(ctx context.Context, selector string) (string, error) {
	res, err := d.evaluate(ctx, "query text", fmt.Sprintf(scriptText, jsString(selector)))
	if err != nil {
		return "", err
	}
	if !res.Found {
		return "", ErrNotFound
	}
	return res.Value, nil
}

// QueryHTML implements Driver.
func (d *ChromeDriver) QueryHTML(ctx context.Context, selector string) (string, error) {
	res, err := d.evaluate(ctx, "query html", fmt.Sprintf(scriptHTML, jsString(selector)))
	if err != nil {
		return "", err
	}
	if !res.Found {
		return "", ErrNotFound
	}
	return res.Value, nil
}

// QueryAttribute implements Driver.
func (d *ChromeDriver) QueryAttribute(ctx context.Context, selector string, index int, attr string) (string, error) {
	res, err := d.evaluate(ctx, "query attribute", fmt.Sprintf(scriptAttr, jsString(selector), index, jsString(attr)))
	if err != nil {
		return "", err
	}
	if !res.Found {
		return "", ErrNotFound
	}
	return res.Value, nil
}

// CountMatches implements Driver.
func (d *ChromeDriver) CountMatches(ctx context.Context, selector string) (int, error) {
	res, err := d.evaluate(ctx, "count", fmt.Sprintf(scriptCount, jsString(selector)))
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Close shuts the browser down.
func (d *ChromeDriver) Close() error {
	err := chromedp.Cancel(d.ctx)
	d.cancel()
	d.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return &crawlerr.BackendError{Backend: BackendChrome, Message: "close", Cause: err}
	}
	d.logger.Info("chrome browser closed")
	return nil
}
