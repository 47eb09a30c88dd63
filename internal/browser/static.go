// Package browser - static.go answers DOM queries from server-rendered HTML without running JavaScript.
package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/crawlerr"
	"github.com/jonathan/weixin-spider/internal/fetch"
)

// StaticDriver fetches pages over plain HTTP and queries them with goquery.
type StaticDriver struct {
	mu         sync.Mutex
	doc        *goquery.Document
	fetchOpts  *fetch.Options
	imageLimit int
	offline    bool // Built from a fixed document; Navigate keeps it
	logger     *zap.Logger
}

// NewStaticDriver creates a driver that fetches with opts.
func NewStaticDriver(opts *fetch.Options, logger *zap.Logger) *StaticDriver {
	if opts == nil {
		opts = fetch.DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaticDriver{fetchOpts: opts, logger: logger}
}

// NewDocumentDriver creates a driver over a fixed HTML document.
// Navigate is a no-op, which makes it suitable for saved pages and tests.
func NewDocumentDriver(html string, imageLimit int) (*StaticDriver, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &crawlerr.BackendError{Backend: BackendStatic, Message: "failed to parse HTML", Cause: err}
	}
	return &StaticDriver{
		doc:        doc,
		imageLimit: imageLimit,
		offline:    true,
		logger:     zap.NewNop(),
	}, nil
}

// Name implements Driver.
func (d *StaticDriver) Name() string { return BackendStatic }

// ImageLimit implements Driver.
func (d *StaticDriver) ImageLimit() int { return d.imageLimit }

// Navigate implements Driver.
func (d *StaticDriver) Navigate(ctx context.Context, url string) error {
	if d.offline {
		return nil
	}

	result, err := fetch.URL(ctx, url, d.fetchOpts)
	if err != nil {
		if ctx.Err() == nil && isDeadline(err) {
			return &crawlerr.TimeoutError{Operation: "navigate", Cause: err}
		}
		return &crawlerr.BackendError{Backend: BackendStatic, Message: "navigate", Cause: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(result.HTML()))
	if err != nil {
		return &crawlerr.BackendError{Backend: BackendStatic, Message: "failed to parse HTML", Cause: err}
	}

	d.mu.Lock()
	d.doc = doc
	d.mu.Unlock()
	d.logger.Debug("static page loaded", zap.String("url", url), zap.Int("bytes", len(result.Body)))
	return nil
}

func (d *StaticDriver) document() (*goquery.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil, &crawlerr.BackendError{Backend: BackendStatic, Message: "no page loaded"}
	}
	return d.doc, nil
}

// WaitFor implements Driver. Without scripts the document never changes, so
// an absent selector after load is a timeout straight away.
func (d *StaticDriver) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	doc, err := d.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return &crawlerr.TimeoutError{Operation: "wait for " + selector}
	}
	return nil
}

func (d *StaticDriver) first(selector string) (*goquery.Selection, error) {
	doc, err := d.document()
	if err != nil {
		return nil, err
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, ErrNotFound
	}
	return sel, nil
}

// QueryText implements Driver.
func (d *StaticDriver) QueryText(_ context.Context, selector string) (string, error) {
	sel, err := d.first(selector)
	if err != nil {
		return "", err
	}
	return visibleText(sel), nil
}

// QueryHTML implements Driver.
func (d *StaticDriver) QueryHTML(_ context.Context, selector string) (string, error) {
	sel, err := d.first(selector)
	if err != nil {
		return "", err
	}
	html, err := sel.Html()
	if err != nil {
		return "", &crawlerr.BackendError{Backend: BackendStatic, Message: "render html", Cause: err}
	}
	return html, nil
}

// QueryAttribute implements Driver.
func (d *StaticDriver) QueryAttribute(_ context.Context, selector string, index int, attr string) (string, error) {
	doc, err := d.document()
	if err != nil {
		return "", err
	}
	sel := doc.Find(selector).Eq(index)
	if sel.Length() == 0 {
		return "", ErrNotFound
	}
	return sel.AttrOr(attr, ""), nil
}

// CountMatches implements Driver.
func (d *StaticDriver) CountMatches(_ context.Context, selector string) (int, error) {
	doc, err := d.document()
	if err != nil {
		return 0, err
	}
	return doc.Find(selector).Length(), nil
}

// Close implements Driver.
func (d *StaticDriver) Close() error {
	d.mu.Lock()
	d.doc = nil
	d.mu.Unlock()
	return nil
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
