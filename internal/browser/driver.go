// Package browser provides the page rendering backends the extractor drives.
// Every backend answers the same small set of DOM queries so extraction is written once.
package browser

import (
	"context"
	"errors"
	"time"
)

// Backend names.
const (
	BackendAuto         = "auto"
	BackendChrome       = "chrome"
	BackendAgentBrowser = "agent-browser"
	BackendStatic       = "static"
)

// ErrNotFound is returned when a selector matches nothing on the current page.
var ErrNotFound = errors.New("selector matched no element")

// Driver renders a page and answers DOM queries against it.
// A Driver holds one page at a time; calls are not safe for concurrent use.
type Driver interface {
	// Name identifies the backend in logs and errors.
	Name() string
	// Navigate loads url, replacing the current page.
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector is present or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// QueryText returns the rendered text of the first match.
	QueryText(ctx context.Context, selector string) (string, error)
	// QueryHTML returns the inner HTML of the first match.
	QueryHTML(ctx context.Context, selector string) (string, error)
	// QueryAttribute returns attr of the index-th match; "" when the attribute is absent.
	QueryAttribute(ctx context.Context, selector string, index int, attr string) (string, error)
	// CountMatches returns how many elements match selector.
	CountMatches(ctx context.Context, selector string) (int, error)
	// ImageLimit bounds how many images the extractor reads; 0 means unbounded.
	ImageLimit() int
	// Close releases the backend.
	Close() error
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
