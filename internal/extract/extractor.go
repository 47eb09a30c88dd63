package extract

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/browser"
	"github.com/jonathan/weixin-spider/internal/crawlerr"
	"github.com/jonathan/weixin-spider/internal/types"
)

// DefaultWait bounds the wait for the content container.
const DefaultWait = 10 * time.Second

// Options controls one crawl.
type Options struct {
	DownloadImages bool
	Label          string        // Image directory label; derived from the URL when empty
	Wait           time.Duration // Content wait bound; DefaultWait when zero
}

// Extractor maps rendered-page queries onto Article fields.
type Extractor struct {
	rules      Rules
	downloader *Downloader
	logger     *zap.Logger
	now        func() time.Time
}

// NewExtractor creates an extractor. downloader may be nil when images are never saved.
func NewExtractor(rules Rules, downloader *Downloader, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		rules:      rules,
		downloader: downloader,
		logger:     logger,
		now:        time.Now,
	}
}

// Rules returns the extractor's rules.
func (e *Extractor) Rules() Rules {
	return e.rules
}

// Extract loads articleURL in driver and builds an Article from the page.
func (e *Extractor) Extract(ctx context.Context, driver browser.Driver, articleURL string, opts Options) (*types.Article, error) {
	if err := e.rules.ValidateURL(articleURL); err != nil {
		return nil, err
	}
	if err := e.Load(ctx, driver, articleURL, opts.Wait); err != nil {
		return nil, err
	}

	article := types.NewArticle(articleURL, e.now())
	if err := e.Populate(ctx, driver, article); err != nil {
		return nil, err
	}

	if opts.DownloadImages && e.downloader != nil && article.ImageCount() > 0 {
		label := opts.Label
		if label == "" {
			label = DefaultLabel(articleURL)
		}
		if _, err := e.downloader.Download(ctx, article, label); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("image download skipped", zap.String("url", articleURL), zap.Error(err))
		}
	}

	e.logger.Info("article extracted",
		zap.String("url", articleURL),
		zap.String("title", article.Title),
		zap.Int("word_count", article.WordCount),
		zap.Int("images", article.ImageCount()))
	return article, nil
}

// Load navigates to articleURL and waits for the content container, then
// checks the page for an anti-automation challenge.
func (e *Extractor) Load(ctx context.Context, driver browser.Driver, articleURL string, wait time.Duration) error {
	if wait <= 0 {
		wait = DefaultWait
	}

	e.logger.Info("crawling", zap.String("url", articleURL), zap.String("backend", driver.Name()))
	if err := driver.Navigate(ctx, articleURL); err != nil {
		return err
	}

	if err := driver.WaitFor(ctx, e.rules.ContentSelector, wait); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A challenge page has no content container, so the wait times out first.
		if blocked := e.checkChallenge(ctx, driver, articleURL); blocked != nil {
			return blocked
		}
		return err
	}

	if err := browser.Sleep(ctx, e.rules.SettleDelay); err != nil {
		return err
	}
	if blocked := e.checkChallenge(ctx, driver, articleURL); blocked != nil {
		return blocked
	}
	return nil
}

func (e *Extractor) checkChallenge(ctx context.Context, driver browser.Driver, articleURL string) error {
	if len(e.rules.ChallengeMarkers) == 0 || e.rules.ChallengeSelector == "" {
		return nil
	}
	text, err := driver.QueryText(ctx, e.rules.ChallengeSelector)
	if err != nil {
		return nil
	}
	if marker := e.rules.FindChallenge(text); marker != "" {
		e.logger.Warn("challenge page detected", zap.String("url", articleURL), zap.String("marker", marker))
		return &crawlerr.BlockedError{URL: articleURL, Marker: marker}
	}
	return nil
}

// Populate fills article's fields from the loaded page. A selector that
// matches nothing leaves its field empty; any other driver failure is
// returned.
func (e *Extractor) Populate(ctx context.Context, driver browser.Driver, article *types.Article) error {
	var err error
	if article.Title, err = e.firstText(ctx, driver, "title", e.rules.TitleSelectors); err != nil {
		return err
	}
	if article.Author, err = e.firstText(ctx, driver, "author", e.rules.AuthorSelectors); err != nil {
		return err
	}
	if article.AccountName, err = e.firstText(ctx, driver, "account_name", e.rules.AccountSelectors); err != nil {
		return err
	}
	if article.PublishDate, err = e.firstText(ctx, driver, "publish_date", e.rules.DateSelectors); err != nil {
		return err
	}

	if err := e.content(ctx, driver, article); err != nil {
		return err
	}
	return e.images(ctx, driver, article)
}

// queryErr drops ErrNotFound, leaving the field empty. Caller cancellation
// takes precedence over the driver's error.
func queryErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, browser.ErrNotFound) {
		return nil
	}
	return err
}

// firstText returns the first non-empty trimmed text among selectors.
func (e *Extractor) firstText(ctx context.Context, driver browser.Driver, field string, selectors []string) (string, error) {
	for _, sel := range selectors {
		text, err := driver.QueryText(ctx, sel)
		if err != nil {
			if err := queryErr(ctx, err); err != nil {
				e.logger.Warn("selector query failed",
					zap.String("field", field),
					zap.String("selector", sel),
					zap.Error(err))
				return "", err
			}
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return text, nil
		}
	}
	e.logger.Warn("field not found", zap.String("field", field))
	return "", nil
}

func (e *Extractor) content(ctx context.Context, driver browser.Driver, article *types.Article) error {
	html, err := driver.QueryHTML(ctx, e.rules.ContentSelector)
	if err != nil {
		if err := queryErr(ctx, err); err != nil {
			return err
		}
		e.logger.Warn("content container not found", zap.String("selector", e.rules.ContentSelector))
		article.SetContent("", "")
		return nil
	}

	text, err := driver.QueryText(ctx, e.rules.ContentSelector)
	if err != nil {
		if err := queryErr(ctx, err); err != nil {
			return err
		}
		e.logger.Warn("content text not available")
		text = ""
	}
	article.SetContent(html, strings.TrimSpace(text))
	return nil
}

func (e *Extractor) images(ctx context.Context, driver browser.Driver, article *types.Article) error {
	count, err := driver.CountMatches(ctx, e.rules.ImageSelector)
	if err != nil {
		if err := queryErr(ctx, err); err != nil {
			return err
		}
		count = 0
	}
	if limit := driver.ImageLimit(); limit > 0 && count > limit {
		e.logger.Debug("image lookups capped", zap.Int("found", count), zap.Int("limit", limit))
		count = limit
	}

	for i := 0; i < count; i++ {
		src, err := e.imageSource(ctx, driver, i)
		if err != nil {
			return err
		}
		if src == "" || strings.HasPrefix(src, "data:") {
			continue
		}
		alt, err := driver.QueryAttribute(ctx, e.rules.ImageSelector, i, "alt")
		if err != nil {
			if err := queryErr(ctx, err); err != nil {
				return err
			}
			alt = ""
		}
		article.AddImage(src, strings.TrimSpace(alt))
	}
	return nil
}

func (e *Extractor) imageSource(ctx context.Context, driver browser.Driver, index int) (string, error) {
	for _, attr := range e.rules.ImageAttributes {
		v, err := driver.QueryAttribute(ctx, e.rules.ImageSelector, index, attr)
		if err != nil {
			if err := queryErr(ctx, err); err != nil {
				return "", err
			}
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return v, nil
		}
	}
	return "", nil
}
