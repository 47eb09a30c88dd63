package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/crawlerr"
	"github.com/jonathan/weixin-spider/internal/session"
	"github.com/jonathan/weixin-spider/internal/types"
)

// Crawler runs extractions on the manager's shared session.
type Crawler struct {
	manager   *session.Manager
	extractor *Extractor
	logger    *zap.Logger
}

// NewCrawler creates a crawler.
func NewCrawler(manager *session.Manager, extractor *Extractor, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{manager: manager, extractor: extractor, logger: logger}
}

// Crawl validates articleURL, then extracts it with the shared session.
// After a backend failure or timeout the session is released so the next
// crawl starts on a fresh one.
func (c *Crawler) Crawl(ctx context.Context, articleURL string, opts Options) (*types.Article, error) {
	if err := c.extractor.Rules().ValidateURL(articleURL); err != nil {
		return nil, err
	}

	s, err := c.manager.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	article, err := c.extractor.Extract(ctx, s.Driver, articleURL, opts)
	if err != nil {
		c.logger.Error("crawl failed",
			zap.String("url", articleURL),
			zap.String("session_id", s.ID),
			zap.String("kind", crawlerr.KindOf(err)),
			zap.Error(err))
		if crawlerr.IsRetryable(err) {
			c.manager.Release(s)
		}
		return nil, err
	}
	return article, nil
}

// Close releases the shared session.
func (c *Crawler) Close() {
	c.manager.Close()
}
