// Package tools is the boundary between the crawler and external callers.
// Every operation returns a JSON-serializable value; failures come back as
// ErrorResult values instead of Go errors.
package tools

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/analysis"
	"github.com/jonathan/weixin-spider/internal/crawlerr"
	"github.com/jonathan/weixin-spider/internal/extract"
	"github.com/jonathan/weixin-spider/internal/types"
)

// ErrorResult is the failure shape of every operation.
type ErrorResult struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// NewErrorResult converts err into an ErrorResult.
func NewErrorResult(err error) *ErrorResult {
	return &ErrorResult{Error: err.Error(), Kind: crawlerr.KindOf(err)}
}

// Config controls the service.
type Config struct {
	DownloadImages bool          // Global switch; a request can only narrow it
	DefaultWait    time.Duration // Used when a request has no wait_seconds
	CacheTTL       time.Duration // 0 disables the article cache
	MaxBatch       int
}

// Service runs tool operations against a crawler.
type Service struct {
	crawler analysis.ArticleSource
	runner  *analysis.Runner
	cfg     Config
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewService creates a service over crawler.
func NewService(crawler analysis.ArticleSource, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultWait <= 0 {
		cfg.DefaultWait = extract.DefaultWait
	}

	s := &Service{crawler: crawler, cfg: cfg, logger: logger}
	if cfg.CacheTTL > 0 {
		s.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	s.runner = analysis.NewRunner(cachedSource{s}, cfg.MaxBatch, extract.Options{Wait: cfg.DefaultWait}, logger.Named("runner"))
	return s
}

// MaxBatch returns the batch size limit.
func (s *Service) MaxBatch() int {
	return s.runner.MaxBatch()
}

// Crawl returns the full article as a map.
func (s *Service) Crawl(ctx context.Context, url string, opts types.RequestOptions) any {
	article, err := s.article(ctx, url, opts)
	if err != nil {
		return s.fail("crawl", url, err)
	}
	return article.ToMap()
}

// Analyze returns the article together with its statistics.
func (s *Service) Analyze(ctx context.Context, url string, opts types.RequestOptions) any {
	opts.DownloadImages = false
	article, err := s.article(ctx, url, opts)
	if err != nil {
		return s.fail("analyze", url, err)
	}
	return &types.AnalyzedArticle{
		Content:  article.ToMap(),
		Analysis: analysis.Analyze(article),
	}
}

// Summarize returns a short projection of the article.
func (s *Service) Summarize(ctx context.Context, url string, opts types.RequestOptions) any {
	opts.DownloadImages = false
	article, err := s.article(ctx, url, opts)
	if err != nil {
		return s.fail("summarize", url, err)
	}
	summary := analysis.Summarize(article)
	return &summary
}

// Batch crawls several articles and returns their summaries.
func (s *Service) Batch(ctx context.Context, urls []string, opts types.RequestOptions) any {
	req := types.MultiArticleRequest{URLs: urls, RequestOptions: opts}
	if err := req.Validate(); err != nil {
		return s.fail("batch", "", err)
	}
	report, err := s.runner.Batch(ctx, urls, s.extractOptions(opts))
	if err != nil {
		return s.fail("batch", "", err)
	}
	return report
}

// Compare crawls 2 to 5 articles and ranks them.
func (s *Service) Compare(ctx context.Context, urls []string, opts types.RequestOptions) any {
	req := types.MultiArticleRequest{URLs: urls, RequestOptions: opts}
	if err := req.Validate(); err != nil {
		return s.fail("compare", "", err)
	}
	report, err := s.runner.Compare(ctx, urls, s.extractOptions(opts))
	if err != nil {
		return s.fail("compare", "", err)
	}
	return report
}

func (s *Service) fail(op, url string, err error) *ErrorResult {
	result := NewErrorResult(err)
	s.logger.Warn("tool call failed",
		zap.String("op", op),
		zap.String("url", url),
		zap.String("kind", result.Kind),
		zap.Error(err))
	return result
}

// article validates the request and crawls through the cache.
func (s *Service) article(ctx context.Context, url string, opts types.RequestOptions) (*types.Article, error) {
	req := types.ArticleRequest{URL: url, RequestOptions: opts}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.crawl(ctx, url, s.extractOptions(opts))
}

func (s *Service) extractOptions(opts types.RequestOptions) extract.Options {
	wait := s.cfg.DefaultWait
	if opts.WaitSeconds > 0 {
		wait = time.Duration(opts.WaitSeconds) * time.Second
	}
	return extract.Options{
		DownloadImages: opts.DownloadImages && s.cfg.DownloadImages,
		Label:          opts.CustomLabel,
		Wait:           wait,
	}
}

// crawl serves recent articles from the cache. Crawls that save images
// always hit the page so the files exist.
func (s *Service) crawl(ctx context.Context, url string, opts extract.Options) (*types.Article, error) {
	if s.cache != nil && !opts.DownloadImages {
		if cached, ok := s.cache.Get(url); ok {
			s.logger.Debug("article cache hit", zap.String("url", url))
			return cached.(*types.Article), nil
		}
	}

	article, err := s.crawler.Crawl(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetDefault(url, article)
	}
	return article, nil
}

// cachedSource lets the batch runner share the service cache.
type cachedSource struct {
	s *Service
}

func (c cachedSource) Crawl(ctx context.Context, url string, opts extract.Options) (*types.Article, error) {
	return c.s.crawl(ctx, url, opts)
}
