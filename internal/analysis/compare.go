package analysis

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/crawlerr"
	"github.com/jonathan/weixin-spider/internal/extract"
	"github.com/jonathan/weixin-spider/internal/types"
)

// Comparison bounds.
const (
	MinCompareURLs = 2
	MaxCompareURLs = 5
)

// DefaultMaxBatch is the batch size limit when none is configured.
const DefaultMaxBatch = 10

// ArticleSource produces articles; extract.Crawler is the production one.
type ArticleSource interface {
	Crawl(ctx context.Context, url string, opts extract.Options) (*types.Article, error)
}

// Runner runs multi-article operations against a source, one URL at a time.
type Runner struct {
	source   ArticleSource
	maxBatch int
	wait     extract.Options
	logger   *zap.Logger
}

// NewRunner creates a runner. maxBatch <= 0 uses DefaultMaxBatch. base
// supplies the wait bound when a call does not set one.
func NewRunner(source ArticleSource, maxBatch int, base extract.Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &Runner{source: source, maxBatch: maxBatch, wait: base, logger: logger}
}

// MaxBatch returns the configured batch size limit.
func (r *Runner) MaxBatch() int {
	return r.maxBatch
}

// Compare crawls and analyzes 2 to 5 articles and ranks them. Images are
// never saved. A failed URL becomes an error entry; the rest are still compared.
func (r *Runner) Compare(ctx context.Context, urls []string, opts extract.Options) (*types.ComparisonReport, error) {
	if len(urls) < MinCompareURLs || len(urls) > MaxCompareURLs {
		return nil, &crawlerr.ValidationError{
			Field:   "urls",
			Message: fmt.Sprintf("compare needs %d to %d urls, got %d", MinCompareURLs, MaxCompareURLs, len(urls)),
		}
	}

	opts = extract.Options{Wait: opts.Wait}
	if opts.Wait <= 0 {
		opts.Wait = r.wait.Wait
	}
	report := &types.ComparisonReport{
		Articles: []types.ComparedArticle{},
		Errors:   []types.URLError{},
	}

	for i, url := range urls {
		r.logger.Info("comparing article", zap.Int("n", i+1), zap.Int("of", len(urls)), zap.String("url", url))
		article, err := r.source.Crawl(ctx, url, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			report.Errors = append(report.Errors, urlError(url, err))
			r.logger.Warn("compare: crawl failed", zap.String("url", url), zap.Error(err))
			continue
		}
		report.Articles = append(report.Articles, types.ComparedArticle{
			Summary:  Summarize(article),
			Analysis: Analyze(article),
		})
	}

	report.Comparison = Rank(report.Articles, len(urls))
	report.Kind = outcomeKind(len(report.Articles), len(report.Errors))
	return report, nil
}

// Rank orders analyzed articles by word count and by image count, both
// descending with ties kept in input order, and averages the word count.
func Rank(articles []types.ComparedArticle, total int) types.Comparison {
	byWords := append([]types.ComparedArticle{}, articles...)
	sort.SliceStable(byWords, func(i, j int) bool {
		return byWords[i].Analysis.WordCount > byWords[j].Analysis.WordCount
	})

	byImages := append([]types.ComparedArticle{}, articles...)
	sort.SliceStable(byImages, func(i, j int) bool {
		return byImages[i].Analysis.ImageCount > byImages[j].Analysis.ImageCount
	})

	sum := 0
	for _, a := range articles {
		sum += a.Analysis.WordCount
	}

	return types.Comparison{
		ByWordCount:  byWords,
		ByImageCount: byImages,
		Stats: types.ComparisonStats{
			TotalArticles:        total,
			SuccessfullyAnalyzed: len(articles),
			AvgWordCount:         float64(sum) / float64(max(len(articles), 1)),
		},
	}
}

func urlError(url string, err error) types.URLError {
	return types.URLError{URL: url, Error: err.Error(), Kind: crawlerr.KindOf(err)}
}

// outcomeKind is PartialFailure only when successes and failures coexist.
func outcomeKind(succeeded, failed int) string {
	if succeeded > 0 && failed > 0 {
		return crawlerr.KindPartialFailure
	}
	return ""
}
