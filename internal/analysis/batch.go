package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/crawlerr"
	"github.com/jonathan/weixin-spider/internal/extract"
	"github.com/jonathan/weixin-spider/internal/types"
)

// Batch crawls each URL in order and summarizes it. Failures are collected
// per URL and never stop the batch.
func (r *Runner) Batch(ctx context.Context, urls []string, opts extract.Options) (*types.BatchReport, error) {
	if len(urls) == 0 || len(urls) > r.maxBatch {
		return nil, &crawlerr.ValidationError{
			Field:   "urls",
			Message: fmt.Sprintf("batch needs 1 to %d urls, got %d", r.maxBatch, len(urls)),
		}
	}
	if opts.Wait <= 0 {
		opts.Wait = r.wait.Wait
	}

	report := &types.BatchReport{
		Total:    len(urls),
		Articles: []types.Summary{},
		Errors:   []types.URLError{},
	}

	for i, url := range urls {
		r.logger.Info("batch crawl", zap.Int("n", i+1), zap.Int("of", len(urls)), zap.String("url", url))

		perURL := opts
		if opts.DownloadImages && opts.Label != "" && len(urls) > 1 {
			// One directory per article under the caller's label.
			perURL.Label = fmt.Sprintf("%s_%02d", opts.Label, i+1)
		}

		article, err := r.source.Crawl(ctx, url, perURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			report.Errors = append(report.Errors, urlError(url, err))
			r.logger.Warn("batch: crawl failed", zap.String("url", url), zap.Error(err))
			continue
		}
		report.Articles = append(report.Articles, Summarize(article))
	}

	report.Success = len(report.Articles)
	report.Failed = len(report.Errors)
	report.Kind = outcomeKind(report.Success, report.Failed)
	return report, nil
}
