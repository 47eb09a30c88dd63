package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/weixin-spider/internal/crawlerr"
	"github.com/jonathan/weixin-spider/internal/extract"
	"github.com/jonathan/weixin-spider/internal/types"
)

// fakeSource serves canned articles and errors by URL and records every call.
type fakeSource struct {
	mu       sync.Mutex
	articles map[string]*types.Article
	errs     map[string]error
	calls    []string
	opts     []extract.Options
}

func (f *fakeSource) Crawl(_ context.Context, url string, opts extract.Options) (*types.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	f.opts = append(f.opts, opts)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if a, ok := f.articles[url]; ok {
		return a, nil
	}
	return nil, &crawlerr.BackendError{Backend: "fake", Message: "no such article"}
}

func articleURLs(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://mp.weixin.qq.com/s/%d", i)
	}
	return urls
}

func TestCompare_SizeBounds(t *testing.T) {
	for _, n := range []int{0, 1, 6, 10} {
		t.Run(fmt.Sprintf("%d urls", n), func(t *testing.T) {
			src := &fakeSource{}
			r := NewRunner(src, 0, extract.Options{}, nil)

			report, err := r.Compare(context.Background(), articleURLs(n), extract.Options{})
			assert.Nil(t, report)
			assert.Equal(t, crawlerr.KindValidation, crawlerr.KindOf(err))
			assert.Empty(t, src.calls)
		})
	}
}

func TestCompare_Ranking(t *testing.T) {
	urls := articleURLs(4)
	src := &fakeSource{articles: map[string]*types.Article{
		urls[0]: newArticle(urls[0], "", strings.Repeat("a", 100), 2),
		urls[1]: newArticle(urls[1], "", strings.Repeat("b", 300), 1),
		urls[2]: newArticle(urls[2], "", strings.Repeat("c", 100), 5),
		urls[3]: newArticle(urls[3], "", strings.Repeat("d", 500), 2),
	}}
	r := NewRunner(src, 0, extract.Options{}, nil)

	report, err := r.Compare(context.Background(), urls, extract.Options{})
	require.NoError(t, err)

	assert.Equal(t, urls, src.calls)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Kind)
	require.Len(t, report.Articles, 4)

	byWords := rankedURLs(report.Comparison.ByWordCount)
	assert.Equal(t, []string{urls[3], urls[1], urls[0], urls[2]}, byWords)

	byImages := rankedURLs(report.Comparison.ByImageCount)
	assert.Equal(t, []string{urls[2], urls[0], urls[3], urls[1]}, byImages)

	assert.Equal(t, types.ComparisonStats{
		TotalArticles:        4,
		SuccessfullyAnalyzed: 4,
		AvgWordCount:         250,
	}, report.Comparison.Stats)

	// Ranking does not reorder the input-ordered list.
	assert.Equal(t, urls, rankedURLs(report.Articles))
}

func TestCompare_PartialFailure(t *testing.T) {
	urls := articleURLs(2)
	src := &fakeSource{
		articles: map[string]*types.Article{
			urls[0]: newArticle(urls[0], "<p>x</p>", strings.Repeat("字", 120), 3),
		},
		errs: map[string]error{
			urls[1]: &crawlerr.BackendError{Backend: "agent-browser", Message: "exit status 1"},
		},
	}
	r := NewRunner(src, 0, extract.Options{}, nil)

	report, err := r.Compare(context.Background(), urls, extract.Options{})
	require.NoError(t, err)

	assert.Equal(t, crawlerr.KindPartialFailure, report.Kind)
	require.Len(t, report.Comparison.ByWordCount, 1)
	require.Len(t, report.Comparison.ByImageCount, 1)
	require.Len(t, report.Errors, 1)

	assert.Equal(t, urls[1], report.Errors[0].URL)
	assert.Equal(t, crawlerr.KindBackend, report.Errors[0].Kind)
	assert.Contains(t, report.Errors[0].Error, "exit status 1")

	assert.Equal(t, 2, report.Comparison.Stats.TotalArticles)
	assert.Equal(t, 1, report.Comparison.Stats.SuccessfullyAnalyzed)
	assert.Equal(t, 120.0, report.Comparison.Stats.AvgWordCount)
	assert.Equal(t, 1, report.Articles[0].Analysis.ParagraphCount)
}

func TestCompare_AllFailed(t *testing.T) {
	urls := articleURLs(3)
	r := NewRunner(&fakeSource{}, 0, extract.Options{}, nil)

	report, err := r.Compare(context.Background(), urls, extract.Options{})
	require.NoError(t, err)

	assert.Len(t, report.Errors, 3)
	assert.Empty(t, report.Kind)
	assert.NotNil(t, report.Comparison.ByWordCount)
	assert.Empty(t, report.Comparison.ByWordCount)
	assert.Zero(t, report.Comparison.Stats.AvgWordCount)
	assert.Zero(t, report.Comparison.Stats.SuccessfullyAnalyzed)
}

func TestCompare_NeverDownloadsImages(t *testing.T) {
	urls := articleURLs(2)
	src := &fakeSource{}
	r := NewRunner(src, 0, extract.Options{Wait: 7}, nil)

	_, err := r.Compare(context.Background(), urls, extract.Options{DownloadImages: true, Label: "x"})
	require.NoError(t, err)
	_, err = r.Compare(context.Background(), urls, extract.Options{Wait: 9})
	require.NoError(t, err)

	require.Len(t, src.opts, 4)
	for i, opts := range src.opts {
		assert.False(t, opts.DownloadImages)
		assert.Empty(t, opts.Label)
		if i < 2 {
			assert.EqualValues(t, 7, opts.Wait)
		} else {
			assert.EqualValues(t, 9, opts.Wait)
		}
	}
}

func TestCompare_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{errs: map[string]error{}}
	for _, u := range articleURLs(3) {
		src.errs[u] = context.Canceled
	}
	r := NewRunner(src, 0, extract.Options{}, nil)

	_, err := r.Compare(ctx, articleURLs(3), extract.Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, src.calls, 1)
}

func TestRank_Empty(t *testing.T) {
	c := Rank(nil, 2)
	assert.Empty(t, c.ByWordCount)
	assert.Equal(t, 2, c.Stats.TotalArticles)
	assert.Zero(t, c.Stats.AvgWordCount)
}

func rankedURLs(articles []types.ComparedArticle) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Summary.URL
	}
	return out
}
