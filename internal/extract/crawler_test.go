package extract

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/weixin-spider/internal/browser"
	"github.com/jonathan/weixin-spider/internal/crawlerr"
	"github.com/jonathan/weixin-spider/internal/session"
)

func newTestCrawler(t *testing.T, html string, created *atomic.Int32) *Crawler {
	t.Helper()
	factory := func(context.Context) (browser.Driver, error) {
		created.Add(1)
		return browser.NewDocumentDriver(html, 0)
	}
	return NewCrawler(session.NewManager(factory, nil), NewExtractor(testRules(), nil, nil), nil)
}

func TestCrawler_ReusesSession(t *testing.T) {
	var created atomic.Int32
	c := newTestCrawler(t, articlePage, &created)
	defer c.Close()

	for i := 0; i < 3; i++ {
		article, err := c.Crawl(context.Background(), articleURL, Options{})
		require.NoError(t, err)
		assert.Equal(t, "测试文章标题", article.Title)
	}
	assert.Equal(t, int32(1), created.Load())
}

func TestCrawler_InvalidURLNeverStartsBackend(t *testing.T) {
	var created atomic.Int32
	c := newTestCrawler(t, articlePage, &created)

	_, err := c.Crawl(context.Background(), "https://example.com/a", Options{})
	assert.Equal(t, crawlerr.KindValidation, crawlerr.KindOf(err))
	assert.Zero(t, created.Load())
}

func TestCrawler_TimeoutReleasesSession(t *testing.T) {
	var created atomic.Int32
	c := newTestCrawler(t, `<html><body>loading</body></html>`, &created)

	_, err := c.Crawl(context.Background(), articleURL, Options{})
	require.Equal(t, crawlerr.KindTimeout, crawlerr.KindOf(err))
	_, err = c.Crawl(context.Background(), articleURL, Options{})
	require.Equal(t, crawlerr.KindTimeout, crawlerr.KindOf(err))

	assert.Equal(t, int32(2), created.Load())
}

func TestCrawler_BlockedKeepsSession(t *testing.T) {
	var created atomic.Int32
	c := newTestCrawler(t, `<html><body>环境异常</body></html>`, &created)

	for i := 0; i < 2; i++ {
		_, err := c.Crawl(context.Background(), articleURL, Options{})
		require.Equal(t, crawlerr.KindBlocked, crawlerr.KindOf(err))
	}
	assert.Equal(t, int32(1), created.Load())
}

func TestCrawler_QueryTimeoutReleasesSession(t *testing.T) {
	var created atomic.Int32
	rules := testRules()
	factory := func(context.Context) (browser.Driver, error) {
		created.Add(1)
		doc, err := browser.NewDocumentDriver(articlePage, 0)
		if err != nil {
			return nil, err
		}
		return &faultyDriver{
			Driver:   doc,
			method:   "count",
			selector: rules.ImageSelector,
			err:      &crawlerr.TimeoutError{Operation: "get count"},
		}, nil
	}
	c := NewCrawler(session.NewManager(factory, nil), NewExtractor(rules, nil, nil), nil)

	for i := 0; i < 2; i++ {
		article, err := c.Crawl(context.Background(), articleURL, Options{})
		require.Equal(t, crawlerr.KindTimeout, crawlerr.KindOf(err))
		assert.Nil(t, article)
	}
	assert.Equal(t, int32(2), created.Load())
}
