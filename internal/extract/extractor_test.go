package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/weixin-spider/internal/browser"
	"github.com/jonathan/weixin-spider/internal/crawlerr"
)

const articleURL = "https://mp.weixin.qq.com/s/test-article"

const articlePage = `<html><body>
<h1 class="rich_media_title" id="activity-name">
    测试文章标题
</h1>
<div class="rich_media_meta_list">
  <span class="rich_media_meta rich_media_meta_text">  张三 </span>
  <a id="js_name" class="weui-wa-hotarea">测试公众号</a>
  <em id="publish_time">2024-01-15</em>
</div>
<div id="js_content">
  <p>第一段<strong>重点</strong></p>
  <p>第二段</p>
  <img data-src="https://mmbiz.qpic.cn/a.jpg" src="data:image/gif;base64,R0lGOD" alt="封面">
  <img src="https://mmbiz.qpic.cn/b.png">
  <img src="data:image/png;base64,AAAA">
  <img data-src="" src="https://mmbiz.qpic.cn/c.gif" alt=" 图三 ">
</div>
</body></html>`

func testRules() Rules {
	rules := DefaultRules()
	rules.SettleDelay = 0
	return rules
}

func mustDocument(t *testing.T, html string, imageLimit int) *browser.StaticDriver {
	t.Helper()
	d, err := browser.NewDocumentDriver(html, imageLimit)
	require.NoError(t, err)
	return d
}

func TestExtract_Fields(t *testing.T) {
	e := NewExtractor(testRules(), nil, nil)
	driver := mustDocument(t, articlePage, 0)

	article, err := e.Extract(context.Background(), driver, articleURL, Options{})
	require.NoError(t, err)

	assert.Equal(t, articleURL, article.URL)
	assert.Equal(t, "测试文章标题", article.Title)
	assert.Equal(t, "张三", article.Author)
	assert.Equal(t, "测试公众号", article.AccountName)
	assert.Equal(t, "2024-01-15", article.PublishDate)
	assert.Contains(t, article.ContentHTML, "<strong>重点</strong>")
	assert.True(t, strings.HasPrefix(article.ContentText, "第一段重点"))
	assert.Equal(t, len([]rune(article.ContentText)), article.WordCount)
	assert.NotEmpty(t, article.CrawlTimestamp)
}

func TestExtract_Images(t *testing.T) {
	e := NewExtractor(testRules(), nil, nil)
	driver := mustDocument(t, articlePage, 0)

	article, err := e.Extract(context.Background(), driver, articleURL, Options{})
	require.NoError(t, err)

	require.Len(t, article.Images, 3)
	assert.Equal(t, "https://mmbiz.qpic.cn/a.jpg", article.Images[0].URL)
	assert.Equal(t, "封面", article.Images[0].Alt)
	assert.Equal(t, "https://mmbiz.qpic.cn/b.png", article.Images[1].URL)
	assert.Equal(t, "", article.Images[1].Alt)
	assert.Equal(t, "https://mmbiz.qpic.cn/c.gif", article.Images[2].URL)
	assert.Equal(t, "图三", article.Images[2].Alt)

	for i, img := range article.Images {
		assert.Equal(t, i, img.Index)
		assert.Empty(t, img.LocalPath)
	}
}

func TestExtract_SelectorFallback(t *testing.T) {
	page := `<html><body>
<h1 class="rich_media_title">   </h1>
<div id="activity-name">备用标题</div>
<span class="profile_nickname">昵称</span>
<div class="rich_media_meta_list"><em>2023-12-01</em></div>
<div id="js_content"><p>正文</p></div>
</body></html>`

	e := NewExtractor(testRules(), nil, nil)
	article, err := e.Extract(context.Background(), mustDocument(t, page, 0), articleURL, Options{})
	require.NoError(t, err)

	assert.Equal(t, "备用标题", article.Title)
	assert.Equal(t, "昵称", article.Author)
	assert.Equal(t, "昵称", article.AccountName)
	assert.Equal(t, "2023-12-01", article.PublishDate)
}

func TestExtract_MissingFieldsAreEmptyAndLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e := NewExtractor(testRules(), nil, zap.New(core))

	page := `<html><body><div id="js_content"><p>只有正文</p></div></body></html>`
	article, err := e.Extract(context.Background(), mustDocument(t, page, 0), articleURL, Options{})
	require.NoError(t, err)

	assert.Equal(t, "", article.Title)
	assert.Equal(t, "", article.Author)
	assert.Equal(t, "", article.AccountName)
	assert.Equal(t, "", article.PublishDate)
	assert.Equal(t, "只有正文", article.ContentText)
	assert.Empty(t, article.Images)
	assert.NotNil(t, article.Images)

	assert.Equal(t, 4, logs.FilterMessage("field not found").Len())
}

func TestExtract_RejectsHostBeforeNavigating(t *testing.T) {
	driver := &recordingDriver{Driver: mustDocument(t, articlePage, 0)}
	e := NewExtractor(testRules(), nil, nil)

	_, err := e.Extract(context.Background(), driver, "https://example.com/s/x", Options{})
	assert.Equal(t, crawlerr.KindValidation, crawlerr.KindOf(err))
	assert.Zero(t, driver.navigations)
}

func TestExtract_ChallengeWithoutContentIsBlocked(t *testing.T) {
	page := `<html><body><div class="weui-msg"><p>当前环境异常，完成验证后即可继续访问。</p></div></body></html>`
	e := NewExtractor(testRules(), nil, nil)

	_, err := e.Extract(context.Background(), mustDocument(t, page, 0), articleURL, Options{})

	var blocked *crawlerr.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, crawlerr.KindBlocked, crawlerr.KindOf(err))
	assert.Equal(t, "环境异常", blocked.Marker)
	assert.Equal(t, articleURL, blocked.URL)
}

func TestExtract_ChallengeWithContentIsBlocked(t *testing.T) {
	page := `<html><body><div id="js_content"><p>请完成验证</p></div></body></html>`
	e := NewExtractor(testRules(), nil, nil)

	_, err := e.Extract(context.Background(), mustDocument(t, page, 0), articleURL, Options{})
	assert.Equal(t, crawlerr.KindBlocked, crawlerr.KindOf(err))
}

func TestExtract_MissingContentIsTimeout(t *testing.T) {
	page := `<html><body><p>loading</p></body></html>`
	e := NewExtractor(testRules(), nil, nil)

	_, err := e.Extract(context.Background(), mustDocument(t, page, 0), articleURL, Options{Wait: time.Second})
	assert.Equal(t, crawlerr.KindTimeout, crawlerr.KindOf(err))
}

func TestExtract_NavigateFailurePropagates(t *testing.T) {
	driver := &recordingDriver{
		Driver:      mustDocument(t, articlePage, 0),
		navigateErr: &crawlerr.BackendError{Backend: "test", Message: "crashed"},
	}
	e := NewExtractor(testRules(), nil, nil)

	_, err := e.Extract(context.Background(), driver, articleURL, Options{})
	assert.Equal(t, crawlerr.KindBackend, crawlerr.KindOf(err))
}

func imagePage(n int, placeholders int) string {
	var b strings.Builder
	b.WriteString(`<html><body><h1>t</h1><div id="js_content">`)
	for i := 0; i < placeholders; i++ {
		b.WriteString(`<img src="data:image/gif;base64,R0lGOD">`)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<img data-src="https://mmbiz.qpic.cn/%d.jpg">`, i)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func TestExtract_ImageLimit(t *testing.T) {
	e := NewExtractor(testRules(), nil, nil)
	page := imagePage(25, 0)

	limited, err := e.Extract(context.Background(), mustDocument(t, page, browser.AgentBrowserImageLimit), articleURL, Options{})
	require.NoError(t, err)
	assert.Len(t, limited.Images, 20)

	unbounded, err := e.Extract(context.Background(), mustDocument(t, page, 0), articleURL, Options{})
	require.NoError(t, err)
	assert.Len(t, unbounded.Images, 25)
	assert.Equal(t, 24, unbounded.Images[24].Index)
}

func TestExtract_PlaceholdersDropped(t *testing.T) {
	e := NewExtractor(testRules(), nil, nil)

	article, err := e.Extract(context.Background(), mustDocument(t, imagePage(3, 2), 0), articleURL, Options{})
	require.NoError(t, err)
	require.Len(t, article.Images, 3)
	for i, img := range article.Images {
		assert.Equal(t, i, img.Index)
		assert.False(t, strings.HasPrefix(img.URL, "data:"))
	}
}

func TestExtract_CancelledContext(t *testing.T) {
	e := NewExtractor(testRules(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	driver := &recordingDriver{Driver: mustDocument(t, articlePage, 0), honorContext: true}
	_, err := e.Extract(ctx, driver, articleURL, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtract_DownloadsImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		case "/b":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	page := fmt.Sprintf(`<html><body><div id="js_content">
<img data-src="%[1]s/a"><img data-src="%[1]s/missing"><img data-src="%[1]s/b">
</div></body></html>`, srv.URL)

	root := t.TempDir()
	e := NewExtractor(testRules(), NewDownloader(root, time.Second, nil), nil)

	article, err := e.Extract(context.Background(), mustDocument(t, page, 0), articleURL,
		Options{DownloadImages: true, Label: "../my article"})
	require.NoError(t, err)
	require.Len(t, article.Images, 3)

	dir := filepath.Join(root, "myarticle")
	assert.Equal(t, filepath.Join(dir, "image_000.png"), article.Images[0].LocalPath)
	assert.Empty(t, article.Images[1].LocalPath)
	assert.Equal(t, filepath.Join(dir, "image_002.jpg"), article.Images[2].LocalPath)

	data, err := os.ReadFile(article.Images[0].LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestExtract_DefaultDownloadDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	page := fmt.Sprintf(`<html><body><div id="js_content"><img src="%s/x"></div></body></html>`, srv.URL)
	root := t.TempDir()
	e := NewExtractor(testRules(), NewDownloader(root, time.Second, nil), nil)

	article, err := e.Extract(context.Background(), mustDocument(t, page, 0), articleURL, Options{DownloadImages: true})
	require.NoError(t, err)

	expected := filepath.Join(root, DefaultLabel(articleURL))
	assert.Equal(t, expected, filepath.Dir(article.Images[0].LocalPath))
}

func TestExtract_NoDownloadWithoutFlag(t *testing.T) {
	root := t.TempDir()
	e := NewExtractor(testRules(), NewDownloader(root, time.Second, nil), nil)

	article, err := e.Extract(context.Background(), mustDocument(t, articlePage, 0), articleURL, Options{})
	require.NoError(t, err)
	for _, img := range article.Images {
		assert.Empty(t, img.LocalPath)
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// recordingDriver counts navigations and can inject failures.
type recordingDriver struct {
	browser.Driver
	navigations  int
	navigateErr  error
	honorContext bool
}

func (d *recordingDriver) Navigate(ctx context.Context, url string) error {
	d.navigations++
	if d.honorContext && ctx.Err() != nil {
		return ctx.Err()
	}
	if d.navigateErr != nil {
		return d.navigateErr
	}
	return d.Driver.Navigate(ctx, url)
}

// faultyDriver fails one query method for one selector.
type faultyDriver struct {
	browser.Driver
	method   string
	selector string
	err      error
}

func (d *faultyDriver) fails(method, selector string) bool {
	return d.method == method && d.selector == selector
}

func (d *faultyDriver) QueryText(ctx context.Context, selector string) (string, error) {
	if d.fails("text", selector) {
		return "", d.err
	}
	return d.Driver.QueryText(ctx, selector)
}

func (d *faultyDriver) QueryHTML(ctx context.Context, selector string) (string, error) {
	if d.fails("html", selector) {
		return "", d.err
	}
	return d.Driver.QueryHTML(ctx, selector)
}

func (d *faultyDriver) QueryAttribute(ctx context.Context, selector string, index int, attr string) (string, error) {
	if d.fails("attr", selector) {
		return "", d.err
	}
	return d.Driver.QueryAttribute(ctx, selector, index, attr)
}

func (d *faultyDriver) CountMatches(ctx context.Context, selector string) (int, error) {
	if d.fails("count", selector) {
		return 0, d.err
	}
	return d.Driver.CountMatches(ctx, selector)
}

func TestExtract_DriverFailuresPropagate(t *testing.T) {
	rules := testRules()
	timeout := &crawlerr.TimeoutError{Operation: "get html"}
	backend := &crawlerr.BackendError{Backend: "test", Message: "browser crashed"}

	tests := []struct {
		name     string
		method   string
		selector string
		err      error
		kind     string
	}{
		{"content html timeout", "html", rules.ContentSelector, timeout, crawlerr.KindTimeout},
		{"content text timeout", "text", rules.ContentSelector, timeout, crawlerr.KindTimeout},
		{"image count timeout", "count", rules.ImageSelector, timeout, crawlerr.KindTimeout},
		{"title backend failure", "text", rules.TitleSelectors[0], backend, crawlerr.KindBackend},
		{"image attribute backend failure", "attr", rules.ImageSelector, backend, crawlerr.KindBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &faultyDriver{
				Driver:   mustDocument(t, articlePage, 0),
				method:   tt.method,
				selector: tt.selector,
				err:      tt.err,
			}
			e := NewExtractor(rules, nil, nil)

			article, err := e.Extract(context.Background(), driver, articleURL, Options{})
			require.Error(t, err)
			assert.Nil(t, article)
			assert.Equal(t, tt.kind, crawlerr.KindOf(err))
		})
	}
}

func TestExtract_NotFoundLeavesFieldsEmpty(t *testing.T) {
	rules := testRules()
	tests := []struct {
		name     string
		method   string
		selector string
		check    func(t *testing.T, title, content string, images int)
	}{
		{"content container", "html", rules.ContentSelector, func(t *testing.T, title, content string, images int) {
			assert.Equal(t, "测试文章标题", title)
			assert.Empty(t, content)
		}},
		{"image count", "count", rules.ImageSelector, func(t *testing.T, title, content string, images int) {
			assert.NotEmpty(t, content)
			assert.Zero(t, images)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &faultyDriver{
				Driver:   mustDocument(t, articlePage, 0),
				method:   tt.method,
				selector: tt.selector,
				err:      browser.ErrNotFound,
			}
			e := NewExtractor(rules, nil, nil)

			article, err := e.Extract(context.Background(), driver, articleURL, Options{})
			require.NoError(t, err)
			tt.check(t, article.Title, article.ContentText, article.ImageCount())
		})
	}
}
