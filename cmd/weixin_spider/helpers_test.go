package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// tinyPNG is a 1x1 transparent PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

const articleTemplate = `<html><head><title>%[1]s</title></head><body>
<h1 class="rich_media_title">%[1]s</h1>
<span class="rich_media_meta rich_media_meta_text">李四</span>
<a id="js_name">效率研究所</a>
<em id="publish_time">2024-05-01</em>
<div id="js_content">
<p>第一段，<strong>时间管理</strong>的核心是专注。</p>
<p>第二段，<strong>番茄工作法</strong>值得一试。</p>
<img data-src="%[2]s/img/cover.png" alt="封面">
</div>
</body></html>`

// newArticleSite serves two articles at /s/one and /s/two, a page with no
// content at /s/empty, and a PNG at /img/cover.png.
func newArticleSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/s/one", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, articleTemplate, "高效工作的秘诀", srv.URL)
	})
	mux.HandleFunc("/s/two", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, articleTemplate, "第二篇文章", srv.URL)
	})
	mux.HandleFunc("/s/empty", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html><body><p>loading</p></body></html>`)
	})
	mux.HandleFunc("/img/cover.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(tinyPNG)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// useStaticBackend points config at the static backend and allows the test
// server host. It returns the image output directory.
func useStaticBackend(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	outDir := t.TempDir()
	t.Setenv("WEIXIN_SPIDER_BACKEND", "static")
	t.Setenv("WEIXIN_SPIDER_CRAWL_ALLOWED_HOSTS", "127.0.0.1")
	t.Setenv("WEIXIN_SPIDER_CRAWL_SETTLE_MILLIS", "0")
	t.Setenv("WEIXIN_SPIDER_CRAWL_CACHE_TTL_SECS", "0")
	t.Setenv("WEIXIN_SPIDER_CRAWL_OUTPUT_DIR", outDir)
	t.Setenv("WEIXIN_SPIDER_LOG_LEVEL", "error")
	return outDir
}

// runCLI executes one command line in-process and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)

	err := root.Execute()
	return out.String(), err
}
