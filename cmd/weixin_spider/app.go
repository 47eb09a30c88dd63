package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/browser"
	"github.com/jonathan/weixin-spider/internal/config"
	"github.com/jonathan/weixin-spider/internal/extract"
	"github.com/jonathan/weixin-spider/internal/session"
	"github.com/jonathan/weixin-spider/internal/tools"
)

// app is the wired component graph behind every command.
type app struct {
	crawler *extract.Crawler
	service *tools.Service
}

// newApp wires backend factory, session manager, extractor and tool service.
// No backend starts until the first crawl.
func newApp(cfg *config.Config, logger *zap.Logger) *app {
	browserOpts := cfg.BrowserOptions()
	factory := func(ctx context.Context) (browser.Driver, error) {
		return browser.Open(ctx, browserOpts, logger.Named("browser"))
	}

	manager := session.NewManager(factory, logger.Named("session"))
	downloader := extract.NewDownloader(cfg.OutputDir(), cfg.ImageTimeout(), logger.Named("download"))
	extractor := extract.NewExtractor(cfg.Rules(), downloader, logger.Named("extract"))
	crawler := extract.NewCrawler(manager, extractor, logger.Named("crawler"))

	return &app{
		crawler: crawler,
		service: tools.NewService(crawler, cfg.ServiceConfig(), logger.Named("tools")),
	}
}

// Close shuts the backend down if one was started.
func (a *app) Close() {
	a.crawler.Close()
}
