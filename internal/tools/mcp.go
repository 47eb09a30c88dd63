package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jonathan/weixin-spider/internal/crawlerr"
	"github.com/jonathan/weixin-spider/internal/types"
)

// Tool names.
const (
	ToolCrawl     = "crawl_weixin_article"
	ToolAnalyze   = "analyze_weixin_article"
	ToolSummarize = "summarize_weixin_article"
	ToolBatch     = "batch_crawl_articles"
	ToolCompare   = "compare_articles"
)

// ServerName identifies the MCP server to clients.
const ServerName = "weixin-spider"

// NewMCPServer registers every tool operation of svc on a new MCP server.
func NewMCPServer(svc *Service, version string) *server.MCPServer {
	s := server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false))
	for _, t := range svc.mcpTools() {
		s.AddTool(t.tool, t.handler)
	}
	return s
}

// ServeStdio runs the MCP server on stdin/stdout until the client disconnects.
func ServeStdio(svc *Service, version string) error {
	return server.ServeStdio(NewMCPServer(svc, version))
}

type mcpTool struct {
	tool    mcp.Tool
	handler server.ToolHandlerFunc
}

func optionParams(downloadDefault bool) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithBoolean("download_images",
			mcp.Description("Download embedded images to the output directory"),
			mcp.DefaultBool(downloadDefault),
		),
		mcp.WithString("custom_label",
			mcp.Description("Name of the image directory; sanitized to letters, digits, '-' and '_'"),
		),
		mcp.WithNumber("wait_seconds",
			mcp.Description("Seconds to wait for the article body to render (0-120)"),
		),
	}
}

func (s *Service) mcpTools() []mcpTool {
	urlParam := mcp.WithString("url",
		mcp.Required(),
		mcp.Description("Article URL on mp.weixin.qq.com"),
	)
	urlsParam := func(desc string) mcp.ToolOption {
		return mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description(desc),
			mcp.Items(map[string]any{"type": "string"}),
		)
	}

	crawlOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Crawl a WeChat public account article: title, author, account name, publish date, body text and HTML, images. Optionally downloads the images."),
		urlParam,
	}, optionParams(true)...)

	batchOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Crawl several WeChat articles in order and return a summary of each, plus any per-article errors."),
		urlsParam("Article URLs"),
	}, optionParams(false)...)

	return []mcpTool{
		{
			tool:    mcp.NewTool(ToolCrawl, crawlOpts...),
			handler: s.articleHandler(s.Crawl),
		},
		{
			tool: mcp.NewTool(ToolAnalyze,
				mcp.WithDescription("Crawl and analyze a WeChat article: word and paragraph counts, image count, estimated reading time and key phrases."),
				urlParam,
				mcp.WithNumber("wait_seconds", mcp.Description("Seconds to wait for the article body to render (0-120)")),
			),
			handler: s.articleHandler(s.Analyze),
		},
		{
			tool: mcp.NewTool(ToolSummarize,
				mcp.WithDescription("Get a brief summary of a WeChat article with the first 300 characters of its text."),
				urlParam,
				mcp.WithNumber("wait_seconds", mcp.Description("Seconds to wait for the article body to render (0-120)")),
			),
			handler: s.articleHandler(s.Summarize),
		},
		{
			tool:    mcp.NewTool(ToolBatch, batchOpts...),
			handler: s.multiHandler(s.Batch),
		},
		{
			tool: mcp.NewTool(ToolCompare,
				mcp.WithDescription("Compare 2 to 5 WeChat articles side by side, ranked by word count and image count."),
				urlsParam("2 to 5 article URLs"),
				mcp.WithNumber("wait_seconds", mcp.Description("Seconds to wait for each article body to render (0-120)")),
			),
			handler: s.multiHandler(s.Compare),
		},
	}
}

func requestOptionsFrom(req mcp.CallToolRequest, downloadDefault bool) types.RequestOptions {
	label := req.GetString("custom_label", "")
	if label == "" {
		label = req.GetString("custom_filename", "")
	}
	return types.RequestOptions{
		DownloadImages: req.GetBool("download_images", downloadDefault),
		CustomLabel:    label,
		WaitSeconds:    req.GetInt("wait_seconds", 0),
	}
}

func (s *Service) articleHandler(op func(context.Context, string, types.RequestOptions) any) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := req.RequireString("url")
		if err != nil {
			return toolResult(&ErrorResult{Error: err.Error(), Kind: crawlerr.KindValidation})
		}
		return toolResult(op(ctx, url, requestOptionsFrom(req, true)))
	}
}

// multiHandler serves the batch tools, which do not download images unless asked.
func (s *Service) multiHandler(op func(context.Context, []string, types.RequestOptions) any) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls := req.GetStringSlice("urls", nil)
		return toolResult(op(ctx, urls, requestOptionsFrom(req, false)))
	}
}

// toolResult renders payload as indented JSON text. Payloads carrying an
// error are flagged so the client can tell them apart.
func toolResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	if _, failed := payload.(*ErrorResult); failed {
		return mcp.NewToolResultError(string(data)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
