package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/server"
	"github.com/jonathan/weixin-spider/internal/tools"
)

// Transports.
const (
	transportStdio = "stdio"
	transportHTTP  = "http"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		transport string
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the article tools to agents",
		Long:  "Serves crawl, analyze, summarize, batch and compare over MCP on stdin/stdout (default) or as an HTTP JSON API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if transport != transportStdio && transport != transportHTTP {
				return fmt.Errorf("unknown transport %q (want stdio or http)", transport)
			}

			a := newApp(c.cfg, c.logger)
			defer a.Close()

			if transport == transportStdio {
				c.logger.Info("serving MCP tools on stdio", zap.String("version", version))
				return tools.ServeStdio(a.service, version)
			}

			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			srv := server.New(server.Config{Addr: addr}, a.service, c.logger.Named("server"))
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", transportStdio, "Transport: stdio (MCP) or http")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	return cmd
}
