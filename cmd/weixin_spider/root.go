package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/config"
)

// cli carries state shared by every subcommand of one invocation.
type cli struct {
	configPath string
	backend    string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "weixin_spider",
		Short:         "WeChat public-platform article extractor",
		Long:          "Renders mp.weixin.qq.com articles in a browser backend, extracts their content and images, and serves crawl, analyze, summarize, batch and compare operations to agents over MCP or HTTP.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default ./weixin_spider.yaml if present)")
	root.PersistentFlags().StringVar(&c.backend, "backend", "", "Rendering backend: auto, chrome, agent-browser or static (overrides config)")

	root.AddCommand(
		newQueryCmd(c),
		newBatchCmd(c),
		newCompareCmd(c),
		newServeCmd(c),
		newValidateCmd(c),
	)
	return root
}

func (c *cli) setup() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.backend != "" {
		cfg.Backend = c.backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	c.cfg = cfg
	c.logger = logger
	return nil
}
