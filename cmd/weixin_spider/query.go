package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/weixin-spider/internal/types"
)

// Query modes.
const (
	modeSummary = "summary"
	modeFull    = "full"
	modeAnalyze = "analyze"
)

// requestFlags are the per-request options shared by query and batch.
type requestFlags struct {
	format   string
	download bool
	label    string
	wait     int
}

func (f *requestFlags) register(cmd *cobra.Command, withImages bool) {
	cmd.Flags().StringVarP(&f.format, "format", "f", formatJSON, "Output format: json, yaml or pretty")
	cmd.Flags().IntVar(&f.wait, "wait", 0, "Seconds to wait for article content (0 uses crawl.wait_seconds)")
	if withImages {
		cmd.Flags().BoolVar(&f.download, "download-images", false, "Save article images under crawl.output_dir")
		cmd.Flags().StringVar(&f.label, "label", "", "Directory name for saved images (default derived from the URL)")
	}
}

func (f *requestFlags) options() types.RequestOptions {
	return types.RequestOptions{
		DownloadImages: f.download,
		CustomLabel:    f.label,
		WaitSeconds:    f.wait,
	}
}

func newQueryCmd(c *cli) *cobra.Command {
	var (
		flags requestFlags
		mode  string
	)

	cmd := &cobra.Command{
		Use:   "query <url>",
		Short: "Extract one article",
		Long:  "Renders one article and prints its summary (default), the full article, or the article with content statistics.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(flags.format); err != nil {
				return err
			}

			a := newApp(c.cfg, c.logger)
			defer a.Close()

			ctx := cmd.Context()
			url := args[0]
			var result any
			switch mode {
			case modeSummary:
				result = a.service.Summarize(ctx, url, flags.options())
			case modeFull:
				result = a.service.Crawl(ctx, url, flags.options())
			case modeAnalyze:
				result = a.service.Analyze(ctx, url, flags.options())
			default:
				return fmt.Errorf("unknown mode %q (want summary, full or analyze)", mode)
			}
			return render(cmd.OutOrStdout(), flags.format, result)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", modeSummary, "What to print: summary, full or analyze")
	flags.register(cmd, true)
	return cmd
}
