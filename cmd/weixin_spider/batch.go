package main

import (
	"github.com/spf13/cobra"
)

func newBatchCmd(c *cli) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "batch <url>...",
		Short: "Extract several articles and summarize each",
		Long:  "Crawls each URL in order. A failing URL is reported and the batch continues.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(flags.format); err != nil {
				return err
			}

			a := newApp(c.cfg, c.logger)
			defer a.Close()

			return render(cmd.OutOrStdout(), flags.format, a.service.Batch(cmd.Context(), args, flags.options()))
		},
	}

	flags.register(cmd, true)
	return cmd
}

func newCompareCmd(c *cli) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "compare <url> <url>...",
		Short: "Compare 2 to 5 articles by length and image count",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(flags.format); err != nil {
				return err
			}

			a := newApp(c.cfg, c.logger)
			defer a.Close()

			return render(cmd.OutOrStdout(), flags.format, a.service.Compare(cmd.Context(), args, flags.options()))
		},
	}

	flags.register(cmd, false)
	return cmd
}
