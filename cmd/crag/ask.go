package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var format, metricsPath string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question",
		Long: `Retrieve documents for the question, grade them for relevance, fall back
to web search when any retrieved document is not relevant, and print the
generated answer.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.prepare(ctx); err != nil {
				return err
			}

			start := time.Now()
			res, err := a.crag.Invoke(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if err := printResult(w, res, format, time.Since(start)); err != nil {
				return err
			}
			return writeMetrics(metricsPath, w, a.collector)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text, html or raw")
	cmd.Flags().StringVar(&metricsPath, "metrics", "", "write Prometheus metrics in text format to this file, - for stdout")
	return cmd
}
