package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/smallnest/crag/metrics"
	"github.com/smallnest/crag/prebuilt"
	"github.com/spf13/cobra"
)

func newBenchCmd(root *rootOptions) *cobra.Command {
	var (
		runs        int
		question    string
		sequential  bool
		metricsPath string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time repeated pipeline invocations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runs <= 0 {
				return fmt.Errorf("--runs must be positive, got %d", runs)
			}
			if sequential {
				root.cfg.RAG.SequentialGrading = true
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.prepare(ctx); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if err := runBench(ctx, w, a.crag, a.collector, runs, question); err != nil {
				return err
			}
			return writeMetrics(metricsPath, w, a.collector)
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 3, "number of invocations")
	cmd.Flags().StringVar(&question, "question", "What is MCP?", "question to ask on every run")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "grade documents one at a time for comparison")
	cmd.Flags().StringVar(&metricsPath, "metrics", "", "write Prometheus metrics in text format to this file, - for stdout")
	return cmd
}

// runBench invokes the pipeline runs times and prints per-run timings, a
// summary and per-node latencies.
func runBench(ctx context.Context, w io.Writer, c *prebuilt.CorrectiveRAG, collector *metrics.Collector, runs int, question string) error {
	collector.Reset()
	fmt.Fprintf(w, "Running benchmark with %d iterations...\n", runs)

	times := make([]time.Duration, 0, runs)
	for i := range runs {
		start := time.Now()
		res, err := c.Invoke(ctx, question)
		if err != nil {
			return fmt.Errorf("run %d: %w", i+1, err)
		}
		elapsed := time.Since(start)
		times = append(times, elapsed)
		fmt.Fprintf(w, "  run %d/%d: %s (route: %s)\n", i+1, runs, elapsed.Round(time.Millisecond), res.Route)
	}

	printSummary(w, times)
	printNodeStats(w, collector.NodeStats())
	return nil
}

func printSummary(w io.Writer, times []time.Duration) {
	if len(times) == 0 {
		return
	}
	var total time.Duration
	for _, t := range times {
		total += t
	}
	avg := total / time.Duration(len(times))

	fmt.Fprintln(w, titleStyle.Render("Summary"))
	fmt.Fprintf(w, "  average: %s\n", avg.Round(time.Millisecond))
	fmt.Fprintf(w, "  min:     %s\n", slices.Min(times).Round(time.Millisecond))
	fmt.Fprintf(w, "  max:     %s\n", slices.Max(times).Round(time.Millisecond))
}
