package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd(root *rootOptions) *cobra.Command {
	var urls []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load, split and index documents",
		Long: `Fetch the configured URLs, split them into chunks and add the chunks to
the vector index. Embeddings go through the persistent embedding cache, so
re-ingesting unchanged text does not call the embedding model again.

With a persistent index the run is skipped once the data directory holds
an ingestion marker; delete the directory to re-ingest.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(urls) == 0 {
				urls = root.cfg.Ingest.URLs
			}
			if !a.persistentIndex() {
				fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render(
					"the in-memory index is discarded on exit; this run only warms the embedding cache"))
			}

			in, err := a.ingestor()
			if err != nil {
				return err
			}
			report, err := in.Run(ctx, urls)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if report.Skipped {
				fmt.Fprintln(w, warnStyle.Render("vector store already exists at "+root.cfg.Vector.DataDir))
				return nil
			}
			fmt.Fprintln(w, titleStyle.Render("Data ingestion completed"))
			fmt.Fprintf(w, "  documents:    %d\n", report.Documents)
			fmt.Fprintf(w, "  chunks:       %d\n", report.Chunks)
			fmt.Fprintf(w, "  cache hits:   %d\n", report.CacheHits)
			fmt.Fprintf(w, "  cache misses: %d\n", report.CacheMisses)
			fmt.Fprintf(w, "  cache:        %s (%s)\n", root.cfg.Cache.Backend, a.embedder.Namespace())
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&urls, "url", nil, "URL to ingest (repeatable); defaults to the configured list")
	return cmd
}
