package main

import (
	"fmt"

	"github.com/smallnest/crag/graph"
	"github.com/spf13/cobra"
)

func newGraphCmd(_ *rootOptions) *cobra.Command {
	var direction string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the pipeline as a Mermaid flowchart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := topologyOnly()
			if err != nil {
				return err
			}
			out := graph.NewExporter(c.Graph()).DrawMermaidWithOptions(graph.MermaidOptions{Direction: direction})
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "TD", "flowchart direction (TD or LR)")
	return cmd
}
