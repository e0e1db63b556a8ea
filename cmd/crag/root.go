package main

import (
	"fmt"

	"github.com/smallnest/crag/config"
	"github.com/smallnest/crag/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile  string
	logLevel string
	cfg      *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "crag",
		Short:         "Corrective retrieval-augmented generation",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error, none); overrides CRAG_LOG_LEVEL")

	cmd.AddCommand(
		newAskCmd(opts),
		newIngestCmd(opts),
		newBenchCmd(opts),
		newGraphCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() error {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetDefaultLogger(log.NewDefaultLogger(level))

	o.cfg = cfg
	return nil
}
