// Package cli implements the benchlab command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"benchlab/internal/logging"
)

type rootOptions struct {
	debug     bool
	logLevel  string
	logFormat string

	logger *slog.Logger
}

// NewRootCmd creates the root cobra command for the benchlab CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "benchlab",
		Short: "benchlab runs workload benchmarks",
		Long: "benchlab runs benchmarks made of workloads that start immediately, after a delay or " +
			"after another workload completes, and run for a number of repetitions, a time span " +
			"or until another workload completes.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.debug {
				opts.logLevel = "debug"
			}
			opts.logger = logging.NewLoggerWithWriter(logging.ParseLevel(opts.logLevel), opts.logFormat, cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(opts),
		newValidateCmd(opts),
	)
	return root
}
