package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"benchlab/internal/config"
	"benchlab/internal/depgraph"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <benchmark.yaml>...",
		Short: "Check benchmark files without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateBenchmarks(cmd.OutOrStdout(), root, args)
		},
	}
}

func validateBenchmarks(out io.Writer, root *rootOptions, paths []string) error {
	benches, err := loadBenchmarks(paths, config.BuildOptions{})
	if err != nil {
		return err
	}

	var failed int
	for _, b := range benches {
		workloads := b.Workloads()
		if err := depgraph.Validate(workloads); err != nil {
			failed++
			fmt.Fprintf(out, "%s: invalid\n", b.Title())
			for _, e := range depgraph.Errors(err) {
				fmt.Fprintf(out, "  %v\n", e)
			}
			continue
		}
		fmt.Fprintf(out, "%s: valid, %d workloads\n", b.Title(), len(workloads))
		for _, w := range depgraph.StartOrder(workloads) {
			fmt.Fprintf(out, "  %s\n", w)
		}
		if cycle := depgraph.CompletionCycle(workloads); cycle != nil {
			names := make([]string, len(cycle))
			for i, w := range cycle {
				names[i] = w.Name()
			}
			root.logger.Warn("workloads wait for each other's completion, a run ends only through cancellation",
				"benchmark", b.Title(), "workloads", names)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d benchmarks are invalid", failed, len(benches))
	}
	return nil
}
