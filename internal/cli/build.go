package cli

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftlang/weft/internal/build"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	ForceRebuild bool
	Jobs         int
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the configured units incrementally",
		Long: `Build every unit in the project manifest.

Results from the previous session are reused for any unit whose inputs
are unchanged. Use --force-rebuild to ignore the previous session and
recompile everything.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.ForceRebuild, "force-rebuild", false, "ignore the previous session and recompile everything")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", runtime.NumCPU(), "maximum parallel units")

	return cmd
}

func runBuild(opts *BuildOptions, cmd *cobra.Command) error {
	cfg, err := build.LoadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}

	runner := build.NewRunner(cfg, opts.Logger())
	report, err := runner.Run(cmd.Context(), opts.ForceRebuild, opts.Jobs)
	if err != nil {
		return WrapExitError(ExitCommandError, "build", err)
	}

	printReport(cmd.OutOrStdout(), report)
	if failed := report.Failed(); failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d unit(s) failed", failed))
	}
	return nil
}

func printReport(w io.Writer, report *build.Report) {
	for _, unit := range report.Units {
		if unit.Err != nil {
			fmt.Fprintf(w, "✗ %s\n    %v\n", unit.Module, unit.Err)
			continue
		}
		fmt.Fprintf(w, "✓ %s (%d bytes IR", unit.Module, len(unit.Result.IR))
		if len(unit.Result.LinkLibs) > 0 {
			fmt.Fprintf(w, ", links %v", unit.Result.LinkLibs)
		}
		fmt.Fprintln(w, ")")
	}
	fmt.Fprintf(w, "\n%d executed, %d reused in %s\n",
		report.Stats.TotalExecuted(), report.Stats.Reused, report.Duration.Round(time.Millisecond))
}
