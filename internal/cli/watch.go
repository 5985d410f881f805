package cli

import (
	"context"
	"errors"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/weftlang/weft/internal/build"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Jobs int
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild on source changes",
		Long: `Build once, then watch the source directory and run an incremental
session for each batch of changes. Runs until interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", runtime.NumCPU(), "maximum parallel units")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	cfg, err := build.LoadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}

	runner := build.NewRunner(cfg, opts.Logger())
	err = runner.Watch(cmd.Context(), opts.Jobs, func(report *build.Report) {
		printReport(cmd.OutOrStdout(), report)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitCommandError, "watch", err)
	}
	return nil
}
