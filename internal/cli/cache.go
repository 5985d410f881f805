package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftlang/weft/internal/build"
	"github.com/weftlang/weft/internal/store"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the session cache",
	}
	cmd.AddCommand(newCacheDumpCommand(rootOpts))
	cmd.AddCommand(newCacheClearCommand(rootOpts))
	return cmd
}

func newCacheDumpCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "dump",
		Short:         "Print the current profile's session table as canonical JSON",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := build.LoadConfig(rootOpts.Config)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			opts, err := cfg.BuildOptions(false)
			if err != nil {
				return WrapExitError(ExitCommandError, "measure library environment", err)
			}
			optsFP := opts.Digest()
			table := store.Load(cfg.CachePath(optsFP.Hex()), optsFP, build.BuildDigest())
			out, err := table.DumpCanonical()
			if err != nil {
				return WrapExitError(ExitCommandError, "encode session table", err)
			}
			cmd.OutOrStdout().Write(out)
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func newCacheClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Remove all session tables and artifacts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := build.LoadConfig(rootOpts.Config)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			if err := os.RemoveAll(cfg.BuildDir); err != nil {
				return WrapExitError(ExitCommandError, "clear cache", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", cfg.BuildDir)
			return nil
		},
	}
}
