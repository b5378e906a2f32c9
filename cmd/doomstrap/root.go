package main

import (
	"log/slog"
	"os"

	"doomstrap/pkg/registry"
	"doomstrap/pkg/version"

	"github.com/spf13/cobra"
)

var Registry registry.CommandRegistry

func main() {
	var verbose bool

	cmd := &cobra.Command{
		Use:     "doomstrap",
		Short:   "doomstrap - game mod launcher and distribution tools",
		Version: version.Version(),
		PersistentPreRun: func(c *cobra.Command, args []string) {
			if verbose {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	Registry.FillCommands(cmd)

	if err := cmd.Execute(); err != nil {
		slog.Error("error", "err", err)
		os.Exit(1)
	}
}
