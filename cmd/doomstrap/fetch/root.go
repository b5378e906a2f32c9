// Package fetch implements the mod-only pipeline: resolve the newest
// package on the hosting site, download, verify, unpack. Nothing is
// launched.
package fetch

import (
	"fmt"
	"time"

	"doomstrap/cmd/doomstrap/launch"
	"doomstrap/pkg/config"
	"doomstrap/pkg/fetch"

	"github.com/spf13/cobra"
)

func GetCommand() *cobra.Command {
	var configPath string
	var force, headless bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the newest mod package without launching",
		RunE: func(c *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				var err error
				path, err = config.DefaultPath()
				if err != nil {
					return err
				}
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			fc := fetch.New(30 * time.Second)
			payload, err := launch.EnsurePayload(c.Context(), cfg, fc, force, headless)
			if err != nil {
				return err
			}
			launch.RecordPayload(c.Context(), cfg, payload)
			fmt.Println(payload.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	cmd.Flags().BoolVar(&force, "force", false, "Re-download even if the local copy looks current")
	cmd.Flags().BoolVar(&headless, "headless", false, "Log progress instead of drawing bars")
	return cmd
}
