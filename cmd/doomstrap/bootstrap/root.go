// Package bootstrap is the thin self-updating entrypoint: it keeps the
// real launcher up to date under app/ next to this binary and then starts
// it. Built as the executable users double-click, it must almost never
// change.
package bootstrap

import (
	"os"
	"time"

	"doomstrap/pkg/bootstrap"
	"doomstrap/pkg/config"
	"doomstrap/pkg/fetch"
	"doomstrap/pkg/github"
	"doomstrap/pkg/progress"

	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	var configPath, appDir string
	var headless bool
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Update the launcher and start it",
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

			fc := fetch.New(5 * time.Minute)
			r := progress.New(os.Stderr, "launcher update", headless)
			defer r.Finish()
			return bootstrap.Run(c.Context(), bootstrap.Options{
				Client:    fc,
				GitHub:    github.New(fc),
				Repo:      cfg.Dist.Repo,
				AssetName: cfg.Dist.LauncherAsset,
				AppDir:    appDir,
				Progress:  r.Update,
			})
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&appDir, "app-dir", "", "Install dir (default: app/ next to this executable)")
	cmd.Flags().BoolVar(&headless, "headless", false, "Log progress instead of drawing bars")
	return cmd
}
