package deploy

import (
	"fmt"

	"doomstrap/pkg/deploy"

	"github.com/spf13/cobra"
)

func init() {
	Registry.Register(func(c *cobra.Command) {
		var configPath, file, notes string
		cmd := &cobra.Command{
			Use:   "launcher",
			Short: "Publish a launcher build and bump its revision",
			RunE: func(c *cobra.Command, args []string) error {
				dist, gh, err := setup(configPath)
				if err != nil {
					return err
				}
				launcher, err := deploy.Launcher(c.Context(), deploy.LauncherOptions{
					GitHub: gh,
					Dist:   dist,
					File:   file,
					Notes:  notes,
				})
				if err != nil {
					return err
				}
				fmt.Printf("Launcher r%s deployed: %s\n", launcher.Version, launcher.Windows.URL)
				return nil
			},
		}
		cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
		cmd.Flags().StringVar(&file, "file", "", "Path to the built launcher executable")
		cmd.Flags().StringVar(&notes, "notes", "", "Release notes")
		cmd.MarkFlagRequired("file")
		c.AddCommand(cmd)
	})
}
