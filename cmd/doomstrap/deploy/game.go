package deploy

import (
	"fmt"

	"doomstrap/pkg/deploy"

	"github.com/spf13/cobra"
)

func init() {
	Registry.Register(func(c *cobra.Command) {
		var configPath, version, file, label, channel, notes string
		cmd := &cobra.Command{
			Use:   "game",
			Short: "Publish a game build and register it in the manifest",
			RunE: func(c *cobra.Command, args []string) error {
				dist, gh, err := setup(configPath)
				if err != nil {
					return err
				}
				build, err := deploy.Game(c.Context(), deploy.GameOptions{
					GitHub:  gh,
					Dist:    dist,
					File:    file,
					Version: version,
					Label:   label,
					Channel: channel,
					Notes:   notes,
				})
				if err != nil {
					return err
				}
				fmt.Printf("Game %s deployed: %s\n", build.Version, build.Windows.URL)
				return nil
			},
		}
		cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
		cmd.Flags().StringVar(&version, "version", "", "Version string (e.g. 0.3.1)")
		cmd.Flags().StringVar(&file, "file", "", "Path to the built game package")
		cmd.Flags().StringVar(&label, "label", "Beta Release", "Display label")
		cmd.Flags().StringVar(&channel, "channel", "stable", "Release channel")
		cmd.Flags().StringVar(&notes, "notes", "", "Release notes")
		cmd.MarkFlagRequired("version")
		cmd.MarkFlagRequired("file")
		c.AddCommand(cmd)
	})
}
