// Package history lists the local download journal.
package history

import (
	"fmt"

	"doomstrap/pkg/config"
	"doomstrap/pkg/journal"

	"github.com/spf13/cobra"
)

func GetCommand() *cobra.Command {
	var configPath, kind string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded downloads",
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

			j, err := journal.Open(cfg.Paths.Journal)
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.List(c.Context(), kind, limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				mark := " "
				if e.Verified {
					mark = "*"
				}
				fmt.Printf("%s %s%-9s %-40s %s\n",
					e.CreatedAt.Format("2006-01-02 15:04"), mark, e.Kind, e.Name, e.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind (engine, iwad, mod, launcher)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show")
	return cmd
}
