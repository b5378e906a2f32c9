// Package deploy holds the release publishing commands. These run on a
// maintainer machine with GITHUB_TOKEN set and a writable dist repo.
package deploy

import (
	"doomstrap/pkg/config"
	"doomstrap/pkg/deploy"
	"doomstrap/pkg/fetch"
	"doomstrap/pkg/github"
	"doomstrap/pkg/registry"

	"time"

	"github.com/spf13/cobra"
)

var Registry registry.CommandRegistry

func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Publish game and launcher builds",
	}
	Registry.FillCommands(cmd)
	return cmd
}

// setup loads config and builds the shared deploy collaborators.
func setup(configPath string) (*deploy.Dist, *github.Client, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	dist := &deploy.Dist{
		Dir:    cfg.Dist.Checkout,
		Remote: "https://github.com/" + cfg.Dist.Repo + ".git",
	}
	gh := github.New(fetch.New(5 * time.Minute))
	return dist, gh, nil
}
