package main

import (
	"doomstrap/cmd/doomstrap/bootstrap"
	"doomstrap/cmd/doomstrap/deploy"
	"doomstrap/cmd/doomstrap/fetch"
	"doomstrap/cmd/doomstrap/history"
	"doomstrap/cmd/doomstrap/launch"
)

func init() {
	Registry.FromGetter(launch.GetCommand)
	Registry.FromGetter(fetch.GetCommand)
	Registry.FromGetter(deploy.GetCommand)
	Registry.FromGetter(bootstrap.NewCommand)
	Registry.FromGetter(history.GetCommand)
}
