// Package registry lets command files attach themselves to their parent
// from init(), so adding a subcommand never touches the parent's file.
package registry

import "github.com/spf13/cobra"

// CommandRegistry collects subcommand installers. Its zero value is ready
// to use as a package-level var.
type CommandRegistry struct {
	fills []func(*cobra.Command)
}

// Register queues fill to run against the parent command.
func (r *CommandRegistry) Register(fill func(*cobra.Command)) {
	r.fills = append(r.fills, fill)
}

// FromGetter registers a command built by get as a child.
func (r *CommandRegistry) FromGetter(get func() *cobra.Command) {
	r.Register(func(c *cobra.Command) {
		c.AddCommand(get())
	})
}

// FillCommands runs every queued installer against cmd and returns it.
func (r *CommandRegistry) FillCommands(cmd *cobra.Command) *cobra.Command {
	for _, fill := range r.fills {
		fill(cmd)
	}
	return cmd
}

// GetCommand is FillCommands under the name command constructors read best.
func (r *CommandRegistry) GetCommand(cmd *cobra.Command) *cobra.Command {
	return r.FillCommands(cmd)
}
