// Package directory implements an ACMEShell command for showing and
// refreshing the ACME server's resource directory.
package directory

import (
	"context"
	"flag"

	"github.com/abiosoft/ishell"

	"github.com/cpu/acmeshell/shell/commands"
)

var (
	refresh        bool
	directoryFlags = flag.NewFlagSet("directory", flag.ContinueOnError)
)

func init() {
	directoryFlags.BoolVar(&refresh, "refresh", false, "Fetch the directory from the server again")

	commands.RegisterCommand(
		&ishell.Cmd{
			Name:    "directory",
			Aliases: []string{"dir"},
			Help:    "Show the resources in the ACME server's directory",
		},
		nil,
		directoryHandler,
		directoryFlags)
}

func directoryHandler(c *ishell.Context, _ []string) {
	s := commands.GetState(c)
	if refresh || s.Directory == nil {
		if err := s.LoadDirectory(context.Background()); err != nil {
			c.Printf("directory: %v\n", err)
			return
		}
	}

	out, err := commands.PrintJSON(s.Directory.Map())
	if err != nil {
		c.Printf("directory: %v\n", err)
		return
	}
	c.Println(out)
}
