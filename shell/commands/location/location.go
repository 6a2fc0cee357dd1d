// Package location implements an ACMEShell command printing the Location of
// the last response.
package location

import (
	"github.com/abiosoft/ishell"

	"github.com/cpu/acmeshell/shell/commands"
)

func init() {
	commands.RegisterCommand(
		&ishell.Cmd{
			Name: "location",
			Help: "Print the Location header of the last response",
		},
		nil,
		locationHandler,
		nil)
}

func locationHandler(c *ishell.Context, _ []string) {
	s := commands.GetState(c)
	loc, err := s.Conn.Location()
	if err != nil {
		c.Printf("location: %v\n", err)
		return
	}
	if loc == nil {
		c.Printf("location: last response had no Location header\n")
		return
	}
	c.Printf("%s\n", loc)
}
