// Package get implements an ACMEShell command for sending GET requests to an
// ACME server.
package get

import (
	"context"
	"flag"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/cpu/acmeshell/shell/commands"
)

func init() {
	commands.RegisterCommand(
		&ishell.Cmd{
			Name:    "get",
			Aliases: []string{"getURL"},
			Help:    "Send an HTTP GET to a ACME endpoint or a URL",
			LongHelp: `
	get directory:
	  Send an HTTP GET request to the ACME server's directory URL.

	get [acme endpoint]:
		Send an HTTP GET request to the URL that is contained in the ACME server's
		directory object under the specified endpoint name.

		Examples:
			get new-reg
				Send an HTTP GET to the "new-reg" key from the ACME server's directory
				object.

	get [url]:
		Send an HTTP GET request to the URL specified.
	`,
		},
		commands.DirectoryAutocompleter,
		getHandler,
		flag.NewFlagSet("get", flag.ContinueOnError))
}

func getHandler(c *ishell.Context, args []string) {
	if len(args) < 1 {
		c.Printf("get: you must specify an endpoint or a URL\n")
		return
	}

	s := commands.GetState(c)
	status, err := s.Get(context.Background(), strings.TrimSpace(args[0]))
	commands.PrintExchange(c, "get", s, status, err)
}
