// Package post implements an ACMEShell command for POSTing signed requests to
// an ACME server.
package post

import (
	"context"
	"flag"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/cpu/acmeshell/acme/resources"
	"github.com/cpu/acmeshell/shell/commands"
)

type postOptions struct {
	body     string
	resource string
}

var (
	opts      = postOptions{}
	postFlags = flag.NewFlagSet("post", flag.ContinueOnError)
)

func init() {
	postFlags.StringVar(&opts.body, "body", "", "JSON claims to sign. Read interactively if empty")
	postFlags.StringVar(&opts.resource, "resource", "", "Set the \"resource\" claim")

	commands.RegisterCommand(
		&ishell.Cmd{
			Name:    "post",
			Aliases: []string{"postURL"},
			Help:    "Send a signed HTTP POST to a ACME endpoint or a URL",
			LongHelp: `
	post [acme endpoint]:
		Send a JWS signed HTTP POST request to the URL that is contained in the ACME
		server's directory object under the specified endpoint name. You will be
		prompted interactively for the claims (unless specified). The session's
		replay nonce is used and replaced.

		Examples:
			post -resource=new-reg new-reg
				Send a signed POST to the "new-reg" key from the ACME server's directory
				object. The claims will be read from stdin interactively.

			post -body='{"contact":["mailto:admin@example.com"]}' -resource=new-reg new-reg
				Send a signed POST with the given claims.

	post [url]:
		Send a signed HTTP POST request to the URL specified.
	`,
		},
		commands.DirectoryAutocompleter,
		postHandler,
		postFlags)
}

func postHandler(c *ishell.Context, args []string) {
	if len(args) < 1 {
		c.Printf("post: you must specify an endpoint or a URL\n")
		return
	}

	body := opts.body
	if body == "" {
		body = commands.ReadJSON(c)
	}
	claims, err := resources.ParseClaims([]byte(strings.TrimSpace(body)))
	if err != nil {
		c.Printf("post: %v\n", err)
		return
	}
	if opts.resource != "" {
		claims.Put("resource", opts.resource)
	}

	s := commands.GetState(c)
	status, err := s.Post(context.Background(), strings.TrimSpace(args[0]), claims)
	commands.PrintExchange(c, "post", s, status, err)
}
