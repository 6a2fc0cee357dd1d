// Package nonce implements an ACMEShell command for inspecting and replacing
// the session's replay nonce.
package nonce

import (
	"context"
	"flag"

	"github.com/abiosoft/ishell"

	"github.com/cpu/acmeshell/shell/commands"
)

var (
	fresh      bool
	nonceFlags = flag.NewFlagSet("nonce", flag.ContinueOnError)
)

func init() {
	nonceFlags.BoolVar(&fresh, "new", false, "Replace the session nonce with a fresh one from the server")

	commands.RegisterCommand(
		&ishell.Cmd{
			Name:    "nonce",
			Aliases: []string{"getNonce"},
			Help:    "Show the session's replay nonce, optionally fetching a new one",
		},
		nil,
		nonceHandler,
		nonceFlags)
}

func nonceHandler(c *ishell.Context, _ []string) {
	s := commands.GetState(c)
	if fresh {
		if _, err := s.NewNonce(context.Background()); err != nil {
			c.Printf("nonce: %v\n", err)
			return
		}
	}
	if s.Session.Nonce() == nil {
		c.Printf("no nonce, the next signed request will fetch one\n")
		return
	}
	c.Printf("%s\n", s.Session)
}
