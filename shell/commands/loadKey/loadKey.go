package loadKey

import (
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/cpu/acmeshell/acme/keys"
	"github.com/cpu/acmeshell/shell/commands"
)

func init() {
	commands.RegisterCommand(
		&ishell.Cmd{
			Name:    "loadKey",
			Aliases: []string{"loadPrivateKey"},
			Help:    "Load a PEM private key from disk and make it the key signed requests use",
		},
		nil,
		loadKeyHandler,
		nil)
}

func loadKeyHandler(c *ishell.Context, args []string) {
	if len(args) < 1 {
		c.Printf("loadKey: you must specify a PEM filepath to load from\n")
		return
	}

	path := strings.TrimSpace(args[0])
	s := commands.GetState(c)
	if err := s.UseKeyFile(path); err != nil {
		c.Printf("loadKey: %v\n", err)
		return
	}
	c.Printf("Loaded %s key %s\n", s.Key.Algorithm(), keys.JWKThumbprint(s.Key.Key()))
}
