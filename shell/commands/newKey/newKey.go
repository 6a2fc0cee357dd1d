package newKey

import (
	"flag"

	"github.com/abiosoft/ishell"

	"github.com/cpu/acmeshell/acme/keys"
	"github.com/cpu/acmeshell/shell/commands"
)

type newKeyOptions struct {
	keyType  string
	printPEM bool
	printJWK bool
	pemPath  string
}

var (
	opts        = newKeyOptions{}
	newKeyFlags = flag.NewFlagSet("newKey", flag.ContinueOnError)
)

func init() {
	newKeyFlags.StringVar(&opts.keyType, "type", "ecdsa", "Type of key to generate (ecdsa or rsa)")
	newKeyFlags.BoolVar(&opts.printPEM, "pem", false, "Print PEM output")
	newKeyFlags.BoolVar(&opts.printJWK, "jwk", true, "Print JWK output")
	newKeyFlags.StringVar(&opts.pemPath, "path", "", "Path to write PEM private key to")

	commands.RegisterCommand(
		&ishell.Cmd{
			Name:    "newKey",
			Aliases: []string{"newPrivateKey"},
			Help:    "Create a new private key and make it the key signed requests use",
		},
		nil,
		newKeyHandler,
		newKeyFlags)
}

func newKeyHandler(c *ishell.Context, _ []string) {
	signer, err := keys.NewSigner(opts.keyType)
	if err != nil {
		c.Printf("newKey: error generating new key: %v\n", err)
		return
	}

	s := commands.GetState(c)
	if err := s.UseKey(signer); err != nil {
		c.Printf("newKey: %v\n", err)
		return
	}

	if opts.pemPath != "" {
		if err := keys.SaveSigner(opts.pemPath, signer); err != nil {
			c.Printf("newKey: error writing PEM to %q: %v\n", opts.pemPath, err)
			return
		}
		c.Printf("Wrote private key PEM to %q\n", opts.pemPath)
	}

	if opts.printPEM {
		pemStr, err := keys.SignerToPEM(signer)
		if err != nil {
			c.Printf("newKey: %v\n", err)
			return
		}
		c.Printf("PEM:\n%s\n", pemStr)
	}
	if opts.printJWK {
		c.Printf("JWK:\n%s\n", keys.JWKJSON(signer))
	}
	c.Printf("Thumbprint: %s\n", keys.JWKThumbprint(signer))
}
