package keys

import (
	"flag"

	"github.com/abiosoft/ishell"

	acmekeys "github.com/cpu/acmeshell/acme/keys"
	"github.com/cpu/acmeshell/shell/commands"
)

type viewKeyOptions struct {
	pem        bool
	jwk        bool
	thumbprint bool
	pemPath    string
}

var (
	opts         = viewKeyOptions{}
	viewKeyFlags = flag.NewFlagSet("viewKey", flag.ContinueOnError)
)

func init() {
	viewKeyFlags.BoolVar(&opts.pem, "pem", false, "Print PEM output")
	viewKeyFlags.BoolVar(&opts.jwk, "jwk", true, "Print JWK output")
	viewKeyFlags.BoolVar(&opts.thumbprint, "thumbprint", true, "Print JWK thumbprint")
	viewKeyFlags.StringVar(&opts.pemPath, "path", "", "Path to write PEM private key to")

	commands.RegisterCommand(
		&ishell.Cmd{
			Name:    "viewKey",
			Aliases: []string{"keys", "key"},
			Help:    "View the key signed requests are made with",
		},
		nil,
		viewKeyHandler,
		viewKeyFlags)
}

func viewKeyHandler(c *ishell.Context, _ []string) {
	s := commands.GetState(c)
	if s.Key == nil {
		c.Printf("viewKey: %v\n", commands.ErrNoKey)
		return
	}
	signer := s.Key.Key()

	c.Printf("Algorithm: %s\n", s.Key.Algorithm())
	if opts.thumbprint {
		c.Printf("Thumbprint: %s\n", acmekeys.JWKThumbprint(signer))
	}
	if opts.jwk {
		c.Printf("JWK:\n%s\n", acmekeys.JWKJSON(signer))
	}
	if opts.pem || opts.pemPath != "" {
		pemStr, err := acmekeys.SignerToPEM(signer)
		if err != nil {
			c.Printf("viewKey: %v\n", err)
			return
		}
		if opts.pem {
			c.Printf("PEM:\n%s\n", pemStr)
		}
	}
	if opts.pemPath != "" {
		if err := acmekeys.SaveSigner(opts.pemPath, signer); err != nil {
			c.Printf("viewKey: error writing PEM to %q: %v\n", opts.pemPath, err)
			return
		}
		c.Printf("Wrote private key PEM to %q\n", opts.pemPath)
	}
}
