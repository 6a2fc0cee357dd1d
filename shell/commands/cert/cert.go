// Package cert implements an ACMEShell command for downloading a certificate.
package cert

import (
	"context"
	"encoding/pem"
	"flag"
	"os"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/cpu/acmeshell/shell/commands"
)

var (
	pemPath   string
	certFlags = flag.NewFlagSet("cert", flag.ContinueOnError)
)

func init() {
	certFlags.StringVar(&pemPath, "path", "", "Write the certificate PEM to this file")

	commands.RegisterCommand(
		&ishell.Cmd{
			Name:    "cert",
			Aliases: []string{"getCert"},
			Help:    "Download and print the certificate at a URL",
		},
		nil,
		certHandler,
		certFlags)
}

func certHandler(c *ishell.Context, args []string) {
	if len(args) < 1 {
		c.Printf("cert: you must specify a certificate URL\n")
		return
	}

	s := commands.GetState(c)
	if _, err := s.Get(context.Background(), strings.TrimSpace(args[0])); err != nil {
		c.Printf("cert: %v\n", err)
		return
	}
	cert, err := s.Conn.ReadCertificate()
	if err != nil {
		c.Printf("cert: %v\n", err)
		return
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	if pemPath != "" {
		if err := os.WriteFile(pemPath, pemBytes, 0644); err != nil {
			c.Printf("cert: %v\n", err)
			return
		}
	}
	c.Printf("Subject: %s\nIssuer: %s\nSerial: %s\nNot after: %s\n%s",
		cert.Subject, cert.Issuer, cert.SerialNumber, cert.NotAfter, pemBytes)
}
