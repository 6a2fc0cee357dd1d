package jwsDecode

import (
	"crypto"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"
	jose "github.com/go-jose/go-jose/v4"

	"github.com/cpu/acmeshell/shell/commands"
)

var (
	data           string
	jwsDecodeFlags = flag.NewFlagSet("jwsDecode", flag.ContinueOnError)

	acceptedAlgs = []jose.SignatureAlgorithm{
		jose.RS256, jose.ES256, jose.ES384, jose.ES512,
	}
)

func init() {
	jwsDecodeFlags.StringVar(&data, "data", "", "JWS to decode, compact or JSON serialized")

	commands.RegisterCommand(
		&ishell.Cmd{
			Name:    "jwsDecode",
			Aliases: []string{"jws"},
			Help:    "Decode a JWS, show its protected header and payload and check its signature",
		},
		nil,
		jwsDecodeHandler,
		jwsDecodeFlags)
}

func jwsDecodeHandler(c *ishell.Context, _ []string) {
	input := data
	if input == "" {
		input = commands.ReadLines(c, "JWS", "Input JWS to decode.")
	}

	out, err := describe(strings.TrimSpace(input))
	if err != nil {
		c.Printf("jwsDecode: %v\n", err)
		return
	}
	c.Print(out)
}

// describe renders the protected header and payload of a single signature
// JWS, and whether the signature verifies with the embedded JWK.
func describe(input string) (string, error) {
	jws, err := jose.ParseSigned(input, acceptedAlgs)
	if err != nil {
		return "", err
	}
	if len(jws.Signatures) != 1 {
		return "", fmt.Errorf("expected one signature, found %d", len(jws.Signatures))
	}
	header := jws.Signatures[0].Protected

	var out strings.Builder
	fmt.Fprintf(&out, "Algorithm: %s\n", header.Algorithm)
	fmt.Fprintf(&out, "Nonce: %s\n", header.Nonce)
	if nonce, err := base64.RawURLEncoding.DecodeString(header.Nonce); err == nil {
		fmt.Fprintf(&out, "Nonce bytes: %x\n", nonce)
	}
	if header.KeyID != "" {
		fmt.Fprintf(&out, "Key ID: %s\n", header.KeyID)
	}
	fmt.Fprintf(&out, "Payload: %s\n", jws.UnsafePayloadWithoutVerification())

	if header.JSONWebKey == nil {
		out.WriteString("Signature: not checked, no embedded JWK\n")
		return out.String(), nil
	}
	thumb, err := header.JSONWebKey.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&out, "JWK thumbprint: %s\n", base64.RawURLEncoding.EncodeToString(thumb))
	if _, err := jws.Verify(header.JSONWebKey); err != nil {
		return "", errors.Join(errors.New("signature does not verify"), err)
	}
	out.WriteString("Signature: valid\n")
	return out.String(), nil
}
