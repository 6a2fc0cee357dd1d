package b64url

import (
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/cpu/acmeshell/shell/commands"
)

type b64urlOptions struct {
	encode bool
	decode bool
	data   string
	hex    bool
}

func (opts b64urlOptions) validate() error {
	if opts.encode && opts.decode {
		return errors.New("both -encode and -decode can not be provided at once")
	}
	if !opts.encode && !opts.decode {
		return errors.New("one of -encode or -decode must be provided")
	}
	return nil
}

var (
	opts        = b64urlOptions{}
	b64urlFlags = flag.NewFlagSet("b64url", flag.ContinueOnError)
)

func init() {
	b64urlFlags.BoolVar(&opts.encode, "encode", false, "Encode the input string as a raw base64 URL encoded string")
	b64urlFlags.BoolVar(&opts.decode, "decode", false, "Decode the input string from base64 URL encoding")
	b64urlFlags.StringVar(&opts.data, "data", "", "Data to encode/decode")
	b64urlFlags.BoolVar(&opts.hex, "hex", false, "Output result in hex instead of as a string")

	commands.RegisterCommand(
		&ishell.Cmd{
			Name:    "b64url",
			Aliases: []string{"base64url", "base64"},
			Help:    "Base64URL encode/decode utility",
			LongHelp: `
	b64url -decode -data=bm9uY2UtMQ
		Decode a replay nonce.

	b64url -encode -hex
		Read data interactively, print its unpadded base64url encoding in hex.
	`,
		},
		nil,
		b64urlHandler,
		b64urlFlags)
}

func b64urlHandler(c *ishell.Context, _ []string) {
	if err := opts.validate(); err != nil {
		c.Printf("Invalid options: %s\n", err)
		return
	}

	input := opts.data
	if input == "" {
		input = commands.ReadLines(c, "b64url data", "Input data to encode/decode.")
	}

	output, err := convert(opts, input)
	if err != nil {
		c.Printf("Error decoding input: %v\n", err)
		return
	}

	if opts.hex {
		c.Printf("Result:\n%s\n", hexString(output))
	} else {
		c.Printf("Result: \n%s\n", string(output))
	}
}

// convert encodes or decodes input. Padding is tolerated when decoding.
func convert(opts b64urlOptions, input string) ([]byte, error) {
	if opts.decode {
		return base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(input), "="))
	}
	return []byte(base64.RawURLEncoding.EncodeToString([]byte(input))), nil
}

func hexString(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("0x%02X", b)
	}
	return strings.Join(parts, " ")
}
