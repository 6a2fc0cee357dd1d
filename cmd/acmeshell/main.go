// acmeshell provides a developer-oriented command-line interface for
// interacting with an ACME server, either one request at a time or through an
// interactive shell.
package main

import (
	"context"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cpu/acmeshell/acme/resources"
	acmecmd "github.com/cpu/acmeshell/cmd"
	acmenet "github.com/cpu/acmeshell/net"
	acmeshell "github.com/cpu/acmeshell/shell"
	"github.com/cpu/acmeshell/shell/commands"
)

const (
	DIRECTORY_DEFAULT = "https://acme-staging.api.letsencrypt.org/directory"
	PEBBLE_DIRECTORY  = "https://localhost:14000/dir"
	PEBBLE_CA         = "/src/github.com/letsencrypt/pebble/test/certs/pebble.minica.pem"
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags and config are read.
type app struct {
	v      *viper.Viper
	logger *zap.Logger
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	a := &app{v: v, logger: zap.NewNop()}
	var cfgFile string

	root := &cobra.Command{
		Use:   "acmeshell",
		Short: "Developer-oriented ACME client",
		Long: `acmeshell talks to an ACME server one exchange at a time. Signed requests
carry the replay nonce of the previous response, server problems are shown as
problem documents.

Settings are read from flags, ACMESHELL_* environment variables and an
optional config file, in that order of precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config %q: %w", cfgFile, err)
				}
			}
			logger, err := acmecmd.NewLogger(v.GetBool("verbose"))
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}

	v.SetEnvPrefix("ACMESHELL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	flags.String("directory", DIRECTORY_DEFAULT, "Directory URL for ACME server")
	flags.String("ca", "", "CA certificate(s) for verifying ACME server HTTPS. System roots if empty")
	flags.String("key", "", "PEM private key to sign requests with")
	flags.Bool("pebble", false, "Use Pebble defaults")
	flags.Float64("rps", 0, "Maximum requests per second sent to the server, 0 for no limit")
	flags.Duration("timeout", acmenet.DefaultTimeout, "Timeout for a single HTTP exchange")
	flags.String("user-agent", "", "Prefix for the User-Agent header")
	flags.Bool("dump", false, "Log full HTTP requests and responses at debug level")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	_ = v.BindPFlags(flags)

	root.AddCommand(
		a.directoryCmd(),
		a.nonceCmd(),
		a.getCmd(),
		a.postCmd(),
		a.certCmd(),
		a.shellCmd(),
	)
	return root
}

// netConfig builds the transport settings from flags, environment and config.
func (a *app) netConfig() acmenet.Config {
	conf := acmenet.Config{
		CABundlePath:      a.v.GetString("ca"),
		Timeout:           a.v.GetDuration("timeout"),
		UserAgent:         a.v.GetString("user-agent"),
		RequestsPerSecond: a.v.GetFloat64("rps"),
		DumpExchanges:     a.v.GetBool("dump"),
	}
	if a.v.GetBool("pebble") && conf.CABundlePath == "" {
		conf.CABundlePath = os.Getenv("GOPATH") + PEBBLE_CA
	}
	return conf
}

func (a *app) directoryURL() string {
	if a.v.GetBool("pebble") && a.v.GetString("directory") == DIRECTORY_DEFAULT {
		return PEBBLE_DIRECTORY
	}
	return a.v.GetString("directory")
}

// state connects to the server and fetches its directory.
func (a *app) state(ctx context.Context) (*commands.State, error) {
	return acmeshell.NewState(ctx, a.directoryURL(), a.netConfig(), a.v.GetString("key"), a.logger)
}

// run executes fn with a State, cancelling on SIGINT/SIGTERM/SIGHUP.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, s *commands.State, out io.Writer) error) error {
	ctx, stop := acmecmd.CatchSignals(cmd.Context(), a.logger)
	defer stop()
	defer a.logger.Sync() //nolint:errcheck

	s, err := a.state(ctx)
	if err != nil {
		return err
	}
	defer s.Conn.Close()
	return fn(ctx, s, cmd.OutOrStdout())
}

func printExchange(out io.Writer, s *commands.State, status int, err error) error {
	text, err := s.Describe(status, err)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, text)
	return err
}

func (a *app) directoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "directory",
		Short: "Print the resources in the server's directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *commands.State, out io.Writer) error {
				text, err := commands.PrintJSON(s.Directory.Map())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, text)
				return err
			})
		},
	}
}

func (a *app) nonceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nonce",
		Short: "Fetch and print a fresh replay nonce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *commands.State, out io.Writer) error {
				nonce, err := s.NewNonce(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, nonce)
				return err
			})
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <directory|resource|url>",
		Short: "Send a GET request and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *commands.State, out io.Writer) error {
				status, err := s.Get(ctx, args[0])
				return printExchange(out, s, status, err)
			})
		},
	}
}

func (a *app) postCmd() *cobra.Command {
	var data, resource string
	cmd := &cobra.Command{
		Use:   "post <resource|url>",
		Short: "Send a signed POST request and print the response",
		Long: `Send claims as a JWS signed with --key. A replay nonce is fetched from the
target first. Use "-" as --data to read the claims from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(data)
			if data == "-" {
				var err error
				if raw, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			claims, err := resources.ParseClaims(raw)
			if err != nil {
				return err
			}
			if resource != "" {
				claims.Put("resource", resource)
			}
			return a.run(cmd, func(ctx context.Context, s *commands.State, out io.Writer) error {
				status, err := s.Post(ctx, args[0], claims)
				return printExchange(out, s, status, err)
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "{}", "JSON claims to sign")
	cmd.Flags().StringVar(&resource, "resource", "", "Set the \"resource\" claim")
	return cmd
}

func (a *app) certCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cert <url>",
		Short: "Download a certificate and print it as PEM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *commands.State, out io.Writer) error {
				if _, err := s.Get(ctx, args[0]); err != nil {
					return err
				}
				cert, err := s.Conn.ReadCertificate()
				if err != nil {
					return err
				}
				return pem.Encode(out, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
			})
		},
	}
}

func (a *app) shellCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive ACME shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			sh, err := acmeshell.NewACMEShell(ctx, &acmeshell.ACMEShellOptions{
				DirectoryURL: a.directoryURL(),
				Net:          a.netConfig(),
				KeyPath:      a.v.GetString("key"),
				MetricsAddr:  metricsAddr,
				Logger:       a.logger,
			})
			acmecmd.FailOnError(a.logger, err, "Unable to create ACME shell")
			sh.Run()
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. localhost:9090")
	return cmd
}
