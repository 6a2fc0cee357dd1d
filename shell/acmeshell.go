// Package shell provides an interactive command shell and the associated
// acmeshell commands.
package shell

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/abiosoft/readline"
	"go.uber.org/zap"

	acmeclient "github.com/cpu/acmeshell/acme/client"
	acmenet "github.com/cpu/acmeshell/net"
	"github.com/cpu/acmeshell/shell/commands"
	_ "github.com/cpu/acmeshell/shell/commands/b64url"
	_ "github.com/cpu/acmeshell/shell/commands/cert"
	_ "github.com/cpu/acmeshell/shell/commands/directory"
	_ "github.com/cpu/acmeshell/shell/commands/get"
	_ "github.com/cpu/acmeshell/shell/commands/jwsDecode"
	_ "github.com/cpu/acmeshell/shell/commands/keys"
	_ "github.com/cpu/acmeshell/shell/commands/loadKey"
	_ "github.com/cpu/acmeshell/shell/commands/location"
	_ "github.com/cpu/acmeshell/shell/commands/newKey"
	_ "github.com/cpu/acmeshell/shell/commands/nonce"
	_ "github.com/cpu/acmeshell/shell/commands/post"
)

// ACMEShellOptions allows specifying options for creating an ACME shell.
type ACMEShellOptions struct {
	// URL of the ACME server's directory.
	DirectoryURL string
	// Transport settings for talking to the ACME server.
	Net acmenet.Config
	// Optional PEM private key to sign requests with from the start.
	KeyPath string
	// If not empty, serve Prometheus metrics on this address while the shell
	// runs.
	MetricsAddr string
	Logger      *zap.Logger
}

// ACMEShell is an ishell.Shell instance tailored for ACME. At its core an
// ACMEShell is a *commands.State holding a Connection, its Session and the
// server's Directory.
type ACMEShell struct {
	*ishell.Shell
	state   *commands.State
	metrics *http.Server
	logger  *zap.Logger
}

// NewACMEShell creates an ACMEShell. The ACME server's directory is fetched
// before it returns so commands can complete directory keys. The metrics
// listener, if any, is not started until Run is called.
func NewACMEShell(ctx context.Context, opts *ACMEShellOptions) (*ACMEShell, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	state, err := NewState(ctx, opts.DirectoryURL, opts.Net, opts.KeyPath, logger)
	if err != nil {
		return nil, err
	}

	// Create an interactive shell
	shell := ishell.NewWithConfig(&readline.Config{
		Prompt: commands.BasePrompt,
	})
	shell.Set(commands.StateKey, state)
	commands.AddCommands(shell, state)

	acmeShell := &ACMEShell{
		Shell:  shell,
		state:  state,
		logger: logger,
	}
	if opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", acmenet.MetricsHandler())
		acmeShell.metrics = &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return acmeShell, nil
}

// NewState builds the *commands.State shared by the shell and the one-shot
// CLI commands: a Connection over an ACMENet built from netConf, the
// server's Directory, and optionally the key at keyPath.
func NewState(
	ctx context.Context,
	directoryURL string,
	netConf acmenet.Config,
	keyPath string,
	logger *zap.Logger) (*commands.State, error) {
	if directoryURL == "" {
		return nil, errors.New("a directory URL is required")
	}
	transport, err := acmenet.New(netConf)
	if err != nil {
		return nil, fmt.Errorf("creating transport: %w", err)
	}

	conn := acmeclient.NewConnection(transport, acmeclient.WithLogger(logger))
	state := commands.NewState(conn, directoryURL, logger)
	if err := state.LoadDirectory(ctx); err != nil {
		return nil, fmt.Errorf("fetching directory %q: %w", directoryURL, err)
	}

	if keyPath != "" {
		if err := state.UseKeyFile(keyPath); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// Run starts the ACMEShell, dropping into an interactive session that blocks
// on user input until it is time to exit.
func (shell *ACMEShell) Run() {
	if shell.metrics != nil {
		go func() {
			shell.logger.Info("serving metrics", zap.String("addr", shell.metrics.Addr))
			if err := shell.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				shell.logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	shell.Println("Welcome to ACME Shell")
	shell.Shell.Run()
	shell.Println("Goodbye!")
	shell.Shutdown()
}

// Shutdown releases the connection and stops the metrics listener.
func (shell *ACMEShell) Shutdown() {
	_ = shell.state.Conn.Close()
	if shell.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shell.metrics.Shutdown(ctx); err != nil {
			shell.logger.Warn("metrics listener shutdown", zap.Error(err))
		}
	}
}
