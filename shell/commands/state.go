package commands

import (
	"bytes"
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	acmeclient "github.com/cpu/acmeshell/acme/client"
	"github.com/cpu/acmeshell/acme/keys"
	"github.com/cpu/acmeshell/acme/resources"
)

// ErrNoKey is returned when a signed request is attempted before a key is
// generated or loaded.
var ErrNoKey = errors.New("no active key, use newKey or loadKey first")

// State is what ACMEShell commands operate on: one Connection, the Session
// carrying its replay nonce, the server's Directory and the key signed
// requests are made with.
type State struct {
	Conn         *acmeclient.Connection
	Session      *acmeclient.Session
	DirectoryURL string
	Directory    *resources.Directory
	Key          *keys.KeyPair
	Logger       *zap.Logger
}

// NewState creates a State for the ACME server whose directory is at
// directoryURL. The directory is not fetched until LoadDirectory is called.
func NewState(conn *acmeclient.Connection, directoryURL string, logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &State{
		Conn:         conn,
		Session:      acmeclient.NewSession(),
		DirectoryURL: directoryURL,
		Logger:       logger,
	}
}

// LoadDirectory fetches and stores the server's resource directory.
func (s *State) LoadDirectory(ctx context.Context) error {
	dir, err := s.Conn.FetchDirectory(ctx, s.DirectoryURL)
	if err != nil {
		return err
	}
	s.Directory = dir
	s.Logger.Info("loaded ACME directory",
		zap.String("url", s.DirectoryURL),
		zap.Int("resources", dir.Len()))
	return nil
}

// Target resolves a command argument to a URL. "directory" is the directory
// URL, a directory key is the URL the server published for it, and anything
// else must be an absolute http(s) URL.
func (s *State) Target(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "directory" {
		return s.DirectoryURL, nil
	}
	if res, ok := resources.ParseResource(arg); ok {
		if u, found := s.Directory.Get(res); found {
			return u.String(), nil
		}
		return "", fmt.Errorf("server directory has no %q entry", arg)
	}
	if !OkURL(arg) {
		return "", fmt.Errorf("illegal url argument %q", arg)
	}
	return arg, nil
}

// NonceURL is where a new session is started: the newNonce resource if the
// server publishes one, otherwise the directory.
func (s *State) NonceURL() string {
	if u, ok := s.Directory.Get(resources.NEW_NONCE); ok {
		return u.String()
	}
	return s.DirectoryURL
}

// NewNonce replaces the session nonce with a fresh one and returns it
// base64url encoded.
func (s *State) NewNonce(ctx context.Context) (string, error) {
	if err := s.Conn.StartSession(ctx, s.NonceURL(), s.Session); err != nil {
		return "", err
	}
	return s.Session.String(), nil
}

// Get sends a GET to the target named by arg.
func (s *State) Get(ctx context.Context, arg string) (int, error) {
	target, err := s.Target(arg)
	if err != nil {
		return 0, err
	}
	return s.Conn.SendRequest(ctx, target)
}

// Post sends claims to the target named by arg as a request signed with the
// active key.
func (s *State) Post(ctx context.Context, arg string, claims *resources.Claims) (int, error) {
	if s.Key == nil {
		return 0, ErrNoKey
	}
	target, err := s.Target(arg)
	if err != nil {
		return 0, err
	}
	return s.Conn.SendSignedRequest(ctx, target, claims, s.Session, s.Key)
}

// UseKey makes signer the key signed requests are made with.
func (s *State) UseKey(signer crypto.Signer) error {
	kp, err := keys.NewKeyPair(signer)
	if err != nil {
		return err
	}
	s.Key = kp
	s.Logger.Info("active key changed",
		zap.String("alg", string(kp.Algorithm())),
		zap.String("thumbprint", keys.JWKThumbprint(signer)))
	return nil
}

// UseKeyFile loads a PEM private key from path and makes it the active key.
func (s *State) UseKeyFile(path string) error {
	signer, err := keys.LoadSigner(path)
	if err != nil {
		return fmt.Errorf("loading key %q: %w", path, err)
	}
	return s.UseKey(signer)
}

// Describe renders the current exchange for display: the status, the
// Location and Content-Type if any, and the body, indented if it is JSON. A problem document
// is rendered from err.
func (s *State) Describe(status int, err error) (string, error) {
	var out strings.Builder
	fmt.Fprintf(&out, "HTTP %d\n", status)

	if problem, ok := acmeclient.ProblemOf(err); ok {
		body, jsonErr := PrintJSON(problem)
		if jsonErr != nil {
			return "", jsonErr
		}
		out.WriteString(body)
		out.WriteString("\n")
		return out.String(), nil
	}
	if err != nil {
		return "", err
	}

	loc, err := s.Conn.Location()
	if err != nil {
		return "", err
	}
	if loc != nil {
		fmt.Fprintf(&out, "Location: %s\n", loc)
	}
	if contentType := s.Conn.Header("Content-Type"); contentType != "" {
		fmt.Fprintf(&out, "Content-Type: %s\n", contentType)
	}

	body, err := s.Conn.ReadBody()
	if err != nil {
		return "", err
	}
	var indented bytes.Buffer
	if json.Indent(&indented, body, "", "  ") == nil {
		body = indented.Bytes()
	}
	out.Write(body)
	if len(body) > 0 && body[len(body)-1] != '\n' {
		out.WriteString("\n")
	}
	return out.String(), nil
}

// OkURL reports whether urlStr is an absolute http or https URL.
func OkURL(urlStr string) bool {
	result, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	if result.Scheme != "http" && result.Scheme != "https" {
		return false
	}
	return result.Host != ""
}
