package commands

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	acmeclient "github.com/cpu/acmeshell/acme/client"
	"github.com/cpu/acmeshell/acme/keys"
	"github.com/cpu/acmeshell/acme/resources"
	acmenet "github.com/cpu/acmeshell/net"
)

// testServer is a draft ACME server with a directory, a nonce endpoint and
// a new-reg endpoint that accepts any signed request.
type testServer struct {
	*httptest.Server

	mu      sync.Mutex
	issued  int
	payload []byte
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/directory", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"new-reg":"%[1]s/new-reg","newNonce":"%[1]s/nonce","meta":{}}`, ts.URL)
	})
	mux.HandleFunc("/nonce", func(w http.ResponseWriter, r *http.Request) {
		ts.nonce(w)
	})
	mux.HandleFunc("/new-reg", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			ts.nonce(w)
			return
		}
		body, _ := io.ReadAll(r.Body)
		jws, err := jose.ParseSigned(string(body), []jose.SignatureAlgorithm{jose.ES256})
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ts.mu.Lock()
		ts.payload = jws.UnsafePayloadWithoutVerification()
		ts.mu.Unlock()
		ts.nonce(w)
		w.Header().Set("Location", "/reg/1")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":1,"status":"valid"}`) //nolint:errcheck
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"type":"urn:acme:error:unauthorized","detail":"nope"}`) //nolint:errcheck
	})
	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) nonce(w http.ResponseWriter) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.issued++
	w.Header().Set("Replay-Nonce",
		base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("nonce-%d", ts.issued))))
}

func newTestState(t *testing.T) (*State, *testServer) {
	t.Helper()
	ts := newTestServer(t)
	transport, err := acmenet.New(acmenet.Config{HTTPClient: ts.Client()})
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	conn := acmeclient.NewConnection(transport, acmeclient.WithLogger(logger))
	s := NewState(conn, ts.URL+"/directory", logger)
	require.NoError(t, s.LoadDirectory(context.Background()))
	return s, ts
}

func TestStateTarget(t *testing.T) {
	s, ts := newTestState(t)

	testCases := []struct {
		arg      string
		expected string
		wantErr  bool
	}{
		{arg: "directory", expected: ts.URL + "/directory"},
		{arg: "new-reg", expected: ts.URL + "/new-reg"},
		{arg: " newNonce ", expected: ts.URL + "/nonce"},
		{arg: "https://example.com/acme/authz/1", expected: "https://example.com/acme/authz/1"},
		{arg: "new-cert", wantErr: true},
		{arg: "ftp://example.com", wantErr: true},
		{arg: "not a url", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.arg, func(t *testing.T) {
			target, err := s.Target(tc.arg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, target)
		})
	}
}

func TestStateNewNonce(t *testing.T) {
	s, ts := newTestState(t)
	assert.Equal(t, ts.URL+"/nonce", s.NonceURL())

	nonce, err := s.NewNonce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, base64.RawURLEncoding.EncodeToString([]byte("nonce-1")), nonce)

	// Without a newNonce resource the directory URL is used.
	s.Directory, err = resources.NewDirectory(nil)
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/directory", s.NonceURL())
}

func TestStatePost(t *testing.T) {
	s, ts := newTestState(t)

	_, err := s.Post(context.Background(), "new-reg", resources.NewClaims())
	assert.ErrorIs(t, err, ErrNoKey)

	signer, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, keys.SaveSigner(path, signer))
	require.NoError(t, s.UseKeyFile(path))
	assert.Equal(t, jose.ES256, s.Key.Algorithm())

	claims := resources.NewClaims().PutResource(resources.NEW_REG)
	status, err := s.Post(context.Background(), "new-reg", claims)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.NotNil(t, s.Session.Nonce(), "response nonce kept for the next request")

	ts.mu.Lock()
	assert.JSONEq(t, `{"resource":"new-reg"}`, string(ts.payload))
	assert.Equal(t, 2, ts.issued, "one bootstrap plus the response nonce")
	ts.mu.Unlock()

	out, err := s.Describe(status, err)
	require.NoError(t, err)
	assert.Equal(t,
		"HTTP 201\nLocation: "+ts.URL+"/reg/1\nContent-Type: application/json\n{\n  \"id\": 1,\n  \"status\": \"valid\"\n}\n",
		out)

	assert.Error(t, s.UseKeyFile(filepath.Join(t.TempDir(), "missing.pem")))
}

func TestStateDescribeProblem(t *testing.T) {
	s, ts := newTestState(t)

	status, err := s.Get(context.Background(), ts.URL+"/bad")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	out, err := s.Describe(status, err)
	require.NoError(t, err)
	assert.Contains(t, out, "HTTP 403\n")
	assert.Contains(t, out, `"type": "urn:acme:error:unauthorized"`)
	assert.Contains(t, out, `"status": 403`)

	_, err = s.Describe(0, acmeclient.ErrNotConnected)
	assert.ErrorIs(t, err, acmeclient.ErrNotConnected)
}

func TestDirectoryAutocompleter(t *testing.T) {
	s, _ := newTestState(t)
	complete := DirectoryAutocompleter(s)
	assert.Equal(t, []string{"directory", "new-reg", "newNonce"}, complete(nil))

	// A refreshed directory is offered without rebuilding the completer.
	dir, err := resources.NewDirectory(map[string]string{
		"newOrder": "https://example.com/acme/new-order",
	})
	require.NoError(t, err)
	s.Directory = dir
	assert.Equal(t, []string{"directory", "newOrder"}, complete(nil))
}

func TestParseFlagSetArgs(t *testing.T) {
	var verbose bool
	var name string
	flags := flag.NewFlagSet("test", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.BoolVar(&verbose, "verbose", false, "")
	flags.StringVar(&name, "name", "default", "")

	leftovers, err := ParseFlagSetArgs([]string{"-verbose", "-name=x", "new-reg"}, flags)
	require.NoError(t, err)
	assert.Equal(t, []string{"new-reg"}, leftovers)
	assert.True(t, verbose)
	assert.Equal(t, "x", name)

	// Values from the previous invocation do not stick.
	leftovers, err = ParseFlagSetArgs([]string{"directory"}, flags)
	require.NoError(t, err)
	assert.Equal(t, []string{"directory"}, leftovers)
	assert.False(t, verbose)
	assert.Equal(t, "default", name)

	_, err = ParseFlagSetArgs([]string{"-unknown"}, flags)
	assert.Error(t, err)
}

type mapContext map[string]interface{}

func (m mapContext) Get(key string) interface{} { return m[key] }

func TestGetState(t *testing.T) {
	s := NewState(nil, "https://example.com/dir", nil)
	assert.Same(t, s, GetState(mapContext{StateKey: s}))
	assert.Panics(t, func() { GetState(mapContext{}) })
	assert.Panics(t, func() { GetState(mapContext{StateKey: "nope"}) })
}

func TestOkURL(t *testing.T) {
	assert.True(t, OkURL("https://example.com/acme"))
	assert.True(t, OkURL("http://localhost:4000/directory"))
	assert.False(t, OkURL("example.com/acme"))
	assert.False(t, OkURL("https://"))
	assert.False(t, OkURL("mailto:admin@example.com"))
}
