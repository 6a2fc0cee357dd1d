package client

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cpu/acmeshell/acme/keys"
	acmenet "github.com/cpu/acmeshell/net"
)

// stubACME is a minimal ACME server. HEAD requests hand out nonces, POST
// bodies are parsed as JWS and passed to post, GETs go to get.
type stubACME struct {
	mu sync.Mutex

	heads, gets, posts int
	issued             int
	omitHeadNonce      bool

	lastJWS    *jose.JSONWebSignature
	lastHeader http.Header
	lastBody   []byte

	post func(s *stubACME, w http.ResponseWriter, jws *jose.JSONWebSignature)
	get  func(s *stubACME, w http.ResponseWriter, r *http.Request)
}

// nextNonce returns a fresh base64url nonce. Callers hold mu.
func (s *stubACME) nextNonce() string {
	s.issued++
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("nonce-%d", s.issued)))
}

func (s *stubACME) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodHead:
		s.heads++
		if !s.omitHeadNonce {
			w.Header().Set("Replay-Nonce", s.nextNonce())
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		s.gets++
		if s.get == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.get(s, w, r)
	case http.MethodPost:
		s.posts++
		body, _ := io.ReadAll(r.Body)
		s.lastBody = body
		s.lastHeader = r.Header.Clone()
		jws, err := jose.ParseSigned(string(body),
			[]jose.SignatureAlgorithm{jose.RS256, jose.ES256})
		if err != nil {
			w.Header().Set("Replay-Nonce", s.nextNonce())
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"type":"urn:ietf:params:acme:error:malformed","detail":%q}`, err.Error())
			return
		}
		s.lastJWS = jws
		if s.post == nil {
			w.Header().Set("Replay-Nonce", s.nextNonce())
			w.WriteHeader(http.StatusOK)
			return
		}
		s.post(s, w, jws)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *stubACME) counts() (heads, gets, posts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heads, s.gets, s.posts
}

func (s *stubACME) signed() (*jose.JSONWebSignature, http.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastJWS, s.lastHeader
}

// newTestConnection starts handler on an httptest server and returns
// a Connection wired to it through a real ACMENet transport.
func newTestConnection(t *testing.T, handler http.Handler) (*Connection, *httptest.Server) {
	t.Helper()
	return newTestConnectionWithConfig(t, handler, acmenet.Config{})
}

// newTestConnectionWithConfig is newTestConnection with transport settings.
// conf.HTTPClient is always replaced by the test server's client.
func newTestConnectionWithConfig(
	t *testing.T,
	handler http.Handler,
	conf acmenet.Config) (*Connection, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conf.HTTPClient = srv.Client()
	transport, err := acmenet.New(conf)
	require.NoError(t, err)
	return NewConnection(transport, WithLogger(zaptest.NewLogger(t))), srv
}

// staticHandler always answers with the given status, headers and body.
func staticHandler(status int, header map[string]string, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range header {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
		io.WriteString(w, body) //nolint:errcheck
	})
}

func newECDSAKeyPair(t *testing.T) *keys.KeyPair {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	kp, err := keys.NewKeyPair(priv)
	require.NoError(t, err)
	return kp
}

// selfSignedDER returns a throwaway self-signed certificate.
func selfSignedDER(t *testing.T) []byte {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1337),
		Subject:      pkix.Name{CommonName: "acmeshell.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"acmeshell.example.com"},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, priv.Public(), priv)
	require.NoError(t, err)
	return der
}
