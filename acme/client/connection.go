// Package client provides the connection layer of an ACME client: replay
// nonce tracking, JWS signed requests and classification of server
// responses.
//
// A Connection performs one exchange at a time and keeps the result of the
// most recent one current until the next call or Close. Callers extract what
// they need with the readers (ReadJSON, ReadCertificate,
// ReadResourceDirectory, Location) before reusing the Connection:
//
//	conn := client.NewConnection(transport)
//	session := client.NewSession()
//	status, err := conn.SendSignedRequest(ctx, newRegURL, claims, session, key)
//	if problem, ok := client.ProblemOf(err); ok {
//		// branch on problem.Type
//	}
//	reg, err := conn.ReadJSON()
//
// Neither Connection nor Session is safe for concurrent use.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cpu/acmeshell/acme"
	"github.com/cpu/acmeshell/acme/resources"
)

// Connection turns API calls into HTTP exchanges with an ACME server.
type Connection struct {
	transport Transport
	logger    *zap.Logger
	// current is the most recent exchange, or nil.
	current *exchange
}

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger a Connection reports exchanges to. The default
// discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConnection creates a Connection sending requests through transport.
func NewConnection(transport Transport, opts ...Option) *Connection {
	c := &Connection{
		transport: transport,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the current exchange. The Connection may be used again.
func (c *Connection) Close() error {
	c.current = nil
	return nil
}

// SendRequest sends a GET request to rawURL. The response becomes the current
// exchange. If the response is a problem document a KindServerProtocol error is
// returned along with the status code.
func (c *Connection) SendRequest(ctx context.Context, rawURL string) (int, error) {
	c.current = nil

	ex, err := c.roundTrip(ctx, http.MethodGet, rawURL, nil, newRequestHeader())
	if err != nil {
		return 0, err
	}
	c.current = ex

	if err := c.detectProblem(); err != nil {
		return ex.status, err
	}
	return ex.status, nil
}

// SendSignedRequest POSTs claims to rawURL as a JWS signed by id, using and
// replacing the nonce held by session. If session has no nonce one is
// requested from rawURL first with StartSession.
//
// The session nonce is refreshed from the response before the response is
// checked for a problem document, so the session stays usable after a failed
// request. This includes responses whose body could not be read; those
// return a KindTransport error with the status and no current exchange. If
// the server sends no usable nonce the session is left empty and the next
// signed request starts a new one. A nonce is only spent once the request is
// handed to the transport.
func (c *Connection) SendSignedRequest(
	ctx context.Context,
	rawURL string,
	claims *resources.Claims,
	session *Session,
	id Identity) (int, error) {
	if session == nil {
		return 0, errors.New("acme: nil session")
	}
	c.current = nil

	if session.Nonce() == nil {
		if err := c.StartSession(ctx, rawURL, session); err != nil {
			return 0, err
		}
	}
	if session.Nonce() == nil {
		return 0, protocolError(nil, "no nonce available")
	}

	if claims == nil {
		claims = resources.NewClaims()
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return 0, signingError(err, "serializing claims")
	}

	signed, err := SignRequest(id, session.Nonce(), payload)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("signed request",
		zap.String("url", rawURL),
		zap.ByteString("claims", payload),
		zap.String("nonce", signed.Nonce))

	header := newRequestHeader()
	header.Set("Accept", acme.JSON_CONTENT_TYPE)
	header.Set("Content-Type", acme.JSON_CONTENT_TYPE)

	req, err := newRequest(ctx, http.MethodPost, rawURL, signed.SerializedJWS, header)
	if err != nil {
		return 0, err
	}

	// The nonce is spent as soon as it is sent.
	session.clear()

	ex, err := c.send(req)
	if err != nil {
		if ex == nil {
			return 0, err
		}
		// Headers arrived even though the body did not.
		_ = c.refreshNonce(ex, session)
		return ex.status, err
	}
	c.current = ex

	nonceErr := c.refreshNonce(ex, session)
	if err := c.detectProblem(); err != nil {
		return ex.status, err
	}
	if nonceErr != nil {
		return ex.status, nonceErr
	}
	return ex.status, nil
}

// detectProblem converts a problem document on the current exchange into
// a KindServerProtocol error. It consumes the body and runs at most once per
// exchange.
func (c *Connection) detectProblem() error {
	ex := c.current
	if ex == nil || ex.problem != nil {
		return nil
	}
	if ex.mediaType() != acme.PROBLEM_CONTENT_TYPE {
		return nil
	}

	body, err := ex.consume()
	if err != nil {
		return err
	}
	var problem resources.Problem
	if err := json.Unmarshal(body, &problem); err != nil {
		ex.problem = protocolError(err, "failed to parse problem document %q", body)
		return ex.problem
	}
	if problem.Status == 0 {
		problem.Status = ex.status
	}

	c.logger.Debug("server returned problem",
		zap.String("exchange", ex.id),
		zap.String("type", problem.Type),
		zap.String("detail", problem.Detail),
		zap.Int("status", problem.Status))
	ex.problem = serverError(&problem)
	return ex.problem
}

// active returns the current exchange, or the error every reader must
// report instead.
func (c *Connection) active() (*exchange, error) {
	if c.current == nil {
		return nil, ErrNotConnected
	}
	if c.current.problem != nil {
		return nil, c.current.problem
	}
	return c.current, nil
}

// StatusCode returns the status code of the current exchange, or 0 if there
// is none.
func (c *Connection) StatusCode() int {
	if c.current == nil {
		return 0
	}
	return c.current.status
}

// Header returns the named header of the current exchange, or "" if there is
// no current exchange.
func (c *Connection) Header(name string) string {
	if c.current == nil {
		return ""
	}
	return c.current.header.Get(name)
}
