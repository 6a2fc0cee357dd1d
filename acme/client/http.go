package client

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cpu/acmeshell/acme"
	acmenet "github.com/cpu/acmeshell/net"
)

// Transport performs a single HTTP exchange. The response body must be fully
// read and closed by the time Do returns. *net.ACMENet implements Transport.
type Transport interface {
	Do(req *http.Request) (*acmenet.NetResponse, error)
}

// streamKind names the body channel a reader consumes.
type streamKind int

const (
	successStream streamKind = iota
	errorStream
)

func (k streamKind) String() string {
	if k == errorStream {
		return "error"
	}
	return "success"
}

// exchange is the result of one request. Its body may be consumed once.
type exchange struct {
	id          string
	method      string
	url         *url.URL
	status      int
	contentType string
	header      http.Header
	body        []byte
	consumed    bool
	// problem is the server problem found on this exchange, if any. Every
	// reader returns it.
	problem error
}

// stream selects the channel to read from based on the status code.
func (e *exchange) stream() streamKind {
	if e.status >= http.StatusBadRequest {
		return errorStream
	}
	return successStream
}

// consume returns the body, once.
func (e *exchange) consume() ([]byte, error) {
	if e.consumed {
		return nil, ErrBodyConsumed
	}
	e.consumed = true
	return e.body, nil
}

// mediaType returns the response media type without parameters, lowercased.
func (e *exchange) mediaType() string {
	if e.contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(e.contentType)
	if err != nil {
		return e.contentType
	}
	return mt
}

func newRequestHeader() http.Header {
	h := http.Header{}
	h.Set("Accept-Charset", acme.CHARSET)
	return h
}

// roundTrip builds and sends one request.
func (c *Connection) roundTrip(
	ctx context.Context,
	method, rawURL string,
	body []byte,
	header http.Header) (*exchange, error) {
	req, err := newRequest(ctx, method, rawURL, body, header)
	if err != nil {
		return nil, err
	}
	return c.send(req)
}

// newRequest builds a request without sending it. Failures are KindProtocol.
func newRequest(
	ctx context.Context,
	method, rawURL string,
	body []byte,
	header http.Header) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, protocolError(err, "invalid request URL %q", rawURL)
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, protocolError(err, "building %s request for %q", method, rawURL)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	return req, nil
}

// send passes req to the Transport and captures the response as an
// exchange. If the transport fails after the response headers arrived, the
// KindTransport error comes with an exchange holding the status and headers
// but no body.
func (c *Connection) send(req *http.Request) (*exchange, error) {
	id := uuid.NewString()
	c.logger.Debug("sending request",
		zap.String("exchange", id),
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()))

	resp, err := c.transport.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			c.logger.Debug("request cancelled",
				zap.String("exchange", id), zap.Error(ctxErr))
		}
		err = transportError(err, "%s %s failed", req.Method, req.URL)
		if resp == nil || resp.Response == nil {
			return nil, err
		}
		ex := newExchange(id, req, resp)
		c.logger.Debug("response headers received without body",
			zap.String("exchange", id),
			zap.Int("status", ex.status),
			zap.Error(err))
		return ex, err
	}
	if len(resp.ReqDump) > 0 {
		c.logger.Debug("request dump",
			zap.String("exchange", id), zap.ByteString("dump", resp.ReqDump))
	}
	if len(resp.RespDump) > 0 {
		c.logger.Debug("response dump",
			zap.String("exchange", id), zap.ByteString("dump", resp.RespDump))
	}

	ex := newExchange(id, req, resp)
	c.logger.Debug("received response",
		zap.String("exchange", id),
		zap.Int("status", ex.status),
		zap.String("content_type", ex.contentType))
	return ex, nil
}

func newExchange(id string, req *http.Request, resp *acmenet.NetResponse) *exchange {
	ex := &exchange{
		id:     id,
		method: req.Method,
		url:    req.URL,
		body:   resp.RespBody,
	}
	if resp.Response != nil {
		ex.status = resp.Response.StatusCode
		ex.header = resp.Response.Header
	}
	if ex.header == nil {
		ex.header = http.Header{}
	}
	ex.contentType = ex.header.Get("Content-Type")
	return ex
}
