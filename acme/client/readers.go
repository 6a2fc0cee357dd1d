package client

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/url"

	"go.uber.org/zap"

	"github.com/cpu/acmeshell/acme"
)

// ReadJSON decodes the body of the current exchange as a JSON object. Bodies
// of responses with a status below 400 are read from the success stream,
// others from the error stream. An empty body yields a nil map and no error.
func (c *Connection) ReadJSON() (map[string]interface{}, error) {
	ex, err := c.active()
	if err != nil {
		return nil, err
	}
	stream := ex.stream()
	body, err := ex.consume()
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, protocolError(err, "failed to parse response %q", body)
	}
	c.logger.Debug("result JSON",
		zap.String("exchange", ex.id),
		zap.Stringer("stream", stream),
		zap.ByteString("body", body))
	return result, nil
}

// ReadBody returns the raw body of the current exchange.
func (c *Connection) ReadBody() ([]byte, error) {
	ex, err := c.active()
	if err != nil {
		return nil, err
	}
	return ex.consume()
}

// ReadCertificate decodes the body of the current exchange as a single X.509
// certificate, either DER or one PEM CERTIFICATE block.
func (c *Connection) ReadCertificate() (*x509.Certificate, error) {
	ex, err := c.active()
	if err != nil {
		return nil, err
	}
	if ex.stream() == errorStream {
		return nil, protocolError(nil, "no certificate in response with status %d", ex.status)
	}
	body, err := ex.consume()
	if err != nil {
		return nil, err
	}

	der := body
	if trimmed := bytes.TrimSpace(body); bytes.HasPrefix(trimmed, []byte("-----BEGIN")) {
		block, _ := pem.Decode(trimmed)
		if block == nil || block.Type != "CERTIFICATE" {
			return nil, protocolError(nil, "response is not a PEM certificate")
		}
		der = block.Bytes
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, protocolError(err, "error while parsing the X.509 certificate")
	}
	c.logger.Debug("read certificate",
		zap.String("exchange", ex.id),
		zap.String("subject", cert.Subject.String()),
		zap.String("serial", cert.SerialNumber.String()))
	return cert, nil
}

// Location returns the Location header of the current exchange resolved
// against the request URL, or nil if the header is absent.
func (c *Connection) Location() (*url.URL, error) {
	ex, err := c.active()
	if err != nil {
		return nil, err
	}
	location := ex.header.Get(acme.LOCATION_HEADER)
	if location == "" {
		return nil, nil
	}

	loc, err := url.Parse(location)
	if err != nil {
		return nil, protocolError(err, "bad Location header %q", location)
	}
	c.logger.Debug("location", zap.String("exchange", ex.id), zap.String("location", location))
	if ex.url != nil {
		return ex.url.ResolveReference(loc), nil
	}
	return loc, nil
}
