package client

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cpu/acmeshell/acme"
)

// StartSession fetches an initial replay nonce with a HEAD request to rawURL
// and stores it in session. Usually this is not needed: SendSignedRequest
// starts a session when the nonce is missing. It does not change the current
// exchange.
//
// See https://tools.ietf.org/html/rfc8555#section-7.2
func (c *Connection) StartSession(ctx context.Context, rawURL string, session *Session) error {
	if session == nil {
		return errors.New("acme: nil session")
	}
	c.logger.Debug("requesting initial replay nonce", zap.String("url", rawURL))

	ex, err := c.roundTrip(ctx, http.MethodHead, rawURL, nil, newRequestHeader())
	if err != nil {
		return err
	}

	nonce, err := nonceFromHeader(ex.header)
	if err != nil {
		return err
	}
	// nonceFromHeader never returns an empty nonce.
	_ = session.SetNonce(nonce)
	c.logger.Debug("replay nonce updated", zap.String("nonce", session.String()))
	return nil
}

// refreshNonce replaces the session nonce with the one the exchange carries.
// Without a usable header the session is emptied, since its nonce was spent.
func (c *Connection) refreshNonce(ex *exchange, session *Session) error {
	nonce, err := nonceFromHeader(ex.header)
	if err != nil {
		session.clear()
		c.logger.Debug("response carried no usable replay nonce",
			zap.String("exchange", ex.id), zap.Error(err))
		return err
	}
	_ = session.SetNonce(nonce)
	c.logger.Debug("replay nonce updated",
		zap.String("exchange", ex.id), zap.String("nonce", session.String()))
	return nil
}

// nonceFromHeader extracts and decodes the Replay-Nonce header.
func nonceFromHeader(header http.Header) ([]byte, error) {
	value := header.Get(acme.REPLAY_NONCE_HEADER)
	if value == "" {
		return nil, protocolError(nil, "no replay nonce")
	}
	nonce, err := decodeNonce(value)
	if err != nil {
		return nil, protocolError(err, "invalid replay nonce %q", value)
	}
	if len(nonce) == 0 {
		return nil, protocolError(nil, "invalid replay nonce %q", value)
	}
	return nonce, nil
}
