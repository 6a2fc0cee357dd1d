package client

import (
	"encoding/base64"
	"errors"
)

// Session tracks the replay nonce for a series of exchanges with one ACME
// server. A Session starts without a nonce; a Connection fills it in from the
// Replay-Nonce header of each response and spends it on each signed request.
//
// A Session is not safe for concurrent use.
type Session struct {
	nonce []byte
}

// NewSession returns an empty Session.
func NewSession() *Session {
	return &Session{}
}

// Nonce returns the current replay nonce, or nil if there is none.
func (s *Session) Nonce() []byte {
	if s == nil || len(s.nonce) == 0 {
		return nil
	}
	return s.nonce
}

// SetNonce replaces the current replay nonce. An empty nonce is rejected.
func (s *Session) SetNonce(nonce []byte) error {
	if len(nonce) == 0 {
		return errors.New("session: nonce must not be empty")
	}
	s.nonce = append([]byte(nil), nonce...)
	return nil
}

// String returns the nonce in the base64url form used on the wire.
func (s *Session) String() string {
	if s.Nonce() == nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(s.nonce)
}

// clear drops a nonce that has been spent.
func (s *Session) clear() {
	s.nonce = nil
}
