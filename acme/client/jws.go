package client

import (
	"crypto"
	"encoding/base64"
	"errors"

	jose "github.com/go-jose/go-jose/v4"
)

// Identity is the key pair a signed request is made with. Key must be
// a private key go-jose can sign with (*rsa.PrivateKey or *ecdsa.PrivateKey)
// and Algorithm the JWS algorithm it is declared to sign with. *keys.KeyPair
// implements Identity.
type Identity interface {
	Key() crypto.Signer
	Algorithm() jose.SignatureAlgorithm
}

// SignResult holds the input and output from a SignRequest operation.
type SignResult struct {
	// The payload that was signed.
	InputData []byte
	// The nonce placed in the protected header, base64url encoded.
	Nonce string
	// The JWS in compact serialized form.
	SerializedJWS []byte
}

// staticNonce satisfies the go-jose NonceSource interface with a fixed value.
type staticNonce string

func (n staticNonce) Nonce() (string, error) {
	return string(n), nil
}

// SignRequest produces a compact JWS over payload. The protected header
// carries the identity's algorithm, its public key as an embedded JWK and the
// base64url encoded nonce. All failures are KindSigning errors.
func SignRequest(id Identity, nonce []byte, payload []byte) (*SignResult, error) {
	if id == nil || id.Key() == nil {
		return nil, signingError(nil, "no signing key")
	}
	if len(nonce) == 0 {
		return nil, signingError(nil, "no nonce to sign with")
	}
	encodedNonce := base64.RawURLEncoding.EncodeToString(nonce)

	signer, err := jose.NewSigner(jose.SigningKey{
		Key:       id.Key(),
		Algorithm: id.Algorithm(),
	}, &jose.SignerOptions{
		NonceSource: staticNonce(encodedNonce),
		EmbedJWK:    true,
	})
	if err != nil {
		return nil, signingError(err, "creating %s signer", id.Algorithm())
	}

	signed, err := signer.Sign(payload)
	if err != nil {
		return nil, signingError(err, "signing request")
	}

	serialized, err := signed.CompactSerialize()
	if err != nil {
		return nil, signingError(err, "serializing JWS")
	}

	return &SignResult{
		InputData:     payload,
		Nonce:         encodedNonce,
		SerializedJWS: []byte(serialized),
	}, nil
}

// decodeNonce decodes a Replay-Nonce header value. Trailing base64 padding is
// tolerated.
func decodeNonce(header string) ([]byte, error) {
	trimmed := header
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '=' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if trimmed == "" {
		return nil, errors.New("empty nonce")
	}
	return base64.RawURLEncoding.DecodeString(trimmed)
}
