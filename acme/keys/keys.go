// Package keys offers utility functions for working with the key pairs used to
// sign ACME requests: generation, algorithm selection, JWKs and PEM
// serialization.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	jose "github.com/go-jose/go-jose/v4"
)

// UNKNOWN_ALG is returned by SigAlgForKey for key types no JWS algorithm is
// known for.
const UNKNOWN_ALG jose.SignatureAlgorithm = "unknown"

// SigAlgForKey returns the JWS algorithm a key signs with: RS256 for RSA keys,
// and ES256/ES384/ES512 for ECDSA keys depending on the curve.
func SigAlgForKey(signer crypto.Signer) jose.SignatureAlgorithm {
	switch k := signer.(type) {
	case *ecdsa.PrivateKey:
		switch k.Curve {
		case elliptic.P256():
			return jose.ES256
		case elliptic.P384():
			return jose.ES384
		case elliptic.P521():
			return jose.ES512
		}
	case *rsa.PrivateKey:
		return jose.RS256
	}
	return UNKNOWN_ALG
}

// KeyPair is a private key together with the JWS algorithm it is declared to
// sign with.
type KeyPair struct {
	signer crypto.Signer
	alg    jose.SignatureAlgorithm
}

// NewKeyPair wraps signer, declaring the algorithm SigAlgForKey picks for it.
func NewKeyPair(signer crypto.Signer) (*KeyPair, error) {
	if signer == nil {
		return nil, errors.New("keys: nil signer")
	}
	alg := SigAlgForKey(signer)
	if alg == UNKNOWN_ALG {
		return nil, fmt.Errorf("keys: unsupported key type %T", signer)
	}
	return &KeyPair{signer: signer, alg: alg}, nil
}

// NewKeyPairWithAlgorithm wraps signer with an explicitly declared algorithm.
// No check is made that the algorithm suits the key; signing reports that.
func NewKeyPairWithAlgorithm(signer crypto.Signer, alg jose.SignatureAlgorithm) *KeyPair {
	return &KeyPair{signer: signer, alg: alg}
}

// Key returns the private key.
func (k *KeyPair) Key() crypto.Signer {
	return k.signer
}

// Public returns the public half of the key pair.
func (k *KeyPair) Public() crypto.PublicKey {
	return k.signer.Public()
}

// Algorithm returns the declared JWS algorithm.
func (k *KeyPair) Algorithm() jose.SignatureAlgorithm {
	return k.alg
}

// JWKForSigner returns the public JWK of signer.
func JWKForSigner(signer crypto.Signer) jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       signer.Public(),
		Algorithm: string(SigAlgForKey(signer)),
	}
}

func JWKJSON(signer crypto.Signer) string {
	jwk := JWKForSigner(signer)
	jwkJSON, err := json.Marshal(&jwk)
	if err != nil {
		return ""
	}
	return string(jwkJSON)
}

func JWKThumbprintBytes(signer crypto.Signer) []byte {
	jwk := JWKForSigner(signer)
	thumbBytes, _ := jwk.Thumbprint(crypto.SHA256)
	return thumbBytes
}

// JWKThumbprint returns the base64url RFC 7638 SHA-256 thumbprint of the
// signer's public JWK.
func JWKThumbprint(signer crypto.Signer) string {
	return base64.RawURLEncoding.EncodeToString(JWKThumbprintBytes(signer))
}

// NewSigner generates a random key of the given type, "ecdsa" (P-256) or
// "rsa" (2048 bit).
func NewSigner(keyType string) (crypto.Signer, error) {
	var randKey crypto.Signer
	var err error
	switch keyType {
	case "ecdsa":
		randKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "rsa":
		randKey, err = rsa.GenerateKey(rand.Reader, 2048)
	default:
		err = fmt.Errorf("unknown key type: %q", keyType)
	}
	if err != nil {
		return nil, err
	}
	return randKey, nil
}

func SignerToPEM(signer crypto.Signer) (string, error) {
	var keyBytes []byte
	var keyHeader string
	var err error
	switch k := signer.(type) {
	case *ecdsa.PrivateKey:
		keyBytes, err = x509.MarshalECPrivateKey(k)
		keyHeader = "EC PRIVATE KEY"
	case *rsa.PrivateKey:
		keyBytes = x509.MarshalPKCS1PrivateKey(k)
		keyHeader = "RSA PRIVATE KEY"
	default:
		err = fmt.Errorf("unknown key type: %T", k)
	}
	if err != nil {
		return "", err
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  keyHeader,
		Bytes: keyBytes,
	})
	return string(pemBytes), nil
}

// SignerFromPEM parses the first private key block in pemBytes. EC, PKCS#1 RSA
// and PKCS#8 blocks are accepted.
func SignerFromPEM(pemBytes []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("keys: no PEM block found")
	}
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		return key, nil
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		return key, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("keys: PKCS#8 key %T is not a signer", key)
		}
		return signer, nil
	}
	return nil, fmt.Errorf("keys: unsupported PEM block type %q", block.Type)
}

// LoadSigner reads a PEM encoded private key from path.
func LoadSigner(path string) (crypto.Signer, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SignerFromPEM(pemBytes)
}

// SaveSigner writes signer to path in PEM form, readable only by the owner.
func SaveSigner(path string, signer crypto.Signer) error {
	pemStr, err := SignerToPEM(signer)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(pemStr), 0600)
}
