package resources

import (
	"crypto"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

// Claims builds the JSON payload of a signed ACME request. Keys are unique;
// putting an existing key replaces its value. Claims marshal to a JSON object.
type Claims struct {
	data map[string]interface{}
}

// NewClaims returns an empty Claims.
func NewClaims() *Claims {
	return &Claims{data: map[string]interface{}{}}
}

// ParseClaims builds Claims from a JSON object. Nested objects stay plain
// maps.
func ParseClaims(data []byte) (*Claims, error) {
	claims := NewClaims()
	if len(data) == 0 {
		return claims, nil
	}
	if err := json.Unmarshal(data, &claims.data); err != nil {
		return nil, fmt.Errorf("claims: %w", err)
	}
	if claims.data == nil {
		return nil, fmt.Errorf("claims: %q is not a JSON object", data)
	}
	return claims, nil
}

// Put sets key to value. time.Time values are rendered as RFC 3339 UTC
// timestamps; everything else is marshalled with encoding/json.
func (c *Claims) Put(key string, value interface{}) *Claims {
	switch v := value.(type) {
	case time.Time:
		c.data[key] = v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			c.data[key] = nil
		} else {
			c.data[key] = v.UTC().Format(time.RFC3339)
		}
	default:
		c.data[key] = value
	}
	return c
}

// PutResource sets the "resource" claim that draft ACME servers use to route
// a request.
func (c *Claims) PutResource(r Resource) *Claims {
	return c.Put("resource", r.String())
}

// PutBase64 sets key to the unpadded base64url encoding of data.
func (c *Claims) PutBase64(key string, data []byte) *Claims {
	return c.Put(key, base64.RawURLEncoding.EncodeToString(data))
}

// PutKey sets key to the JWK representation of the given public key.
func (c *Claims) PutKey(key string, pub crypto.PublicKey) (*Claims, error) {
	jwk := jose.JSONWebKey{Key: pub}
	if !jwk.Valid() {
		return c, fmt.Errorf("claims: unsupported public key type %T", pub)
	}
	raw, err := jwk.MarshalJSON()
	if err != nil {
		return c, fmt.Errorf("claims: marshalling JWK: %w", err)
	}
	var jwkMap map[string]interface{}
	if err := json.Unmarshal(raw, &jwkMap); err != nil {
		return c, fmt.Errorf("claims: decoding JWK: %w", err)
	}
	c.data[key] = jwkMap
	return c, nil
}

// Object returns the nested Claims stored under key, creating it if needed.
// A non-object value under key is replaced.
func (c *Claims) Object(key string) *Claims {
	if sub, ok := c.data[key].(*Claims); ok {
		return sub
	}
	sub := NewClaims()
	c.data[key] = sub
	return sub
}

// Array sets key to a JSON array of the given values.
func (c *Claims) Array(key string, values ...interface{}) *Claims {
	arr := make([]interface{}, len(values))
	copy(arr, values)
	c.data[key] = arr
	return c
}

// Get returns the raw value stored under key.
func (c *Claims) Get(key string) (interface{}, bool) {
	v, ok := c.data[key]
	return v, ok
}

// Len returns the number of top level claims.
func (c *Claims) Len() int {
	return len(c.data)
}

// MarshalJSON renders the Claims as a JSON object.
func (c *Claims) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.data)
}

// String returns the JSON rendering of the Claims, or an empty object if it
// can not be rendered.
func (c *Claims) String() string {
	out, err := c.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(out)
}
