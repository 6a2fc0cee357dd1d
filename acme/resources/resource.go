// Package resources provides types for representing ACME protocol resources,
// directories, problem documents and request claims.
package resources

// Resource identifies an endpoint an ACME server publishes in its directory.
// The set of Resource values is closed; ParseResource is the only way to turn
// a directory key into a Resource.
type Resource string

const (
	// Directory keys used by draft ACME servers (acme-01 era).
	NEW_REG     Resource = "new-reg"
	RECOVER_REG Resource = "recover-reg"
	NEW_AUTHZ   Resource = "new-authz"
	NEW_CERT    Resource = "new-cert"
	REVOKE_CERT Resource = "revoke-cert"

	// Directory keys defined by RFC 8555.
	// See https://tools.ietf.org/html/rfc8555#section-9.7.5
	NEW_NONCE        Resource = "newNonce"
	NEW_ACCOUNT      Resource = "newAccount"
	NEW_ORDER        Resource = "newOrder"
	NEW_AUTHZ_8555   Resource = "newAuthz"
	REVOKE_CERT_8555 Resource = "revokeCert"
	KEY_CHANGE       Resource = "keyChange"
)

var knownResources = map[string]Resource{}

func init() {
	for _, r := range AllResources() {
		knownResources[string(r)] = r
	}
}

// AllResources returns every known Resource in a stable order.
func AllResources() []Resource {
	return []Resource{
		NEW_REG,
		RECOVER_REG,
		NEW_AUTHZ,
		NEW_CERT,
		REVOKE_CERT,
		NEW_NONCE,
		NEW_ACCOUNT,
		NEW_ORDER,
		NEW_AUTHZ_8555,
		REVOKE_CERT_8555,
		KEY_CHANGE,
	}
}

// ParseResource maps a directory key to a Resource. The bool result is false
// for keys that are not known, which is not an error: servers are free to
// publish extra entries.
func ParseResource(key string) (Resource, bool) {
	r, ok := knownResources[key]
	return r, ok
}

// String returns the directory key of the Resource.
func (r Resource) String() string {
	return string(r)
}
