// Package acme provides ACME protocol constants. See RFC 8555.
package acme

const (
	// The HTTP response header used by ACME to communicate a fresh nonce. See
	// https://tools.ietf.org/html/rfc8555#section-6.5
	REPLAY_NONCE_HEADER = "Replay-Nonce"
	// The HTTP response header carrying the URL of a created resource.
	LOCATION_HEADER = "Location"

	// Content type of signed request bodies and JSON responses.
	JSON_CONTENT_TYPE = "application/json"
	// Content type signalling a problem document. See
	// https://tools.ietf.org/html/rfc7807
	PROBLEM_CONTENT_TYPE = "application/problem+json"
	// Charset requested for every exchange.
	CHARSET = "utf-8"
)
