package resources

import "fmt"

// Problem is a struct representing a problem document from the server.
//
// See https://tools.ietf.org/html/rfc8555#section-6.7
type Problem struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
	Status int    `json:"status,omitempty"`
}

// String renders the problem type and detail.
func (p Problem) String() string {
	if p.Detail == "" {
		return p.Type
	}
	return fmt.Sprintf("%s: %s", p.Type, p.Detail)
}
