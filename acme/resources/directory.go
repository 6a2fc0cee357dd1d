package resources

import (
	"fmt"
	"net/url"
	"sort"
)

// Directory maps each known Resource to the URL the ACME server publishes for
// it. A Directory is immutable once built.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
type Directory struct {
	endpoints map[Resource]*url.URL
}

// NewDirectory builds a Directory from raw directory entries. Keys that do not
// name a known Resource are dropped. An entry for a known Resource whose value
// is not a valid URL is an error.
func NewDirectory(entries map[string]string) (*Directory, error) {
	dir := &Directory{
		endpoints: make(map[Resource]*url.URL, len(entries)),
	}
	for key, rawURL := range entries {
		res, ok := ParseResource(key)
		if !ok {
			continue
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("directory entry %q has invalid URL %q: %w",
				key, rawURL, err)
		}
		dir.endpoints[res] = u
	}
	return dir, nil
}

// Get returns a copy of the URL for the given Resource and true, or nil and
// false if the server did not publish it.
func (d *Directory) Get(r Resource) (*url.URL, bool) {
	if d == nil {
		return nil, false
	}
	u, ok := d.endpoints[r]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

// Len returns the number of known Resources in the Directory.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.endpoints)
}

// Resources returns the Resources present in the Directory, sorted by key.
func (d *Directory) Resources() []Resource {
	if d == nil {
		return nil
	}
	res := make([]Resource, 0, len(d.endpoints))
	for r := range d.endpoints {
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Map returns the Directory as a map of directory keys to URL strings.
func (d *Directory) Map() map[string]string {
	out := map[string]string{}
	if d == nil {
		return out
	}
	for r, u := range d.endpoints {
		out[string(r)] = u.String()
	}
	return out
}
