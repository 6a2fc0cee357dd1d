package client

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/cpu/acmeshell/acme/resources"
)

// ReadResourceDirectory decodes the body of the current exchange as an ACME
// directory. Keys naming a known resources.Resource are kept; other keys
// (including "meta") are ignored.
func (c *Connection) ReadResourceDirectory() (*resources.Directory, error) {
	ex, err := c.active()
	if err != nil {
		return nil, err
	}
	if ex.stream() == errorStream {
		return nil, protocolError(nil, "no directory in response with status %d", ex.status)
	}
	body, err := ex.consume()
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, protocolError(err, "could not parse resource directory %q", body)
	}

	entries := make(map[string]string, len(raw))
	for key, value := range raw {
		if _, ok := resources.ParseResource(key); !ok {
			continue
		}
		var rawURL string
		if err := json.Unmarshal(value, &rawURL); err != nil {
			return nil, protocolError(err, "directory entry %q is not a URL string", key)
		}
		entries[key] = rawURL
	}

	dir, err := resources.NewDirectory(entries)
	if err != nil {
		return nil, protocolError(err, "could not parse resource directory")
	}
	c.logger.Debug("resource directory",
		zap.String("exchange", ex.id),
		zap.Any("directory", dir.Map()))
	return dir, nil
}

// FetchDirectory GETs the directory at rawURL and reads it.
func (c *Connection) FetchDirectory(ctx context.Context, rawURL string) (*resources.Directory, error) {
	if _, err := c.SendRequest(ctx, rawURL); err != nil {
		return nil, err
	}
	return c.ReadResourceDirectory()
}
