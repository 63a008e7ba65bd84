// Package media stores uploaded binary content (message images, avatars) in
// an S3-compatible object store and hands back public URLs.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

var ErrInvalidDataURL = errors.New("invalid data URL")

// Store persists uploaded content and returns a publicly reachable URL
type Store interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// DecodeDataURL splits a base64 data URL ("data:image/png;base64,...") into
// its decoded bytes and content type. Clients send images inline as data URLs
// and the server re-homes them in the object store.
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, "", ErrInvalidDataURL
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrInvalidDataURL
	}

	contentType, encoding, ok := strings.Cut(meta, ";")
	if !ok || encoding != "base64" || contentType == "" {
		return nil, "", ErrInvalidDataURL
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", ErrInvalidDataURL
	}

	return data, contentType, nil
}
