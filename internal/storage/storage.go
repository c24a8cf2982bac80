// Package storage uploads audio and hands back fetchable URLs.
package storage

import (
	"context"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Object is a stored blob.
type Object struct {
	Key string
	URL string
}

// Store persists bytes under a key and returns a URL the speech providers
// can fetch.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// NewKey builds a unique object key under prefix, with an extension derived
// from contentType.
func NewKey(prefix, contentType string) string {
	ext := ".bin"
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "audio/mpeg", "audio/mp3":
			ext = ".mp3"
		case "audio/webm":
			ext = ".webm"
		case "audio/wav", "audio/x-wav", "audio/wave":
			ext = ".wav"
		case "audio/ogg":
			ext = ".ogg"
		case "audio/mp4", "audio/m4a", "audio/x-m4a":
			ext = ".m4a"
		default:
			if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
				ext = exts[0]
			}
		}
	}
	return path.Join(strings.Trim(prefix, "/"), uuid.NewString()+ext)
}
