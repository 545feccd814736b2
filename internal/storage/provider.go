// Package storage defines the media object store.
package storage

import "github.com/yourview/yourview/internal/models"

// Provider is the interface for media object operations. Keys are
// slash-separated and relative to the store root.
type Provider interface {
	// List returns metadata for every object under prefix.
	List(prefix string) ([]models.ObjectInfo, error)
	// Read returns the raw bytes of the object at key.
	Read(key string) ([]byte, error)
	// Write atomically writes content to key.
	Write(key string, content []byte) error
	// Delete removes the object at key.
	Delete(key string) error
	// Path returns the absolute file path backing key.
	Path(key string) (string, error)
}
