// Package media identifies the image formats accepted for upload.
package media

import (
	"bytes"
	"path"
	"strings"
)

// Accepted content types.
const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
)

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
)

// Detect returns the content type implied by the leading magic bytes of
// data, or "" when it is neither JPEG nor PNG. Client-supplied headers and
// file names are never consulted.
func Detect(data []byte) string {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return JPEG
	case bytes.HasPrefix(data, pngMagic):
		return PNG
	default:
		return ""
	}
}

// Extension returns the canonical file extension for an accepted type.
func Extension(contentType string) string {
	switch contentType {
	case JPEG:
		return ".jpg"
	case PNG:
		return ".png"
	default:
		return ""
	}
}

// IsImageKey reports whether key has an extension this service writes.
func IsImageKey(key string) bool {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
