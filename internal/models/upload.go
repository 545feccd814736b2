// Package models defines the domain types shared by the upload pipeline.
package models

import "time"

// Upload is a stored "Your Window" photo.
type Upload struct {
	Key              string    `json:"key"`
	ContentType      string    `json:"content_type"`
	Size             int64     `json:"size"`
	ETag             string    `json:"etag"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// ObjectInfo is a lightweight representation returned by store listings.
type ObjectInfo struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
