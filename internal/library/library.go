// Package library provides durable storage for generated video artifacts.
// Each video is stored as a payload file plus a sidecar JSON metadata record
// keyed by a generated video ID.
package library

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrVideoNotFound is returned when a video cannot be found by ID.
var ErrVideoNotFound = errors.New("video not found")

// Metadata describes a stored video artifact.
type Metadata struct {
	VideoID        string    `json:"video_id"`
	Prompt         string    `json:"prompt"`
	NegativePrompt string    `json:"negative_prompt,omitempty"`
	Resolution     string    `json:"resolution"`
	Duration       int       `json:"duration"`
	AspectRatio    string    `json:"aspect_ratio"`
	HasImage       bool      `json:"has_image"`
	IsPublic       bool      `json:"is_public"`
	CreatedAt      time.Time `json:"created_at"`
	Filename       string    `json:"filename"`
}

// Library defines the interface for video artifact storage.
type Library interface {
	// Save stores the video payload and its metadata, returning the
	// assigned video ID. When meta.VideoID is empty a new ID is generated.
	Save(ctx context.Context, data io.Reader, meta Metadata) (videoID string, err error)

	// Get returns the metadata for a video.
	// Returns ErrVideoNotFound if the video does not exist.
	Get(ctx context.Context, videoID string) (Metadata, error)

	// Path returns the local filesystem path of the video payload.
	// The file is not guaranteed to exist.
	Path(videoID string) string

	// Delete removes both the payload and the metadata record.
	// Returns ErrVideoNotFound if the video does not exist.
	Delete(ctx context.Context, videoID string) error

	// SetVisibility updates the is_public flag of a stored video.
	SetVisibility(ctx context.Context, videoID string, isPublic bool) error

	// List returns metadata for stored videos, newest first.
	// When onlyPublic is true, private videos are filtered out.
	List(ctx context.Context, onlyPublic bool) ([]Metadata, error)
}

// Uploader mirrors artifacts to remote object storage.
// Implemented by S3Library; the composer uses it for final compositions.
type Uploader interface {
	// Upload stores data under key and returns the public URL.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}
