// Package server provides the HTTP API for story-driven video composition.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// SceneDTO is the wire representation of one storyboard scene.
type SceneDTO struct {
	// SceneNumber is the 1-based position in the storyboard.
	SceneNumber int `json:"scene_number"`
	// Prompt is the visual description driving the segment.
	Prompt string `json:"prompt" validate:"required,min=10,max=4096"`
	// NegativePrompt lists elements to exclude, if any.
	NegativePrompt string `json:"negative_prompt,omitempty"`
	// Duration is the segment length in seconds.
	Duration int `json:"duration" validate:"omitempty,oneof=4 6 8"`
	// CameraStyle is the camera movement hint, if any.
	CameraStyle string `json:"camera_style,omitempty"`
	// StyleControl is the visual style hint, if any.
	StyleControl string `json:"style_control,omitempty"`
}

// AnalyzeStoryRequest is the HTTP request body for story decomposition.
type AnalyzeStoryRequest struct {
	// Story is the long-form story text to decompose.
	Story string `json:"story" validate:"required,min=20,max=8192"`
	// SceneCount is the exact number of scenes to produce.
	SceneCount int `json:"scene_count" validate:"required,min=4,max=8"`
	// Duration is the per-scene duration in seconds. Defaults to 8.
	Duration int `json:"duration" validate:"omitempty,oneof=4 6 8"`
	// AspectRatio guides shot framing.
	AspectRatio string `json:"aspect_ratio" validate:"omitempty,oneof=16:9 9:16"`
	// CameraStyle, when set, is applied to every scene.
	CameraStyle string `json:"camera_style,omitempty"`
	// StyleControl, when set, is applied to every scene.
	StyleControl string `json:"style_control,omitempty"`
}

// AnalyzeStoryResponse returns the generated storyboard.
type AnalyzeStoryResponse struct {
	Scenes []SceneDTO `json:"scenes"`
	// TotalDuration is the combined length of all scenes in seconds.
	TotalDuration int `json:"total_duration"`
}

// SubmitRequest is the HTTP request body for starting a composition.
type SubmitRequest struct {
	// Scenes is the storyboard, typically the output of analyze-story,
	// possibly edited by the user.
	Scenes []SceneDTO `json:"scenes" validate:"required,min=4,max=8,dive"`
	// Resolution of every segment. Defaults to 720p.
	Resolution string `json:"resolution" validate:"omitempty,oneof=720p 1080p"`
	// AspectRatio of every segment. Defaults to 16:9.
	AspectRatio string `json:"aspect_ratio" validate:"omitempty,oneof=16:9 9:16"`
}

// SubmitResponse is the HTTP response after accepting a composition.
type SubmitResponse struct {
	CompositionID string `json:"composition_id"`
	Status        string `json:"status"`
	TotalSegments int    `json:"total_segments"`
}

// SegmentDTO is the wire representation of one segment's progress.
type SegmentDTO struct {
	SceneNumber int    `json:"scene_number"`
	Status      string `json:"status"`
	VideoID     string `json:"video_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// StatusResponse is the HTTP response for composition status polling.
type StatusResponse struct {
	CompositionID  string       `json:"composition_id"`
	Status         string       `json:"status"`
	CurrentSegment int          `json:"current_segment"`
	TotalSegments  int          `json:"total_segments"`
	Segments       []SegmentDTO `json:"segments"`
	FinalVideoID   string       `json:"final_video_id,omitempty"`
	FinalVideoURL  string       `json:"final_video_url,omitempty"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

// CompositionSummary is one entry in the compositions listing.
type CompositionSummary struct {
	CompositionID string     `json:"composition_id"`
	Status        string     `json:"status"`
	TotalSegments int        `json:"total_segments"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// VideoResponse is the wire representation of a stored video.
type VideoResponse struct {
	VideoID     string    `json:"video_id"`
	Prompt      string    `json:"prompt"`
	Resolution  string    `json:"resolution"`
	Duration    int       `json:"duration"`
	AspectRatio string    `json:"aspect_ratio"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
}

// VisibilityRequest is the HTTP request body for toggling video visibility.
type VisibilityRequest struct {
	IsPublic bool `json:"is_public"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
