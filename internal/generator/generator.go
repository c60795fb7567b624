// Package generator provides the common interface for video generation
// providers used by the composition orchestrator.
package generator

import "context"

// SubmitOptions contains parameters for submitting a generation job.
type SubmitOptions struct {
	Prompt          string // Text prompt driving the segment
	NegativePrompt  string // Elements to exclude, if any
	SeedImagePath   string // Optional reference image conditioning the segment
	Resolution      string // "720p" or "1080p"
	DurationSeconds int    // Clip length (4, 6 or 8)
	AspectRatio     string // "16:9" or "9:16"
}

// PollResult contains the result of polling a job's status.
type PollResult struct {
	Done      bool   // Whether the job reached a terminal state
	OutputURL string // Download URL for the generated video (set when done and successful)
	Error     string // Error message (set when done and failed)
}

// Generator defines the interface for video generation providers.
// Polling is idempotent: Poll may be called any number of times per job.
type Generator interface {
	// Submit starts a generation job and returns an opaque job handle.
	Submit(ctx context.Context, opts SubmitOptions) (jobID string, err error)

	// Poll checks the status of a job and returns the result.
	Poll(ctx context.Context, jobID string) (PollResult, error)

	// Download fetches the generated video from outputURL to destPath.
	Download(ctx context.Context, outputURL, destPath string) error
}
