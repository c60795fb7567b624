// Package media provides video processing for composition assembly:
// last-frame extraction and crossfade stitching via the ffmpeg CLI.
package media

import "context"

// StitchOptions contains parameters for crossfade stitching.
type StitchOptions struct {
	// SegmentDuration is the duration of each input segment in seconds.
	// All inputs must share it; offsets are computed from it.
	SegmentDuration float64
	// CrossfadeDuration is the length of each transition in seconds.
	CrossfadeDuration float64
}

// Processor defines the interface for video processing operations.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// ExtractLastFrame writes the final frame of the video at videoPath
	// to framePath as a JPEG image.
	ExtractLastFrame(ctx context.Context, videoPath, framePath string) error

	// Stitch concatenates the input videos into output with crossfade
	// transitions at each seam. Audio is concatenated, not crossfaded.
	// A single input degenerates to a direct copy.
	Stitch(ctx context.Context, inputs []string, output string, opts StitchOptions) error

	// Duration returns the duration in seconds of a media file.
	Duration(ctx context.Context, path string) (float64, error)
}
