package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Static errors for media operations.
var (
	// ErrNoInputs is returned when no video paths are provided for stitching.
	ErrNoInputs = errors.New("no input videos provided")
	// ErrInvalidStitchOptions is returned when stitch durations are not positive.
	ErrInvalidStitchOptions = errors.New("invalid stitch options: durations must be positive")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath}
}

// Compile-time check that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)

// ExtractLastFrame extracts the final frame of a video as a high quality
// JPEG. It seeks to one second before end of file and keeps the last
// decoded frame.
func (p *FFmpegProcessor) ExtractLastFrame(ctx context.Context, videoPath, framePath string) error {
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("stat input video: %w", err)
	}

	args := []string{
		"-y",
		"-sseof", "-1", // Seek to near end of file
		"-i", videoPath,
		"-update", "1", // Keep overwriting the single output image
		"-frames:v", "1",
		"-q:v", "2",
		framePath,
	}

	if err := p.runFFmpeg(ctx, args); err != nil {
		return err
	}

	if _, err := os.Stat(framePath); err != nil {
		return fmt.Errorf("frame extraction produced no output: %w", err)
	}
	return nil
}

// Stitch concatenates the input videos into output with crossfade video
// transitions and concatenated audio. A single input is copied directly.
func (p *FFmpegProcessor) Stitch(ctx context.Context, inputs []string, output string, opts StitchOptions) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}

	for _, in := range inputs {
		if _, err := os.Stat(in); err != nil {
			return fmt.Errorf("stat input video: %w", err)
		}
	}

	if len(inputs) == 1 {
		return p.copyFile(inputs[0], output)
	}

	if opts.SegmentDuration <= 0 || opts.CrossfadeDuration <= 0 {
		return fmt.Errorf("%w: segment=%.2f crossfade=%.2f",
			ErrInvalidStitchOptions, opts.SegmentDuration, opts.CrossfadeDuration)
	}

	filter, videoLabel, audioLabel := buildCrossfadeFilter(
		len(inputs), opts.SegmentDuration, opts.CrossfadeDuration)

	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	args = append(args,
		"-filter_complex", filter,
		"-map", videoLabel,
		"-map", audioLabel,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart", // Progressive download layout
		output,
	)

	if err := p.runFFmpeg(ctx, args); err != nil {
		return err
	}

	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("stitching produced no output: %w", err)
	}
	return nil
}

// Duration returns the duration in seconds of a media file using ffprobe.
func (p *FFmpegProcessor) Duration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - path is provided by trusted internal code
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(stdout.String()), "%f", &duration); err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}

	return duration, nil
}

// copyFile copies a file from src to dst.
func (p *FFmpegProcessor) copyFile(src, dst string) error {
	input, err := os.ReadFile(src) // #nosec G304 - src is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}
	if err := os.WriteFile(dst, input, 0600); err != nil {
		return fmt.Errorf("write destination file: %w", err)
	}
	return nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
