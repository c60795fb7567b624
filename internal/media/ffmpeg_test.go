package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
}

// createTestVideo creates a short solid-color video with silent audio.
func createTestVideo(t *testing.T, path string, duration float64, color string) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=64x64:d=%.1f", color, duration),
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=44100:cl=mono:d=%.1f", duration),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-c:a", "aac",
		"-shortest",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

func TestNewFFmpegProcessor(t *testing.T) {
	t.Run("default path", func(t *testing.T) {
		p := NewFFmpegProcessor("")
		if p.ffmpegPath != "ffmpeg" {
			t.Errorf("expected default path 'ffmpeg', got %q", p.ffmpegPath)
		}
	})

	t.Run("custom path", func(t *testing.T) {
		p := NewFFmpegProcessor("/usr/local/bin/ffmpeg")
		if p.ffmpegPath != "/usr/local/bin/ffmpeg" {
			t.Errorf("expected custom path, got %q", p.ffmpegPath)
		}
	})
}

func TestExtractLastFrame(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	videoPath := filepath.Join(tmpDir, "input.mp4")
	framePath := filepath.Join(tmpDir, "frame.jpg")
	createTestVideo(t, videoPath, 2.0, "blue")

	p := NewFFmpegProcessor("")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.ExtractLastFrame(ctx, videoPath, framePath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(framePath)
	if err != nil {
		t.Fatalf("frame file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("frame file is empty")
	}
}

func TestExtractLastFrame_MissingInput(t *testing.T) {
	p := NewFFmpegProcessor("")

	err := p.ExtractLastFrame(context.Background(),
		filepath.Join(t.TempDir(), "missing.mp4"),
		filepath.Join(t.TempDir(), "frame.jpg"))
	if err == nil {
		t.Fatal("expected error for missing input")
	}
	if !os.IsNotExist(errors.Unwrap(err)) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestStitch_NoInputs(t *testing.T) {
	p := NewFFmpegProcessor("")

	err := p.Stitch(context.Background(), nil, "out.mp4", StitchOptions{})
	if !errors.Is(err, ErrNoInputs) {
		t.Errorf("expected ErrNoInputs, got %v", err)
	}
}

func TestStitch_SingleInputCopies(t *testing.T) {
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "only.mp4")
	output := filepath.Join(tmpDir, "out.mp4")
	if err := os.WriteFile(input, []byte("solo"), 0600); err != nil {
		t.Fatal(err)
	}

	p := NewFFmpegProcessor("")
	if err := p.Stitch(context.Background(), []string{input}, output, StitchOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if string(data) != "solo" {
		t.Errorf("expected direct copy, got %q", data)
	}
}

func TestStitch_InvalidOptions(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.mp4")
	b := filepath.Join(tmpDir, "b.mp4")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	p := NewFFmpegProcessor("")
	err := p.Stitch(context.Background(), []string{a, b}, filepath.Join(tmpDir, "out.mp4"), StitchOptions{})
	if !errors.Is(err, ErrInvalidStitchOptions) {
		t.Errorf("expected ErrInvalidStitchOptions, got %v", err)
	}
}

func TestStitch_Crossfade(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	inputs := []string{
		filepath.Join(tmpDir, "a.mp4"),
		filepath.Join(tmpDir, "b.mp4"),
		filepath.Join(tmpDir, "c.mp4"),
	}
	for i, color := range []string{"red", "green", "blue"} {
		createTestVideo(t, inputs[i], 2.0, color)
	}
	output := filepath.Join(tmpDir, "out.mp4")

	p := NewFFmpegProcessor("")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	err := p.Stitch(ctx, inputs, output, StitchOptions{
		SegmentDuration:   2.0,
		CrossfadeDuration: 0.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 3 x 2s with two 0.5s overlaps should be about 5s.
	dur, err := p.Duration(ctx, output)
	if err != nil {
		t.Fatalf("probe duration: %v", err)
	}
	if dur < 4.0 || dur > 6.0 {
		t.Errorf("expected roughly 5s output, got %.2fs", dur)
	}
}

func TestDuration(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	videoPath := filepath.Join(tmpDir, "clip.mp4")
	createTestVideo(t, videoPath, 2.0, "red")

	p := NewFFmpegProcessor("")
	dur, err := p.Duration(context.Background(), videoPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dur < 1.5 || dur > 2.5 {
		t.Errorf("expected about 2s, got %.2fs", dur)
	}
}
