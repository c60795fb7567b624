package generator

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/storyreel/storyreel/internal/genai"
)

// VeoAdapter adapts the Gemini client to the Generator interface.
type VeoAdapter struct {
	client genai.Client
}

// NewVeoAdapter creates a new Veo generator adapter.
func NewVeoAdapter(client genai.Client) *VeoAdapter {
	return &VeoAdapter{client: client}
}

// Submit starts a Veo generation job. When a seed image path is set, the
// image is read and sent inline with the request.
func (a *VeoAdapter) Submit(ctx context.Context, opts SubmitOptions) (string, error) {
	req := genai.VideoRequest{
		Prompt:          opts.Prompt,
		NegativePrompt:  opts.NegativePrompt,
		Resolution:      opts.Resolution,
		DurationSeconds: opts.DurationSeconds,
		AspectRatio:     opts.AspectRatio,
	}

	if opts.SeedImagePath != "" {
		data, err := os.ReadFile(opts.SeedImagePath) // #nosec G304 - path is produced by frame extraction
		if err != nil {
			return "", fmt.Errorf("veo adapter: read seed image: %w", err)
		}
		req.ImageBytes = data
		req.ImageMimeType = mimeTypeForPath(opts.SeedImagePath)
	}

	name, err := a.client.GenerateVideos(ctx, req)
	if err != nil {
		return "", fmt.Errorf("veo adapter submit: %w", err)
	}
	return name, nil
}

// Poll checks the status of a Veo operation.
func (a *VeoAdapter) Poll(ctx context.Context, jobID string) (PollResult, error) {
	op, err := a.client.GetOperation(ctx, jobID)
	if err != nil {
		return PollResult{}, fmt.Errorf("veo adapter poll: %w", err)
	}

	return PollResult{
		Done:      op.Done,
		OutputURL: op.VideoURI,
		Error:     op.Error,
	}, nil
}

// Download fetches the generated video to a local path.
func (a *VeoAdapter) Download(ctx context.Context, outputURL, destPath string) error {
	if err := a.client.DownloadFile(ctx, outputURL, destPath); err != nil {
		return fmt.Errorf("veo adapter download: %w", err)
	}
	return nil
}

// mimeTypeForPath guesses the mime type from the file extension,
// defaulting to JPEG which is what frame extraction produces.
func mimeTypeForPath(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "image/jpeg"
}

// Compile-time check that VeoAdapter implements Generator.
var _ Generator = (*VeoAdapter)(nil)
