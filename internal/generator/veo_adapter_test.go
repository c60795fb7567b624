package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyreel/storyreel/internal/genai"
)

// fakeGenaiClient is a test double for the Gemini client.
type fakeGenaiClient struct {
	lastRequest genai.VideoRequest
	submitName  string
	submitErr   error
	operation   genai.Operation
	pollErr     error
	downloaded  []string
}

func (f *fakeGenaiClient) GenerateVideos(_ context.Context, req genai.VideoRequest) (string, error) {
	f.lastRequest = req
	return f.submitName, f.submitErr
}

func (f *fakeGenaiClient) GetOperation(_ context.Context, _ string) (genai.Operation, error) {
	return f.operation, f.pollErr
}

func (f *fakeGenaiClient) DownloadFile(_ context.Context, uri, destPath string) error {
	f.downloaded = append(f.downloaded, uri)
	return os.WriteFile(destPath, []byte("video"), 0600)
}

func (f *fakeGenaiClient) GenerateContent(_ context.Context, _ string) (string, error) {
	return "", nil
}

func TestVeoAdapter_Submit_NoSeedImage(t *testing.T) {
	fake := &fakeGenaiClient{submitName: "operations/op-1"}
	adapter := NewVeoAdapter(fake)

	jobID, err := adapter.Submit(context.Background(), SubmitOptions{
		Prompt:          "a quiet harbor at dawn",
		Resolution:      "720p",
		DurationSeconds: 8,
		AspectRatio:     "16:9",
	})
	require.NoError(t, err)
	assert.Equal(t, "operations/op-1", jobID)
	assert.Nil(t, fake.lastRequest.ImageBytes)
	assert.Equal(t, 8, fake.lastRequest.DurationSeconds)
}

func TestVeoAdapter_Submit_WithSeedImage(t *testing.T) {
	framePath := filepath.Join(t.TempDir(), "frame_1.jpg")
	require.NoError(t, os.WriteFile(framePath, []byte{0xff, 0xd8, 0xff}, 0600))

	fake := &fakeGenaiClient{submitName: "operations/op-2"}
	adapter := NewVeoAdapter(fake)

	_, err := adapter.Submit(context.Background(), SubmitOptions{
		Prompt:        "the harbor, continued",
		SeedImagePath: framePath,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, fake.lastRequest.ImageBytes)
	assert.Equal(t, "image/jpeg", fake.lastRequest.ImageMimeType)
}

func TestVeoAdapter_Submit_SeedImageMissing(t *testing.T) {
	adapter := NewVeoAdapter(&fakeGenaiClient{})

	_, err := adapter.Submit(context.Background(), SubmitOptions{
		Prompt:        "scene",
		SeedImagePath: filepath.Join(t.TempDir(), "nope.jpg"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestVeoAdapter_Poll(t *testing.T) {
	fake := &fakeGenaiClient{
		operation: genai.Operation{
			Done:     true,
			VideoURI: "https://example.com/v.mp4",
		},
	}
	adapter := NewVeoAdapter(fake)

	result, err := adapter.Poll(context.Background(), "operations/op-1")
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, "https://example.com/v.mp4", result.OutputURL)
	assert.Empty(t, result.Error)
}

func TestVeoAdapter_Poll_Failure(t *testing.T) {
	fake := &fakeGenaiClient{
		operation: genai.Operation{Done: true, Error: "model error"},
	}
	adapter := NewVeoAdapter(fake)

	result, err := adapter.Poll(context.Background(), "operations/op-1")
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, "model error", result.Error)
}

func TestMimeTypeForPath(t *testing.T) {
	assert.Equal(t, "image/png", mimeTypeForPath("frame.png"))
	assert.Equal(t, "image/jpeg", mimeTypeForPath("frame.noext"))
}
