package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyreel/storyreel/internal/composer"
	"github.com/storyreel/storyreel/internal/generator"
	"github.com/storyreel/storyreel/internal/library"
	"github.com/storyreel/storyreel/internal/media"
	"github.com/storyreel/storyreel/internal/story"
)

// stubTextModel always errors so the decomposer falls back to templates,
// keeping storyboard output deterministic.
type stubTextModel struct{}

func (stubTextModel) GenerateContent(context.Context, string) (string, error) {
	return "", fmt.Errorf("model offline")
}

// stubGenerator completes every job on the first poll.
type stubGenerator struct{ calls int }

func (g *stubGenerator) Submit(context.Context, generator.SubmitOptions) (string, error) {
	g.calls++
	return fmt.Sprintf("op-%d", g.calls), nil
}

func (g *stubGenerator) Poll(_ context.Context, operationID string) (generator.PollResult, error) {
	return generator.PollResult{Done: true, OutputURL: "https://dl.example/" + operationID}, nil
}

func (g *stubGenerator) Download(_ context.Context, _, destPath string) error {
	return os.WriteFile(destPath, []byte("segment-bytes"), 0600)
}

type stubProcessor struct{}

func (stubProcessor) ExtractLastFrame(_ context.Context, _, framePath string) error {
	return os.WriteFile(framePath, []byte("jpeg-bytes"), 0600)
}

func (stubProcessor) Stitch(_ context.Context, _ []string, output string, _ media.StitchOptions) error {
	return os.WriteFile(output, []byte("final-bytes"), 0600)
}

func (stubProcessor) Duration(context.Context, string) (float64, error) { return 8, nil }

type testAPI struct {
	handler http.Handler
	svc     *composer.Service
	lib     library.Library
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	lib, err := library.NewLocalLibrary(t.TempDir())
	require.NoError(t, err)

	repo, err := composer.NewFileRepository(t.TempDir())
	require.NoError(t, err)

	svc := composer.NewService(repo, &stubGenerator{}, stubProcessor{}, lib, logger,
		composer.WithPollInterval(time.Millisecond),
		composer.WithPollTimeout(25*time.Millisecond),
		composer.WithBackoff(time.Millisecond, 4*time.Millisecond),
	)

	decomposer := story.NewDecomposer(stubTextModel{}, logger)
	handlers := NewHandlers(decomposer, svc, lib, logger)

	return &testAPI{
		handler: NewRouter(handlers, logger, DefaultConfig()),
		svc:     svc,
		lib:     lib,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

const testStory = "A retired clockmaker builds one last impossible clock that runs backwards through her memories."

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAnalyzeStory_Success(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/sequence/analyze-story", AnalyzeStoryRequest{
		Story:      testStory,
		SceneCount: 5,
		Duration:   8,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalyzeStoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Scenes, 5)
	for i, s := range resp.Scenes {
		assert.Equal(t, i+1, s.SceneNumber)
		assert.NotEmpty(t, s.Prompt)
		assert.Equal(t, 8, s.Duration)
	}
}

func TestAnalyzeStory_Validation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		req  AnalyzeStoryRequest
	}{
		{"story too short", AnalyzeStoryRequest{Story: "tiny", SceneCount: 4}},
		{"scene count too low", AnalyzeStoryRequest{Story: testStory, SceneCount: 3}},
		{"scene count too high", AnalyzeStoryRequest{Story: testStory, SceneCount: 9}},
		{"bad duration", AnalyzeStoryRequest{Story: testStory, SceneCount: 4, Duration: 7}},
		{"bad aspect ratio", AnalyzeStoryRequest{Story: testStory, SceneCount: 4, AspectRatio: "4:3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/sequence/analyze-story", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
		})
	}
}

func TestAnalyzeStory_InvalidJSON(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sequence/analyze-story", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_JSON")
}

func submitScenes(n int) []SceneDTO {
	scenes := make([]SceneDTO, n)
	for i := range scenes {
		scenes[i] = SceneDTO{
			SceneNumber: i + 1,
			Prompt:      fmt.Sprintf("Scene %d: the clockmaker works under lamplight", i+1),
			Duration:    8,
		}
	}
	return scenes
}

func TestSubmit_AcceptedAndRunsToCompletion(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/sequence/submit", SubmitRequest{
		Scenes: submitScenes(4),
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.CompositionID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, 4, resp.TotalSegments)

	api.svc.Wait()

	status := api.do(t, http.MethodGet, "/api/sequence/status/"+resp.CompositionID, nil)
	require.Equal(t, http.StatusOK, status.Code)

	var st StatusResponse
	require.NoError(t, json.Unmarshal(status.Body.Bytes(), &st))
	assert.Equal(t, "completed", st.Status)
	assert.Equal(t, 4, st.CurrentSegment)
	require.Len(t, st.Segments, 4)
	for _, seg := range st.Segments {
		assert.Equal(t, "completed", seg.Status)
		assert.NotEmpty(t, seg.VideoID)
	}
	assert.NotEmpty(t, st.FinalVideoID)
	assert.NotNil(t, st.CompletedAt)
}

func TestSubmit_Validation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		req  SubmitRequest
	}{
		{"no scenes", SubmitRequest{}},
		{"too few scenes", SubmitRequest{Scenes: submitScenes(3)}},
		{"too many scenes", SubmitRequest{Scenes: submitScenes(9)}},
		{"bad resolution", SubmitRequest{Scenes: submitScenes(4), Resolution: "480p"}},
		{"empty prompt", SubmitRequest{Scenes: []SceneDTO{{}, {}, {}, {}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/sequence/submit", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSubmit_PromptLengthBounds(t *testing.T) {
	api := newTestAPI(t)

	t.Run("prompt at the 4096 limit is accepted", func(t *testing.T) {
		scenes := submitScenes(4)
		scenes[0].Prompt = strings.Repeat("a", 4096)

		rec := api.do(t, http.MethodPost, "/api/sequence/submit", SubmitRequest{Scenes: scenes})
		assert.Equal(t, http.StatusAccepted, rec.Code)
		api.svc.Wait()
	})

	t.Run("prompt over the limit is rejected", func(t *testing.T) {
		scenes := submitScenes(4)
		scenes[0].Prompt = strings.Repeat("a", 4097)

		rec := api.do(t, http.MethodPost, "/api/sequence/submit", SubmitRequest{Scenes: scenes})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	})

	t.Run("prompt under ten characters is rejected", func(t *testing.T) {
		scenes := submitScenes(4)
		scenes[0].Prompt = "too short"

		rec := api.do(t, http.MethodPost, "/api/sequence/submit", SubmitRequest{Scenes: scenes})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	})
}

func TestSubmit_MixedDurationsRejected(t *testing.T) {
	api := newTestAPI(t)

	scenes := submitScenes(4)
	scenes[0].Duration = 4

	rec := api.do(t, http.MethodPost, "/api/sequence/submit", SubmitRequest{Scenes: scenes})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "same duration")
}

func TestSubmit_UnsetDurationDefaultsUniform(t *testing.T) {
	api := newTestAPI(t)

	// An omitted duration counts as the 8-second default, so it mixes
	// cleanly with explicit 8s.
	scenes := submitScenes(4)
	scenes[0].Duration = 0

	rec := api.do(t, http.MethodPost, "/api/sequence/submit", SubmitRequest{Scenes: scenes})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	api.svc.Wait()
}

func TestStatus_NotFound(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/sequence/status/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "COMPOSITION_NOT_FOUND")
}

func TestListCompositions(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/sequence/submit", SubmitRequest{Scenes: submitScenes(4)})
	require.Equal(t, http.StatusAccepted, rec.Code)
	api.svc.Wait()

	list := api.do(t, http.MethodGet, "/api/sequence/compositions", nil)
	require.Equal(t, http.StatusOK, list.Code)

	var summaries []CompositionSummary
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "completed", summaries[0].Status)
	assert.Equal(t, 4, summaries[0].TotalSegments)
}

func TestVideos_EmptyList(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/videos", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestVideos_Lifecycle(t *testing.T) {
	api := newTestAPI(t)

	id, err := api.lib.Save(context.Background(), strings.NewReader("payload"), library.Metadata{
		Prompt:     "A clock tower at midnight",
		Resolution: "720p",
		Duration:   8,
	})
	require.NoError(t, err)

	t.Run("get streams payload", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/videos/"+id, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "payload", rec.Body.String())
	})

	t.Run("private by default, gallery empty", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/library", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]\n", rec.Body.String())
	})

	t.Run("publish makes it visible in gallery", func(t *testing.T) {
		rec := api.do(t, http.MethodPatch, "/api/videos/"+id+"/visibility", VisibilityRequest{IsPublic: true})
		require.Equal(t, http.StatusOK, rec.Code)

		gallery := api.do(t, http.MethodGet, "/api/library", nil)
		require.Equal(t, http.StatusOK, gallery.Code)

		var videos []VideoResponse
		require.NoError(t, json.Unmarshal(gallery.Body.Bytes(), &videos))
		require.Len(t, videos, 1)
		assert.Equal(t, id, videos[0].VideoID)
		assert.True(t, videos[0].IsPublic)
	})

	t.Run("delete removes it", func(t *testing.T) {
		rec := api.do(t, http.MethodDelete, "/api/videos/"+id, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		again := api.do(t, http.MethodDelete, "/api/videos/"+id, nil)
		assert.Equal(t, http.StatusNotFound, again.Code)
	})
}

func TestVideos_NotFound(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/videos/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, "/api/videos/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound,
		api.do(t, http.MethodPatch, "/api/videos/nope/visibility", VisibilityRequest{IsPublic: true}).Code)
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodDelete, "/api/sequence/submit", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
