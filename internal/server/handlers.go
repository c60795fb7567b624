package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/storyreel/storyreel/internal/composer"
	"github.com/storyreel/storyreel/internal/library"
	"github.com/storyreel/storyreel/internal/story"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	decomposer *story.Decomposer
	composer   *composer.Service
	library    library.Library
	validator  *validator.Validate
	logger     *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(decomposer *story.Decomposer, svc *composer.Service, lib library.Library, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		decomposer: decomposer,
		composer:   svc,
		library:    lib,
		validator:  validator.New(),
		logger:     logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// AnalyzeStory handles POST /api/sequence/analyze-story requests.
func (h *Handlers) AnalyzeStory(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	scenes, err := h.decomposer.Decompose(r.Context(), story.Request{
		Story:        req.Story,
		AspectRatio:  req.AspectRatio,
		SceneCount:   req.SceneCount,
		Duration:     req.Duration,
		CameraStyle:  req.CameraStyle,
		StyleControl: req.StyleControl,
	})
	if err != nil {
		h.logger.Error("story decomposition failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to analyze story", "ANALYZE_FAILED")
		return
	}

	resp := AnalyzeStoryResponse{Scenes: make([]SceneDTO, 0, len(scenes))}
	for _, s := range scenes {
		resp.TotalDuration += s.Duration
		resp.Scenes = append(resp.Scenes, SceneDTO{
			SceneNumber:  s.SceneNumber,
			Prompt:       s.Prompt,
			Duration:     s.Duration,
			CameraStyle:  s.CameraStyle,
			StyleControl: s.StyleControl,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Submit handles POST /api/sequence/submit requests.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	if req.Resolution == "" {
		req.Resolution = "720p"
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "16:9"
	}

	// Crossfade offsets are computed from a single segment duration, so
	// every scene in one composition must share it.
	if err := uniformDuration(req.Scenes); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	scenes := make([]story.Scene, 0, len(req.Scenes))
	for i, s := range req.Scenes {
		duration := s.Duration
		if duration == 0 {
			duration = 8
		}
		scenes = append(scenes, story.Scene{
			SceneNumber:    i + 1,
			Prompt:         s.Prompt,
			NegativePrompt: s.NegativePrompt,
			Duration:       duration,
			CameraStyle:    s.CameraStyle,
			StyleControl:   s.StyleControl,
		})
	}

	id, err := h.composer.StartComposition(r.Context(), scenes, req.Resolution, req.AspectRatio)
	if err != nil {
		h.logger.Error("failed to start composition",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to start composition", "SUBMIT_FAILED")
		return
	}

	h.logger.Info("composition submitted",
		slog.String("composition_id", id),
		slog.Int("scenes", len(scenes)),
	)

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		CompositionID: id,
		Status:        string(composer.StatusPending),
		TotalSegments: len(scenes),
	})
}

// Status handles GET /api/sequence/status/{id} requests.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "composition ID is required", "MISSING_COMPOSITION_ID")
		return
	}

	comp, err := h.composer.GetComposition(r.Context(), id)
	if err != nil {
		if errors.Is(err, composer.ErrCompositionNotFound) {
			writeError(w, http.StatusNotFound, "composition not found", "COMPOSITION_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get composition",
			slog.String("composition_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get composition", "STATUS_FAILED")
		return
	}

	segments := make([]SegmentDTO, 0, len(comp.Segments))
	for _, seg := range comp.Segments {
		segments = append(segments, SegmentDTO{
			SceneNumber: seg.SceneNumber,
			Status:      string(seg.Status),
			VideoID:     seg.VideoID,
			Error:       seg.Error,
		})
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		CompositionID:  comp.CompositionID,
		Status:         string(comp.Status),
		CurrentSegment: comp.CurrentSegment,
		TotalSegments:  comp.TotalSegments,
		Segments:       segments,
		FinalVideoID:   comp.FinalVideoID,
		FinalVideoURL:  comp.FinalVideoURL,
		Error:          comp.Error,
		CreatedAt:      comp.CreatedAt,
		CompletedAt:    comp.CompletedAt,
	})
}

// ListCompositions handles GET /api/sequence/compositions requests.
func (h *Handlers) ListCompositions(w http.ResponseWriter, r *http.Request) {
	compositions, err := h.composer.ListCompositions(r.Context())
	if err != nil {
		h.logger.Error("failed to list compositions",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list compositions", "LIST_FAILED")
		return
	}

	summaries := make([]CompositionSummary, 0, len(compositions))
	for _, comp := range compositions {
		summaries = append(summaries, CompositionSummary{
			CompositionID: comp.CompositionID,
			Status:        string(comp.Status),
			TotalSegments: comp.TotalSegments,
			CreatedAt:     comp.CreatedAt,
			CompletedAt:   comp.CompletedAt,
		})
	}

	writeJSON(w, http.StatusOK, summaries)
}

// ListVideos handles GET /api/videos requests.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	h.listVideos(w, r, false)
}

// Gallery handles GET /api/library requests, listing public videos only.
func (h *Handlers) Gallery(w http.ResponseWriter, r *http.Request) {
	h.listVideos(w, r, true)
}

func (h *Handlers) listVideos(w http.ResponseWriter, r *http.Request, onlyPublic bool) {
	videos, err := h.library.List(r.Context(), onlyPublic)
	if err != nil {
		h.logger.Error("failed to list videos",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list videos", "LIST_FAILED")
		return
	}

	resp := make([]VideoResponse, 0, len(videos))
	for _, v := range videos {
		resp = append(resp, VideoResponse{
			VideoID:     v.VideoID,
			Prompt:      v.Prompt,
			Resolution:  v.Resolution,
			Duration:    v.Duration,
			AspectRatio: v.AspectRatio,
			IsPublic:    v.IsPublic,
			CreatedAt:   v.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetVideo handles GET /api/videos/{id} requests, streaming the payload.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.library.Get(r.Context(), id); err != nil {
		if errors.Is(err, library.ErrVideoNotFound) {
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get video",
			slog.String("video_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get video", "VIDEO_FETCH_FAILED")
		return
	}

	path := h.library.Path(id)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "video payload missing", "VIDEO_NOT_FOUND")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

// DeleteVideo handles DELETE /api/videos/{id} requests.
func (h *Handlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.library.Delete(r.Context(), id); err != nil {
		if errors.Is(err, library.ErrVideoNotFound) {
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
			return
		}
		h.logger.Error("failed to delete video",
			slog.String("video_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete video", "VIDEO_DELETE_FAILED")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetVisibility handles PATCH /api/videos/{id}/visibility requests.
func (h *Handlers) SetVisibility(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req VisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.library.SetVisibility(r.Context(), id, req.IsPublic); err != nil {
		if errors.Is(err, library.ErrVideoNotFound) {
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
			return
		}
		h.logger.Error("failed to update visibility",
			slog.String("video_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update visibility", "VISIBILITY_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"video_id":  id,
		"is_public": req.IsPublic,
	})
}

// uniformDuration verifies that all scenes share one segment duration.
// An unset duration counts as the 8-second default.
func uniformDuration(scenes []SceneDTO) error {
	want := 0
	for _, s := range scenes {
		d := s.Duration
		if d == 0 {
			d = 8
		}
		if want == 0 {
			want = d
			continue
		}
		if d != want {
			return fmt.Errorf("all scenes must have the same duration, got both %d and %d", want, d)
		}
	}
	return nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
