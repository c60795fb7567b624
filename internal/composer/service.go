package composer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storyreel/storyreel/internal/generator"
	"github.com/storyreel/storyreel/internal/library"
	"github.com/storyreel/storyreel/internal/media"
	"github.com/storyreel/storyreel/internal/story"
)

// Defaults for the orchestration loop timings.
const (
	defaultPollInterval = 10 * time.Second
	defaultPollTimeout  = 600 * time.Second
	defaultMaxRetries   = 3
	defaultBackoffBase  = 5 * time.Second
	defaultBackoffCap   = 30 * time.Second
	defaultCrossfade    = 0.5
)

// Service orchestrates multi-segment compositions: sequential segment
// generation with last-frame seeding, polling with retry, and crossfade
// stitching. Each composition is driven by a single background task that
// owns its aggregate; readers only ever see persisted snapshots.
type Service struct {
	repo   Repository
	gen    generator.Generator
	proc   media.Processor
	lib    library.Library
	logger *slog.Logger

	uploader     library.Uploader
	pollInterval time.Duration
	pollTimeout  time.Duration
	maxRetries   int
	backoffBase  time.Duration
	backoffCap   time.Duration
	crossfade    float64

	wg sync.WaitGroup
}

// Option configures the Service.
type Option func(*Service)

// WithPollInterval sets the delay between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

// WithPollTimeout sets the per-attempt generation deadline.
func WithPollTimeout(d time.Duration) Option {
	return func(s *Service) { s.pollTimeout = d }
}

// WithMaxRetries sets how many retries follow the initial attempt of a segment.
func WithMaxRetries(n int) Option {
	return func(s *Service) { s.maxRetries = n }
}

// WithBackoff sets the exponential backoff base delay and its cap.
func WithBackoff(base, cap time.Duration) Option {
	return func(s *Service) {
		s.backoffBase = base
		s.backoffCap = cap
	}
}

// WithCrossfadeDuration sets the transition length in seconds used when stitching.
func WithCrossfadeDuration(seconds float64) Option {
	return func(s *Service) { s.crossfade = seconds }
}

// WithUploader mirrors the final stitched video to remote object storage.
func WithUploader(u library.Uploader) Option {
	return func(s *Service) { s.uploader = u }
}

// NewService creates a composition orchestration service.
func NewService(repo Repository, gen generator.Generator, proc media.Processor, lib library.Library, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		repo:         repo,
		gen:          gen,
		proc:         proc,
		lib:          lib,
		logger:       logger,
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
		maxRetries:   defaultMaxRetries,
		backoffBase:  defaultBackoffBase,
		backoffCap:   defaultBackoffCap,
		crossfade:    defaultCrossfade,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartComposition creates a composition for the given storyboard and
// launches its orchestration task. The returned ID can be polled
// immediately via GetComposition.
func (s *Service) StartComposition(ctx context.Context, scenes []story.Scene, resolution, aspectRatio string) (string, error) {
	comp := NewComposition(scenes, resolution, aspectRatio)

	if err := s.repo.Save(ctx, comp); err != nil {
		return "", fmt.Errorf("persisting new composition: %w", err)
	}

	s.logger.Info("composition accepted",
		slog.String("composition_id", comp.CompositionID),
		slog.Int("total_segments", comp.TotalSegments),
	)

	// The task outlives the submitting request.
	taskCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("composition task panicked",
					slog.String("composition_id", comp.CompositionID),
					slog.Any("panic", r),
				)
				comp.Fail(fmt.Sprintf("internal error: %v", r))
				s.persist(taskCtx, comp)
			}
		}()
		s.orchestrate(taskCtx, comp)
	}()

	return comp.CompositionID, nil
}

// GetComposition returns the latest persisted snapshot of a composition.
func (s *Service) GetComposition(ctx context.Context, id string) (*Composition, error) {
	return s.repo.FindByID(ctx, id)
}

// ListCompositions returns snapshots of all known compositions, newest first.
func (s *Service) ListCompositions(ctx context.Context) ([]*Composition, error) {
	return s.repo.List(ctx)
}

// RecoverInterrupted marks compositions left in a non-terminal state by a
// previous process as failed. Call once at startup, before serving.
func (s *Service) RecoverInterrupted(ctx context.Context) error {
	compositions, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing compositions for recovery: %w", err)
	}

	for _, comp := range compositions {
		if comp.Status.IsTerminal() {
			continue
		}
		comp.Fail("interrupted by restart")
		if err := s.repo.Save(ctx, comp); err != nil {
			return fmt.Errorf("marking composition %s interrupted: %w", comp.CompositionID, err)
		}
		s.logger.Warn("composition interrupted by restart",
			slog.String("composition_id", comp.CompositionID),
		)
	}
	return nil
}

// orchestrate runs the full lifecycle of one composition.
func (s *Service) orchestrate(ctx context.Context, comp *Composition) {
	logger := s.logger.With(slog.String("composition_id", comp.CompositionID))

	if err := comp.TransitionTo(StatusGenerating); err != nil {
		logger.Error("cannot start generation", slog.String("error", err.Error()))
		return
	}
	s.persist(ctx, comp)

	var seedFramePath string
	for idx := range comp.Scenes {
		comp.CurrentSegment = idx + 1
		comp.Segments[idx].Status = SegmentProcessing
		s.persist(ctx, comp)

		if err := s.generateSegment(ctx, comp, idx, seedFramePath); err != nil {
			logger.Error("segment generation failed permanently",
				slog.Int("segment", idx+1),
				slog.String("error", err.Error()),
			)
			comp.Fail(fmt.Sprintf("Segment %d failed: %s", idx+1, err.Error()))
			s.persist(ctx, comp)
			return
		}

		seedFramePath = s.extractSeedFrame(ctx, comp, idx, logger)
	}

	s.stitch(ctx, comp, logger)
}

// generateSegment runs the submit/poll/download cycle for one segment,
// retrying retryable failures with exponential backoff. On success the
// segment record holds the stored video ID.
func (s *Service) generateSegment(ctx context.Context, comp *Composition, idx int, seedFramePath string) error {
	scene := comp.Scenes[idx]
	opts := generator.SubmitOptions{
		Prompt:          scene.Prompt,
		NegativePrompt:  scene.NegativePrompt,
		SeedImagePath:   seedFramePath,
		Resolution:      comp.Resolution,
		DurationSeconds: scene.Duration,
		AspectRatio:     comp.AspectRatio,
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt, s.backoffBase, s.backoffCap)
			s.logger.Info("retrying segment",
				slog.String("composition_id", comp.CompositionID),
				slog.Int("segment", idx+1),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", delay),
			)
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
			comp.Segments[idx].Status = SegmentProcessing
			comp.Segments[idx].Error = ""
			s.persist(ctx, comp)
		}

		videoID, err := s.runSegmentAttempt(ctx, comp, idx, opts)
		if err == nil {
			comp.Segments[idx].VideoID = videoID
			comp.Segments[idx].Status = SegmentCompleted
			comp.Segments[idx].Error = ""
			s.persist(ctx, comp)
			return nil
		}

		lastErr = err
		comp.Segments[idx].Status = SegmentFailed
		comp.Segments[idx].Error = err.Error()
		s.persist(ctx, comp)

		if !IsRetryable(err.Error()) {
			return err
		}
		if attempt == s.maxRetries {
			return fmt.Errorf("%w (failed after %d retry attempts)", lastErr, s.maxRetries)
		}
	}
}

// runSegmentAttempt performs a single submit/poll/download cycle and
// stores the result in the video library.
func (s *Service) runSegmentAttempt(ctx context.Context, comp *Composition, idx int, opts generator.SubmitOptions) (string, error) {
	operationID, err := s.gen.Submit(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("submitting generation: %w", err)
	}

	comp.Segments[idx].OperationID = operationID
	s.persist(ctx, comp)

	result, err := s.awaitOperation(ctx, operationID)
	if err != nil {
		return "", err
	}

	destPath := filepath.Join(s.repo.Dir(comp.CompositionID), fmt.Sprintf("segment_%d.mp4", idx+1))
	if err := s.gen.Download(ctx, result.OutputURL, destPath); err != nil {
		return "", fmt.Errorf("downloading segment video: %w", err)
	}
	defer os.Remove(destPath)

	f, err := os.Open(destPath)
	if err != nil {
		return "", fmt.Errorf("opening downloaded segment: %w", err)
	}
	defer f.Close()

	scene := comp.Scenes[idx]
	videoID, err := s.lib.Save(ctx, f, library.Metadata{
		Prompt:         scene.Prompt,
		NegativePrompt: scene.NegativePrompt,
		Resolution:     comp.Resolution,
		Duration:       scene.Duration,
		AspectRatio:    comp.AspectRatio,
		HasImage:       opts.SeedImagePath != "",
	})
	if err != nil {
		return "", fmt.Errorf("storing segment video: %w", err)
	}
	return videoID, nil
}

// awaitOperation polls the generation job until it reaches a terminal
// state or the poll timeout elapses.
func (s *Service) awaitOperation(ctx context.Context, operationID string) (generator.PollResult, error) {
	deadline := time.Now().Add(s.pollTimeout)
	for {
		result, err := s.gen.Poll(ctx, operationID)
		if err != nil {
			return generator.PollResult{}, fmt.Errorf("polling generation: %w", err)
		}
		if result.Done {
			if result.Error != "" {
				return generator.PollResult{}, fmt.Errorf("video generation failed: %s", result.Error)
			}
			if result.OutputURL == "" {
				return generator.PollResult{}, fmt.Errorf("video generation finished without output")
			}
			return result, nil
		}
		if time.Now().After(deadline) {
			return generator.PollResult{}, fmt.Errorf("video generation timed out after %s", s.pollTimeout)
		}
		if err := sleepCtx(ctx, s.pollInterval); err != nil {
			return generator.PollResult{}, err
		}
	}
}

// extractSeedFrame pulls the last frame of the completed segment to seed
// the next one. Extraction failure downgrades the next segment to
// unconditioned generation instead of failing the composition.
func (s *Service) extractSeedFrame(ctx context.Context, comp *Composition, idx int, logger *slog.Logger) string {
	if idx == len(comp.Scenes)-1 {
		return ""
	}

	videoPath := s.lib.Path(comp.Segments[idx].VideoID)
	framePath := filepath.Join(s.repo.Dir(comp.CompositionID), fmt.Sprintf("frame_%d.jpg", idx+1))
	if err := s.proc.ExtractLastFrame(ctx, videoPath, framePath); err != nil {
		logger.Warn("last-frame extraction failed, next segment runs unconditioned",
			slog.Int("segment", idx+1),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return framePath
}

// stitch joins all completed segments into the final video with
// crossfade transitions and records the result on the composition.
func (s *Service) stitch(ctx context.Context, comp *Composition, logger *slog.Logger) {
	if err := comp.TransitionTo(StatusStitching); err != nil {
		logger.Error("cannot start stitching", slog.String("error", err.Error()))
		return
	}
	s.persist(ctx, comp)

	inputs := make([]string, 0, len(comp.Segments))
	for _, seg := range comp.Segments {
		path := s.lib.Path(seg.VideoID)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		inputs = append(inputs, path)
	}
	if len(inputs) != comp.TotalSegments {
		comp.Fail(fmt.Sprintf("Stitching failed: only %d/%d segment videos found", len(inputs), comp.TotalSegments))
		s.persist(ctx, comp)
		return
	}

	finalID := uuid.NewString()
	finalPath := filepath.Join(s.repo.Dir(comp.CompositionID), fmt.Sprintf("final_%s.mp4", finalID))
	err := s.proc.Stitch(ctx, inputs, finalPath, media.StitchOptions{
		SegmentDuration:   float64(comp.Scenes[0].Duration),
		CrossfadeDuration: s.crossfade,
	})
	if err != nil {
		comp.Fail(fmt.Sprintf("Stitching failed: %s", err.Error()))
		s.persist(ctx, comp)
		return
	}

	comp.FinalVideoID = finalID
	comp.FinalVideoPath = finalPath
	comp.FinalVideoURL = s.uploadFinal(ctx, finalID, finalPath, logger)

	if err := comp.TransitionTo(StatusCompleted); err != nil {
		logger.Error("cannot complete composition", slog.String("error", err.Error()))
		return
	}
	s.persist(ctx, comp)

	logger.Info("composition completed",
		slog.Int("segments", comp.TotalSegments),
		slog.String("final_video_id", finalID),
	)
}

// uploadFinal mirrors the stitched video to remote storage when an
// uploader is configured. Upload failure keeps the local result.
func (s *Service) uploadFinal(ctx context.Context, finalID, finalPath string, logger *slog.Logger) string {
	if s.uploader == nil {
		return ""
	}

	f, err := os.Open(finalPath)
	if err != nil {
		logger.Warn("cannot open final video for upload", slog.String("error", err.Error()))
		return ""
	}
	defer f.Close()

	url, err := s.uploader.Upload(ctx, fmt.Sprintf("compositions/%s.mp4", finalID), f)
	if err != nil {
		logger.Warn("final video upload failed, keeping local copy only",
			slog.String("error", err.Error()),
		)
		return ""
	}
	return url
}

// persist writes the current snapshot, logging instead of failing the
// task: the in-flight composition keeps going on a transient disk error
// and the next transition retries the write.
func (s *Service) persist(ctx context.Context, comp *Composition) {
	if err := s.repo.Save(ctx, comp); err != nil {
		s.logger.Error("persisting composition snapshot failed",
			slog.String("composition_id", comp.CompositionID),
			slog.String("error", err.Error()),
		)
	}
}

// Wait blocks until all in-flight composition tasks finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
