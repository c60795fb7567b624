// Package bootstrap provides dependency initialization for the StoryReel API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storyreel/storyreel/internal/composer"
	"github.com/storyreel/storyreel/internal/config"
	"github.com/storyreel/storyreel/internal/genai"
	"github.com/storyreel/storyreel/internal/generator"
	"github.com/storyreel/storyreel/internal/library"
	"github.com/storyreel/storyreel/internal/media"
	"github.com/storyreel/storyreel/internal/story"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Decomposer *story.Decomposer
	Composer   *composer.Service
	Library    library.Library
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize the video library
	lib, uploader, err := initLibrary(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize the Gemini client shared by video and text generation
	client, err := genai.NewClient(cfg.VideoModel, cfg.TextModel, genai.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	// Initialize media processing and the composition repository
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath)
	repo, err := composer.NewFileRepository(cfg.CompositionsPath)
	if err != nil {
		return nil, fmt.Errorf("create composition repository: %w", err)
	}

	composerOpts := []composer.Option{}
	if uploader != nil {
		composerOpts = append(composerOpts, composer.WithUploader(uploader))
	}

	svc := composer.NewService(
		repo,
		generator.NewVeoAdapter(client),
		processor,
		lib,
		logger,
		composerOpts...,
	)

	// Compositions left non-terminal by a previous process cannot resume.
	if err := svc.RecoverInterrupted(context.Background()); err != nil {
		return nil, fmt.Errorf("recover interrupted compositions: %w", err)
	}

	return &Dependencies{
		Decomposer: story.NewDecomposer(client, logger),
		Composer:   svc,
		Library:    lib,
	}, nil
}

// initLibrary creates the appropriate library backend based on configuration.
func initLibrary(cfg *config.Config, logger *slog.Logger) (library.Library, library.Uploader, error) {
	if cfg.S3Enabled() {
		s3Cfg := library.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Lib, err := library.NewS3Library(cfg.VideoStoragePath, s3Cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create S3 library: %w", err)
		}
		logger.Info("S3 library configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Lib, s3Lib, nil
	}

	localLib, err := library.NewLocalLibrary(cfg.VideoStoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("create local library: %w", err)
	}
	logger.Info("local library configured",
		slog.String("video_storage_path", cfg.VideoStoragePath),
	)
	return localLib, nil, nil
}
