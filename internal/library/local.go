package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Compile-time check that LocalLibrary implements Library.
var _ Library = (*LocalLibrary)(nil)

// LocalLibrary stores video artifacts on local disk. Each video is a
// {id}.mp4 payload with an {id}.json sidecar next to it.
type LocalLibrary struct {
	dir string
}

// NewLocalLibrary creates a LocalLibrary rooted at dir.
// The directory is created if it doesn't exist.
func NewLocalLibrary(dir string) (*LocalLibrary, error) {
	if dir == "" {
		dir = "./videos"
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create video directory: %w", err)
	}

	return &LocalLibrary{dir: dir}, nil
}

// Dir returns the library root directory.
func (l *LocalLibrary) Dir() string {
	return l.dir
}

// Save stores the video payload and writes the metadata sidecar.
func (l *LocalLibrary) Save(ctx context.Context, data io.Reader, meta Metadata) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if meta.VideoID == "" {
		meta.VideoID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	meta.Filename = meta.VideoID + ".mp4"

	videoPath := l.Path(meta.VideoID)
	f, err := os.Create(videoPath) // #nosec G304 - path is derived from a generated ID
	if err != nil {
		return "", fmt.Errorf("create video file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(videoPath)
		return "", fmt.Errorf("write video file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(videoPath)
		return "", fmt.Errorf("close video file: %w", err)
	}

	if err := l.writeMetadata(meta); err != nil {
		_ = os.Remove(videoPath)
		return "", err
	}

	return meta.VideoID, nil
}

// Get returns the metadata for a stored video.
func (l *LocalLibrary) Get(_ context.Context, videoID string) (Metadata, error) {
	return l.readMetadata(videoID)
}

// Path returns the payload path for a video ID.
func (l *LocalLibrary) Path(videoID string) string {
	return filepath.Join(l.dir, videoID+".mp4")
}

// Delete removes the payload and the metadata sidecar.
func (l *LocalLibrary) Delete(_ context.Context, videoID string) error {
	videoPath := l.Path(videoID)
	metaPath := l.metadataPath(videoID)

	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		if _, err := os.Stat(metaPath); os.IsNotExist(err) {
			return ErrVideoNotFound
		}
	}

	var firstErr error
	for _, p := range []string{videoPath, metaPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// SetVisibility updates the is_public flag in the metadata sidecar.
func (l *LocalLibrary) SetVisibility(_ context.Context, videoID string, isPublic bool) error {
	meta, err := l.readMetadata(videoID)
	if err != nil {
		return err
	}
	meta.IsPublic = isPublic
	return l.writeMetadata(meta)
}

// List returns stored video metadata, newest first.
func (l *LocalLibrary) List(_ context.Context, onlyPublic bool) ([]Metadata, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read video directory: %w", err)
	}

	result := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		meta, err := l.readMetadata(id)
		if err != nil {
			// Skip unreadable sidecars rather than failing the listing.
			continue
		}
		if onlyPublic && !meta.IsPublic {
			continue
		}
		result = append(result, meta)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (l *LocalLibrary) metadataPath(videoID string) string {
	return filepath.Join(l.dir, videoID+".json")
}

func (l *LocalLibrary) readMetadata(videoID string) (Metadata, error) {
	data, err := os.ReadFile(l.metadataPath(videoID)) // #nosec G304 - path is derived from a generated ID
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, ErrVideoNotFound
		}
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}

func (l *LocalLibrary) writeMetadata(meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(l.metadataPath(meta.VideoID), data, 0600); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
