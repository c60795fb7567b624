package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const metadataFilename = "metadata.json"

// Compile-time check that FileRepository implements Repository.
var _ Repository = (*FileRepository)(nil)

// FileRepository persists each composition as a metadata.json snapshot in
// its own directory under the root, with a write-through in-memory cache.
// Snapshots are written via temp file plus rename so readers never see a
// partially written file. The directory doubles as the composition's
// working area for extracted frames and the stitched output.
type FileRepository struct {
	root  string
	mu    sync.RWMutex
	cache map[string]*Composition
}

// NewFileRepository creates a repository rooted at dir, creating it if needed.
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating compositions directory: %w", err)
	}
	return &FileRepository{
		root:  dir,
		cache: make(map[string]*Composition),
	}, nil
}

// Dir returns the working directory for a composition.
func (r *FileRepository) Dir(id string) string {
	return filepath.Join(r.root, id)
}

// Save writes the full snapshot to disk atomically and refreshes the cache.
func (r *FileRepository) Save(_ context.Context, comp *Composition) error {
	snapshot := comp.Clone()

	dir := r.Dir(snapshot.CompositionID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating composition directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling composition: %w", err)
	}

	target := filepath.Join(dir, metadataFilename)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing composition snapshot: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("committing composition snapshot: %w", err)
	}

	r.mu.Lock()
	r.cache[snapshot.CompositionID] = snapshot
	r.mu.Unlock()

	return nil
}

// FindByID returns a snapshot from the cache, falling back to disk for
// compositions persisted by a previous process.
func (r *FileRepository) FindByID(_ context.Context, id string) (*Composition, error) {
	r.mu.RLock()
	comp, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return comp.Clone(), nil
	}

	comp, err := r.load(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = comp
	r.mu.Unlock()

	return comp.Clone(), nil
}

// List scans the root directory for composition snapshots, newest first.
// Unreadable entries are skipped.
func (r *FileRepository) List(_ context.Context) ([]*Composition, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("reading compositions directory: %w", err)
	}

	compositions := make([]*Composition, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		comp, err := r.load(entry.Name())
		if err != nil {
			continue
		}
		compositions = append(compositions, comp)
	}

	sort.Slice(compositions, func(i, j int) bool {
		return compositions[i].CreatedAt.After(compositions[j].CreatedAt)
	})

	return compositions, nil
}

func (r *FileRepository) load(id string) (*Composition, error) {
	data, err := os.ReadFile(filepath.Join(r.Dir(id), metadataFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCompositionNotFound
		}
		return nil, fmt.Errorf("reading composition snapshot: %w", err)
	}

	var comp Composition
	if err := json.Unmarshal(data, &comp); err != nil {
		return nil, fmt.Errorf("decoding composition snapshot: %w", err)
	}
	return &comp, nil
}
