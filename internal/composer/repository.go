package composer

import (
	"context"
	"errors"
)

// ErrCompositionNotFound is returned when a composition does not exist.
var ErrCompositionNotFound = errors.New("composition not found")

// Repository persists composition snapshots. Save must replace the full
// snapshot atomically so that concurrent readers never observe a torn
// state.
type Repository interface {
	// Save persists the full composition snapshot.
	Save(ctx context.Context, comp *Composition) error
	// FindByID retrieves a composition snapshot by ID.
	// Returns ErrCompositionNotFound if it does not exist.
	FindByID(ctx context.Context, id string) (*Composition, error)
	// List returns snapshots of all known compositions, newest first.
	List(ctx context.Context) ([]*Composition, error)
	// Dir returns the composition's working directory, used for extracted
	// frames and the stitched output.
	Dir(id string) string
}
