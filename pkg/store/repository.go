package store

import "context"

// Repository loads and saves request aggregates by id. Implementations return
// copies; mutating a loaded record never affects stored state until Save.
type Repository interface {
	// Create stores a new record at version 1.
	Create(ctx context.Context, rec *Record) error
	// Load returns the record or an error matching contracts.ErrNotFound.
	Load(ctx context.Context, id string) (*Record, error)
	// Save persists rec if the stored version equals rec.Version, then bumps
	// rec.Version. Otherwise it returns ErrConflict.
	Save(ctx context.Context, rec *Record) error
	// List returns records ordered by most recently updated.
	List(ctx context.Context, filter ListFilter) ([]*Record, error)
}
