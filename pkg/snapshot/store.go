package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/vango-dev/nodesync/pkg/state"
)

// Store errors.
var (
	// ErrNotFound is returned by Load when no snapshot exists for the id.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrStoreClosed is returned when a closed store is used.
	ErrStoreClosed = errors.New("snapshot: store is closed")
)

// Store persists encoded snapshots by id.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save writes data under id, replacing any previous snapshot.
	Save(ctx context.Context, id string, data []byte) error

	// Load returns the snapshot for id or ErrNotFound.
	Load(ctx context.Context, id string) ([]byte, error)

	// Delete removes the snapshot for id. Missing ids are not an error.
	Delete(ctx context.Context, id string) error

	// Close releases resources held by the store.
	Close() error
}

// SaveTree captures tree and saves it under id.
func SaveTree(ctx context.Context, store Store, id string, tree *state.Tree) error {
	doc, err := Capture(tree)
	if err != nil {
		return err
	}
	data, err := Marshal(doc)
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	return store.Save(ctx, id, data)
}

// LoadTree loads the snapshot saved under id and restores it.
func LoadTree(ctx context.Context, store Store, id string) (*state.Tree, error) {
	data, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return Restore(doc)
}
