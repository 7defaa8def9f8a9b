package blobstore

import (
	"context"
	"os"
	"strings"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for whole-blob object storage.
type Store interface {
	// Get returns the full contents of a blob.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put writes a blob atomically, replacing any previous contents.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of all blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Join joins blob name elements with "/", skipping empty elements.
func Join(elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		e = strings.Trim(e, "/")
		if e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "/")
}
