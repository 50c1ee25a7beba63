package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a blob does not exist.
	ErrNotFound = errors.New("blobstore: blob not found")

	// ErrInvalidName is returned for names that are empty, absolute or
	// escape the store.
	ErrInvalidName = errors.New("blobstore: invalid blob name")
)

// Store is a flat namespace of immutable blobs.
type Store interface {
	// Put writes data under name, replacing any previous blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Get returns a copy of the blob.
	Get(ctx context.Context, name string) ([]byte, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the names starting with prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ValidateName rejects names that cannot be stored portably. Names use '/'
// as separator and may not contain empty, "." or ".." segments.
func ValidateName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.ContainsRune(name, '\\') {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}
