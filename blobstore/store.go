package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
)

var (
	// ErrNotFound is returned when a blob does not exist.
	//
	// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
	// The default maps to `os.ErrNotExist`.
	ErrNotFound = os.ErrNotExist

	// ErrConcurrentModification is returned when a conditional commit loses
	// against a concurrent writer.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// BlobStore persists named, immutable blobs. Snapshots and their commit
// pointers are stored through it.
//
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Put writes a blob atomically, replacing an existing blob of the same name.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the sorted names of all blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ReadAll opens name and reads it completely.
func ReadAll(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	r, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

func hasPrefix(name, prefix string) bool {
	return prefix == "" || strings.HasPrefix(name, prefix)
}
