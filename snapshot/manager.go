package snapshot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/searchcache/blobstore"
	"github.com/hupe1980/searchcache/store"
)

// ErrNoSnapshot is returned by LoadLatest when nothing has been committed.
var ErrNoSnapshot = errors.New("no snapshot committed")

const snapshotExt = ".snap"

// Committer atomically publishes snapshot versions.
//
// Commit must fail with blobstore.ErrConcurrentModification when version has
// already been committed. Latest returns blobstore.ErrNotFound when no
// version exists.
type Committer interface {
	Commit(ctx context.Context, version uint64, name string) error
	Latest(ctx context.Context) (uint64, string, error)
}

// BlobCommitter records the latest version in a CURRENT blob.
//
// It serializes commits within one process only; use a conditional committer
// such as s3.DDBCommitter when several processes share a bucket.
type BlobCommitter struct {
	store blobstore.BlobStore
	name  string
	mu    sync.Mutex
}

// NewBlobCommitter creates a committer writing prefix + "CURRENT".
func NewBlobCommitter(bs blobstore.BlobStore, prefix string) *BlobCommitter {
	return &BlobCommitter{store: bs, name: prefix + "CURRENT"}
}

// Commit publishes version if it is newer than the current one.
func (c *BlobCommitter) Commit(ctx context.Context, version uint64, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	latest, _, err := c.Latest(ctx)
	if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return err
	}
	if err == nil && version <= latest {
		return fmt.Errorf("%w: version %d already committed", blobstore.ErrConcurrentModification, version)
	}

	return c.store.Put(ctx, c.name, []byte(strconv.FormatUint(version, 10)+" "+name+"\n"))
}

// Latest returns the most recently committed version.
func (c *BlobCommitter) Latest(ctx context.Context) (uint64, string, error) {
	data, err := blobstore.ReadAll(ctx, c.store, c.name)
	if err != nil {
		return 0, "", err
	}

	v, name, ok := strings.Cut(strings.TrimSpace(string(data)), " ")
	if !ok {
		return 0, "", fmt.Errorf("%w: malformed %s", ErrInvalidSnapshot, c.name)
	}
	version, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: malformed %s: %w", ErrInvalidSnapshot, c.name, err)
	}
	return version, name, nil
}

// Manager writes versioned snapshots of a cache to a blob store.
type Manager[K comparable, V any] struct {
	store     blobstore.BlobStore
	committer Committer
	optFns    []func(*Options)
	opts      Options
}

// NewManager creates a snapshot manager on bs.
func NewManager[K comparable, V any](bs blobstore.BlobStore, optFns ...func(*Options)) (*Manager[K, V], error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	committer := opts.Committer
	if committer == nil {
		committer = NewBlobCommitter(bs, opts.Prefix)
	}

	return &Manager[K, V]{
		store:     bs,
		committer: committer,
		optFns:    optFns,
		opts:      opts,
	}, nil
}

func (m *Manager[K, V]) name(version uint64) string {
	return fmt.Sprintf("%s%020d%s", m.opts.Prefix, version, snapshotExt)
}

// Save writes entries as the next version and commits it.
//
// The snapshot blob is removed again when the commit fails. The snapshot is
// committed even when pruning old versions fails; that error is returned
// along with the new version.
func (m *Manager[K, V]) Save(ctx context.Context, entries []store.Entry[K, V]) (uint64, error) {
	latest, _, err := m.committer.Latest(ctx)
	if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return 0, fmt.Errorf("read latest version: %w", err)
	}
	version := latest + 1
	name := m.name(version)

	if _, err := Write(ctx, m.store, name, entries, m.optFns...); err != nil {
		return 0, err
	}

	if err := m.committer.Commit(ctx, version, name); err != nil {
		_ = m.store.Delete(ctx, name)
		return 0, fmt.Errorf("commit version %d: %w", version, err)
	}

	if err := m.prune(ctx, version); err != nil {
		return version, fmt.Errorf("prune snapshots: %w", err)
	}
	return version, nil
}

// LoadLatest reads the most recently committed snapshot.
func (m *Manager[K, V]) LoadLatest(ctx context.Context) ([]store.Entry[K, V], uint64, error) {
	version, name, err := m.committer.Latest(ctx)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, 0, ErrNoSnapshot
		}
		return nil, 0, err
	}

	entries, _, err := Read[K, V](ctx, m.store, name, m.optFns...)
	if err != nil {
		return nil, 0, err
	}
	return entries, version, nil
}

// Versions returns the versions present in the blob store, oldest first.
// Versions that were written but never committed are included.
func (m *Manager[K, V]) Versions(ctx context.Context) ([]uint64, error) {
	names, err := m.store.List(ctx, m.opts.Prefix)
	if err != nil {
		return nil, err
	}

	versions := make([]uint64, 0, len(names))
	for _, name := range names {
		base, ok := strings.CutSuffix(strings.TrimPrefix(name, m.opts.Prefix), snapshotExt)
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions, nil
}

func (m *Manager[K, V]) prune(ctx context.Context, current uint64) error {
	if m.opts.Retain <= 0 {
		return nil
	}

	versions, err := m.Versions(ctx)
	if err != nil {
		return err
	}

	var errs []error
	kept := 0
	for _, v := range slices.Backward(versions) {
		if v > current {
			continue
		}
		if kept < m.opts.Retain {
			kept++
			continue
		}
		if err := m.store.Delete(ctx, m.name(v)); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
