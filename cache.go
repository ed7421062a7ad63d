package searchcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/searchcache/attribute"
	"github.com/hupe1980/searchcache/blobstore"
	"github.com/hupe1980/searchcache/query"
	"github.com/hupe1980/searchcache/resource"
	"github.com/hupe1980/searchcache/snapshot"
	"github.com/hupe1980/searchcache/store"
)

// Cache is an in-memory key/value cache whose entries can be queried by
// registered search attributes.
//
// All methods are safe for concurrent use. Queries run against a snapshot of
// the cache, so concurrent writes never change the result of a running query.
type Cache[K comparable, V any] struct {
	name     string
	opts     options
	logger   *Logger
	metrics  MetricsCollector
	registry *attribute.Registry[K, V]
	indexes  []store.Index[K, V]
	rc       *resource.Controller

	mu     sync.RWMutex // guards store replacement
	store  *store.Store[K, V]
	closed atomic.Bool
}

// New creates an empty cache.
func New[K comparable, V any](name string, optFns ...Option) (*Cache[K, V], error) {
	o := applyOptions(optFns)

	reg := attribute.NewRegistry[K, V]()
	for _, defs := range o.searchAttributes {
		typed, ok := defs.([]attribute.Definition[K, V])
		if !ok {
			return nil, fmt.Errorf("searchcache: search attributes of type %T do not match the cache types", defs)
		}
		if err := reg.Register(typed...); err != nil {
			return nil, translateError(err)
		}
	}

	indexes := make([]store.Index[K, V], 0, len(o.indexedAttributes))
	for _, attr := range o.indexedAttributes {
		ex, err := reg.Resolve(attr)
		if err != nil {
			return nil, translateError(err)
		}
		indexes = append(indexes, store.Index[K, V]{
			Name: attr,
			Extract: func(key K, value V) (attribute.Value, error) {
				return ex.AttributeFor(key, value, attr)
			},
		})
	}

	s, err := store.New(indexes...)
	if err != nil {
		return nil, err
	}

	return &Cache[K, V]{
		name:     name,
		opts:     o,
		logger:   o.logger.WithCache(name),
		metrics:  o.metricsCollector,
		registry: reg,
		indexes:  indexes,
		rc:       resource.NewController(o.resourceConfig),
		store:    s,
	}, nil
}

// Name returns the cache name.
func (c *Cache[K, V]) Name() string { return c.name }

// Put stores value under key, replacing any previous value.
//
// When an indexed attribute cannot be extracted the cache is left unchanged
// and an error matching ErrAttributeExtraction is returned.
func (c *Cache[K, V]) Put(key K, value V) error {
	if c.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	c.mu.RLock()
	err := translateError(c.store.Put(key, value))
	c.mu.RUnlock()

	c.metrics.RecordPut(time.Since(start), err)
	c.logger.LogPut(context.Background(), key, err)
	return err
}

// Get returns the value stored under key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.store.Get(key)
}

// Remove deletes key. It reports whether the key was present.
// Remove on a closed cache does nothing and returns false.
func (c *Cache[K, V]) Remove(key K) bool {
	if c.closed.Load() {
		return false
	}

	start := time.Now()
	c.mu.RLock()
	found := c.store.Remove(key)
	c.mu.RUnlock()

	c.metrics.RecordRemove(time.Since(start), found)
	return found
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.store.Len()
}

// Clear removes all entries. Clear on a closed cache does nothing.
func (c *Cache[K, V]) Clear() {
	if c.closed.Load() {
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	c.store.Clear()
}

// Snapshot returns an immutable point-in-time view of the cache.
func (c *Cache[K, V]) Snapshot() *store.Snapshot[K, V] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.store.Snapshot()
}

// AddSearchAttribute registers additional search attributes.
// Registration is all-or-nothing; a name that is already registered fails
// with ErrDuplicateAttribute.
func (c *Cache[K, V]) AddSearchAttribute(defs ...attribute.Definition[K, V]) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return translateError(c.registry.Register(defs...))
}

// SearchAttributes returns the registered attribute names in registration order.
func (c *Cache[K, V]) SearchAttributes() []string {
	return c.registry.Names()
}

// CreateQuery starts a new query against the cache.
func (c *Cache[K, V]) CreateQuery() *QueryBuilder[K, V] {
	return &QueryBuilder[K, V]{cache: c, b: query.NewBuilder()}
}

// Execute runs a prebuilt query.
//
// The query is admitted by the resource controller, evaluated against a
// snapshot of the cache and either returns a complete result or an error;
// partial results are never returned.
func (c *Cache[K, V]) Execute(ctx context.Context, spec *query.Spec) (*query.ResultSet, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	if err := c.rc.AcquireQuery(ctx); err != nil {
		err = translateError(err)
		c.metrics.RecordQuery(0, 0, err)
		return nil, err
	}
	defer c.rc.ReleaseQuery()

	start := time.Now()
	rs, err := query.Execute[K, V](ctx, spec, c.Snapshot(), c.registry,
		query.WithParallelism(c.opts.parallelism),
		query.WithSkipExtractionErrors(c.opts.skipExtractionErrors),
		query.WithLogger(c.logger.Logger),
	)
	elapsed := time.Since(start)
	err = translateError(err)

	var attrs []string
	if spec != nil {
		attrs = spec.Attributes()
	}

	rows := 0
	if rs != nil {
		rows = rs.Len()
		if diags := rs.Diagnostics(); len(diags) > 0 {
			c.metrics.RecordSkippedRecords(len(diags))
			for _, d := range diags {
				c.logger.LogSkippedRecord(ctx, d)
			}
		}
	}

	c.metrics.RecordQuery(rows, elapsed, err)
	c.logger.LogQuery(ctx, attrs, rows, elapsed, err)

	if err != nil {
		return nil, err
	}
	return rs, nil
}

// NewSnapshotManager creates a snapshot manager on bs using the cache's
// codec, compression and IO limit.
func (c *Cache[K, V]) NewSnapshotManager(bs blobstore.BlobStore, optFns ...func(*snapshot.Options)) (*snapshot.Manager[K, V], error) {
	fns := append([]func(*snapshot.Options){
		snapshot.WithCodec(c.opts.codec),
		snapshot.WithCompression(c.opts.compression),
		snapshot.WithResourceController(c.rc),
	}, optFns...)
	return snapshot.NewManager[K, V](bs, fns...)
}

// SaveSnapshot writes the current contents as a new snapshot version.
func (c *Cache[K, V]) SaveSnapshot(ctx context.Context, m *snapshot.Manager[K, V]) (uint64, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}

	start := time.Now()
	entries := c.Snapshot().Entries()
	version, err := m.Save(ctx, entries)

	c.metrics.RecordSnapshot(len(entries), time.Since(start), err)
	c.logger.LogSnapshot(ctx, "save", version, len(entries), err)
	return version, err
}

// LoadSnapshot replaces the contents of the cache with the latest committed
// snapshot. The cache is unchanged when loading fails.
func (c *Cache[K, V]) LoadSnapshot(ctx context.Context, m *snapshot.Manager[K, V]) (uint64, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}

	start := time.Now()
	version, n, err := c.loadSnapshot(ctx, m)

	c.metrics.RecordSnapshot(n, time.Since(start), err)
	c.logger.LogSnapshot(ctx, "load", version, n, err)
	return version, err
}

func (c *Cache[K, V]) loadSnapshot(ctx context.Context, m *snapshot.Manager[K, V]) (uint64, int, error) {
	entries, version, err := m.LoadLatest(ctx)
	if err != nil {
		return 0, 0, err
	}

	// Writes wait until the replacement is complete.
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := store.New(c.indexes...)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		if err := s.Put(e.Key, e.Value); err != nil {
			return 0, 0, translateError(err)
		}
	}
	c.store = s
	return version, len(entries), nil
}

// Close marks the cache closed. Put, queries and snapshots fail with
// ErrClosed afterwards, Remove and Clear do nothing, and reads keep working
// on the last contents.
func (c *Cache[K, V]) Close() error {
	if c == nil {
		return nil
	}
	if c.closed.Swap(true) {
		return ErrClosed
	}
	return nil
}
