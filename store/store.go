// Package store provides the in-memory record store backing a cache.
//
// Entries keep the order in which their keys were first inserted. Readers
// obtain an immutable Snapshot for the duration of a scan, so queries never
// observe concurrent writes.
package store

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/searchcache/attribute"
)

// compactMinRows is the minimum number of rows before tombstones are compacted.
const compactMinRows = 64

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("not found")

// IndexFunc derives the indexed attribute value of an entry.
type IndexFunc[K comparable, V any] func(key K, value V) (attribute.Value, error)

// Index declares an attribute whose values are kept in an inverted index.
type Index[K comparable, V any] struct {
	Name    string
	Extract IndexFunc[K, V]
}

type slot[K comparable, V any] struct {
	key   K
	value V
	live  bool
}

type index[K comparable, V any] struct {
	name    string
	extract IndexFunc[K, V]
	// valueKey -> rows holding that value
	postings map[string]*roaring.Bitmap
	// row -> valueKey, aligned with Store.slots
	rowKeys []string
	// shared is set when a snapshot references postings and its bitmaps.
	// Writers copy the map and clone a bitmap before the first mutation.
	shared atomic.Bool
	// bitmaps created or cloned since the last snapshot
	owned map[string]struct{}
}

// Store is an insertion-ordered in-memory record store.
// It is safe for concurrent use.
type Store[K comparable, V any] struct {
	mu      sync.RWMutex
	slots   []slot[K, V]
	pos     map[K]uint32
	live    int
	indexes []*index[K, V]
}

// New creates an empty store maintaining the given indexes.
func New[K comparable, V any](indexes ...Index[K, V]) (*Store[K, V], error) {
	s := &Store[K, V]{pos: make(map[K]uint32)}

	seen := make(map[string]struct{}, len(indexes))
	for _, ix := range indexes {
		if ix.Name == "" || ix.Extract == nil {
			return nil, fmt.Errorf("store: index requires a name and an extract function")
		}
		if _, ok := seen[ix.Name]; ok {
			return nil, fmt.Errorf("store: duplicate index %q", ix.Name)
		}
		seen[ix.Name] = struct{}{}
		s.indexes = append(s.indexes, &index[K, V]{
			name:     ix.Name,
			extract:  ix.Extract,
			postings: make(map[string]*roaring.Bitmap),
			owned:    make(map[string]struct{}),
		})
	}
	return s, nil
}

// Put stores value under key.
//
// A new key is appended to the iteration order; an existing key keeps its
// position and has its value replaced. If an indexed attribute cannot be
// extracted the store is left unchanged and an *attribute.AttributeExtractionError
// is returned.
func (s *Store[K, V]) Put(key K, value V) error {
	valueKeys := make([]string, len(s.indexes))
	for i, ix := range s.indexes {
		v, err := ix.extract(key, value)
		if err != nil {
			return attribute.NewExtractionError(ix.name, key, err)
		}
		valueKeys[i] = v.Key()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.pos[key]; ok {
		s.slots[row].value = value
		for i, ix := range s.indexes {
			ix.unindexLocked(row)
			ix.indexLocked(row, valueKeys[i])
		}
		return nil
	}

	row := uint32(len(s.slots))
	s.slots = append(s.slots, slot[K, V]{key: key, value: value, live: true})
	s.pos[key] = row
	s.live++
	for i, ix := range s.indexes {
		ix.rowKeys = append(ix.rowKeys, "")
		ix.indexLocked(row, valueKeys[i])
	}
	return nil
}

// Get returns the value stored under key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.pos[key]
	if !ok {
		var zero V
		return zero, false
	}
	return s.slots[row].value, true
}

// Remove deletes key. It reports whether the key was present.
func (s *Store[K, V]) Remove(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.pos[key]
	if !ok {
		return false
	}

	for _, ix := range s.indexes {
		ix.unindexLocked(row)
	}
	s.slots[row] = slot[K, V]{}
	delete(s.pos, key)
	s.live--

	if len(s.slots) >= compactMinRows && s.live < len(s.slots)/2 {
		s.compactLocked()
	}
	return true
}

// Len returns the number of live entries.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.live
}

// Clear removes all entries.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots = nil
	s.pos = make(map[K]uint32)
	s.live = 0
	for _, ix := range s.indexes {
		ix.postings = make(map[string]*roaring.Bitmap)
		ix.owned = make(map[string]struct{})
		ix.shared.Store(false)
		ix.rowKeys = nil
	}
}

// Snapshot returns an immutable point-in-time view of the store.
//
// Posting bitmaps are shared with the store and copied on the next write.
func (s *Store[K, V]) Snapshot() *Snapshot[K, V] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]slot[K, V], len(s.slots))
	copy(rows, s.slots)

	var postings map[string]map[string]*roaring.Bitmap
	if len(s.indexes) > 0 {
		postings = make(map[string]map[string]*roaring.Bitmap, len(s.indexes))
		for _, ix := range s.indexes {
			ix.shared.Store(true)
			postings[ix.name] = ix.postings
		}
	}

	return &Snapshot[K, V]{rows: rows, live: s.live, postings: postings}
}

// compactLocked drops tombstones while preserving the order of live entries.
// Caller must hold s.mu.Lock().
func (s *Store[K, V]) compactLocked() {
	slots := make([]slot[K, V], 0, s.live)
	remap := make([]int64, len(s.slots))
	for row, sl := range s.slots {
		if !sl.live {
			remap[row] = -1
			continue
		}
		remap[row] = int64(len(slots))
		s.pos[sl.key] = uint32(len(slots))
		slots = append(slots, sl)
	}
	s.slots = slots

	for _, ix := range s.indexes {
		rowKeys := make([]string, 0, s.live)
		postings := make(map[string]*roaring.Bitmap, len(ix.postings))
		for row, vk := range ix.rowKeys {
			if remap[row] < 0 {
				continue
			}
			rowKeys = append(rowKeys, vk)
			bm, ok := postings[vk]
			if !ok {
				bm = roaring.New()
				postings[vk] = bm
			}
			bm.Add(uint32(remap[row]))
		}
		ix.rowKeys = rowKeys
		ix.postings = postings
		ix.owned = make(map[string]struct{}, len(postings))
		for vk := range postings {
			ix.owned[vk] = struct{}{}
		}
		ix.shared.Store(false)
	}
}

// detachLocked gives the index a private postings map once a snapshot has
// taken the current one.
func (ix *index[K, V]) detachLocked() {
	if ix.shared.Swap(false) {
		ix.postings = maps.Clone(ix.postings)
		ix.owned = make(map[string]struct{})
	}
}

// writableLocked returns the bitmap for valueKey, cloning it if a snapshot
// may still reference it.
func (ix *index[K, V]) writableLocked(valueKey string) (*roaring.Bitmap, bool) {
	ix.detachLocked()
	bm, ok := ix.postings[valueKey]
	if !ok {
		return nil, false
	}
	if _, mine := ix.owned[valueKey]; !mine {
		bm = bm.Clone()
		ix.postings[valueKey] = bm
		ix.owned[valueKey] = struct{}{}
	}
	return bm, true
}

// indexLocked adds row under valueKey.
func (ix *index[K, V]) indexLocked(row uint32, valueKey string) {
	bm, ok := ix.writableLocked(valueKey)
	if !ok {
		bm = roaring.New()
		ix.postings[valueKey] = bm
		ix.owned[valueKey] = struct{}{}
	}
	bm.Add(row)
	ix.rowKeys[row] = valueKey
}

// unindexLocked removes row from its current posting list.
func (ix *index[K, V]) unindexLocked(row uint32) {
	vk := ix.rowKeys[row]
	if bm, ok := ix.writableLocked(vk); ok {
		bm.Remove(row)
		// Clean up empty bitmaps
		if bm.IsEmpty() {
			delete(ix.postings, vk)
			delete(ix.owned, vk)
		}
	}
	ix.rowKeys[row] = ""
}
