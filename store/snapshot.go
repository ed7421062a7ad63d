package store

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/searchcache/attribute"
)

// Entry is a key/value pair held by the store.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Snapshot is an immutable view of a store at a point in time.
//
// Row numbers are positions in the snapshot's iteration order; removed
// entries leave gaps that are skipped by All and reported as absent by Row.
// A Snapshot may be shared by any number of goroutines.
type Snapshot[K comparable, V any] struct {
	rows     []slot[K, V]
	live     int
	postings map[string]map[string]*roaring.Bitmap
}

// FromEntries builds an unindexed snapshot holding entries in the given order.
func FromEntries[K comparable, V any](entries []Entry[K, V]) *Snapshot[K, V] {
	rows := make([]slot[K, V], len(entries))
	for i, e := range entries {
		rows[i] = slot[K, V]{key: e.Key, value: e.Value, live: true}
	}
	return &Snapshot[K, V]{rows: rows, live: len(rows)}
}

// All returns an iterator over the live entries in store order.
// The iterator may be consumed any number of times.
func (s *Snapshot[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, sl := range s.rows {
			if !sl.live {
				continue
			}
			if !yield(sl.key, sl.value) {
				return
			}
		}
	}
}

// Entries returns the live entries in store order.
func (s *Snapshot[K, V]) Entries() []Entry[K, V] {
	out := make([]Entry[K, V], 0, s.live)
	for k, v := range s.All() {
		out = append(out, Entry[K, V]{Key: k, Value: v})
	}
	return out
}

// Len returns the number of live entries.
func (s *Snapshot[K, V]) Len() int { return s.live }

// Rows returns the number of rows, including gaps left by removed entries.
func (s *Snapshot[K, V]) Rows() int { return len(s.rows) }

// Row returns the entry at row. ok is false for gaps and out of range rows.
func (s *Snapshot[K, V]) Row(row uint32) (key K, value V, ok bool) {
	if int(row) >= len(s.rows) || !s.rows[row].live {
		return key, value, false
	}
	sl := s.rows[row]
	return sl.key, sl.value, true
}

// Indexed reports whether attr is backed by an index.
func (s *Snapshot[K, V]) Indexed(attr string) bool {
	_, ok := s.postings[attr]
	return ok
}

// Lookup returns the rows whose indexed attr equals v.
//
// ok is false if attr is not indexed. The returned bitmap is owned by the
// caller.
func (s *Snapshot[K, V]) Lookup(attr string, v attribute.Value) (*roaring.Bitmap, bool) {
	postings, ok := s.postings[attr]
	if !ok {
		return nil, false
	}
	if bm, ok := postings[v.Key()]; ok {
		return bm.Clone(), true
	}
	return roaring.New(), true
}
