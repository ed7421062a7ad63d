package searchcache

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see
// metrics/prometheus for a Prometheus implementation.
type MetricsCollector interface {
	// RecordPut is called after each put operation.
	// duration is the total time taken, err is nil if successful.
	RecordPut(duration time.Duration, err error)

	// RecordRemove is called after each remove operation.
	// found reports whether the key was present.
	RecordRemove(duration time.Duration, found bool)

	// RecordQuery is called after each query execution.
	// rows is the number of result rows, err is nil if successful.
	RecordQuery(rows int, duration time.Duration, err error)

	// RecordSkippedRecords is called when a query excluded records whose
	// attributes could not be extracted.
	RecordSkippedRecords(n int)

	// RecordSnapshot is called after each snapshot save or load.
	RecordSnapshot(entries int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPut(time.Duration, error)           {}
func (NoopMetricsCollector) RecordRemove(time.Duration, bool)         {}
func (NoopMetricsCollector) RecordQuery(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordSkippedRecords(int)                 {}
func (NoopMetricsCollector) RecordSnapshot(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PutCount        atomic.Int64
	PutErrors       atomic.Int64
	RemoveCount     atomic.Int64
	RemoveMisses    atomic.Int64
	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryRows       atomic.Int64
	QueryTotalNanos atomic.Int64
	SkippedRecords  atomic.Int64
	SnapshotCount   atomic.Int64
	SnapshotErrors  atomic.Int64
	SnapshotEntries atomic.Int64
}

// RecordPut implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPut(duration time.Duration, err error) {
	b.PutCount.Add(1)
	if err != nil {
		b.PutErrors.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(duration time.Duration, found bool) {
	b.RemoveCount.Add(1)
	if !found {
		b.RemoveMisses.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(rows int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
		return
	}
	b.QueryRows.Add(int64(rows))
}

// RecordSkippedRecords implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSkippedRecords(n int) {
	b.SkippedRecords.Add(int64(n))
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(entries int, duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
		return
	}
	b.SnapshotEntries.Add(int64(entries))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PutCount:        b.PutCount.Load(),
		PutErrors:       b.PutErrors.Load(),
		RemoveCount:     b.RemoveCount.Load(),
		RemoveMisses:    b.RemoveMisses.Load(),
		QueryCount:      b.QueryCount.Load(),
		QueryErrors:     b.QueryErrors.Load(),
		QueryRows:       b.QueryRows.Load(),
		QueryAvgNanos:   b.getAvgQueryNanos(),
		SkippedRecords:  b.SkippedRecords.Load(),
		SnapshotCount:   b.SnapshotCount.Load(),
		SnapshotErrors:  b.SnapshotErrors.Load(),
		SnapshotEntries: b.SnapshotEntries.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PutCount        int64
	PutErrors       int64
	RemoveCount     int64
	RemoveMisses    int64
	QueryCount      int64
	QueryErrors     int64
	QueryRows       int64
	QueryAvgNanos   int64
	SkippedRecords  int64
	SnapshotCount   int64
	SnapshotErrors  int64
	SnapshotEntries int64
}
