// Package prometheus exports cache metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc, err := promcollector.New(reg, "orders")
//	c, err := searchcache.New[int, Order]("orders", searchcache.WithMetricsCollector(mc))
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/searchcache"
)

const namespace = "searchcache"

// Collector implements searchcache.MetricsCollector with Prometheus metrics.
type Collector struct {
	opLatency      *prometheus.HistogramVec
	operations     *prometheus.CounterVec
	queryRows      prometheus.Histogram
	skippedRecords prometheus.Counter
	snapshotSize   prometheus.Gauge
}

var _ searchcache.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg.
// cache is attached to every metric as a constant label.
func New(reg prometheus.Registerer, cache string) (*Collector, error) {
	labels := prometheus.Labels{"cache": cache}

	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "operation_duration_seconds",
			Help:        "Latency of cache operations.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, []string{"op", "status"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "operations_total",
			Help:        "Number of cache operations.",
			ConstLabels: labels,
		}, []string{"op", "status"}),
		queryRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "query_rows",
			Help:        "Number of rows returned by queries.",
			Buckets:     prometheus.ExponentialBuckets(1, 4, 8),
			ConstLabels: labels,
		}),
		skippedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "skipped_records_total",
			Help:        "Records excluded from query results because an attribute could not be extracted.",
			ConstLabels: labels,
		}),
		snapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "snapshot_entries",
			Help:        "Entries in the most recent successful snapshot.",
			ConstLabels: labels,
		}),
	}

	for _, m := range []prometheus.Collector{c.opLatency, c.operations, c.queryRows, c.skippedRecords, c.snapshotSize} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op, st string, d time.Duration) {
	c.opLatency.WithLabelValues(op, st).Observe(d.Seconds())
	c.operations.WithLabelValues(op, st).Inc()
}

// RecordPut implements searchcache.MetricsCollector.
func (c *Collector) RecordPut(d time.Duration, err error) {
	c.observe("put", status(err), d)
}

// RecordRemove implements searchcache.MetricsCollector.
func (c *Collector) RecordRemove(d time.Duration, found bool) {
	st := "success"
	if !found {
		st = "miss"
	}
	c.observe("remove", st, d)
}

// RecordQuery implements searchcache.MetricsCollector.
func (c *Collector) RecordQuery(rows int, d time.Duration, err error) {
	c.observe("query", status(err), d)
	if err == nil {
		c.queryRows.Observe(float64(rows))
	}
}

// RecordSkippedRecords implements searchcache.MetricsCollector.
func (c *Collector) RecordSkippedRecords(n int) {
	c.skippedRecords.Add(float64(n))
}

// RecordSnapshot implements searchcache.MetricsCollector.
func (c *Collector) RecordSnapshot(entries int, d time.Duration, err error) {
	c.observe("snapshot", status(err), d)
	if err == nil {
		c.snapshotSize.Set(float64(entries))
	}
}
