package searchcache

import (
	"log/slog"

	"github.com/hupe1980/searchcache/attribute"
	"github.com/hupe1980/searchcache/codec"
	"github.com/hupe1980/searchcache/resource"
	"github.com/hupe1980/searchcache/snapshot"
)

type options struct {
	searchAttributes     []any // []attribute.Definition[K, V], checked by New
	indexedAttributes    []string
	resourceConfig       resource.Config
	parallelism          int
	skipExtractionErrors bool
	codec                codec.Codec
	compression          snapshot.Compression
	metricsCollector     MetricsCollector
	logger               *Logger
}

// Option configures a Cache.
type Option func(*options)

// WithSearchAttributes registers searchable attributes at construction.
//
// The definitions must be declared for the cache's key and value types;
// New fails otherwise.
//
// Example:
//
//	c, _ := searchcache.New[int, Order]("orders",
//	    searchcache.WithSearchAttributes(
//	        attribute.Field[int]("customer", func(o Order) any { return o.Customer }),
//	        attribute.MustExpression[int, Order]("price", "value.Price"),
//	    ),
//	)
func WithSearchAttributes[K comparable, V any](defs ...attribute.Definition[K, V]) Option {
	return func(o *options) {
		o.searchAttributes = append(o.searchAttributes, defs)
	}
}

// WithIndexedAttributes maintains an equality index for each named attribute.
// Equality and IN criteria on indexed attributes only visit matching entries.
//
// The attributes must be registered through WithSearchAttributes.
func WithIndexedAttributes(names ...string) Option {
	return func(o *options) {
		o.indexedAttributes = append(o.indexedAttributes, names...)
	}
}

// WithResourceConfig limits concurrent queries, the query rate and
// snapshot IO throughput.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceConfig = cfg
	}
}

// WithParallelism sets the number of goroutines extracting attributes
// during a query. Results are identical for every setting.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithSkipExtractionErrors excludes entries whose attributes cannot be
// extracted from query results instead of failing the query.
func WithSkipExtractionErrors(skip bool) Option {
	return func(o *options) {
		o.skipExtractionErrors = skip
	}
}

// WithCodec configures the codec used for snapshots.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures the snapshot body compression.
func WithCompression(c snapshot.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &searchcache.BasicMetricsCollector{}
//	c, _ := searchcache.New[int, Order]("orders", searchcache.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := searchcache.NewJSONLogger(slog.LevelInfo)
//	c, _ := searchcache.New[int, Order]("orders", searchcache.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		parallelism:      1,
		codec:            codec.Default,
		compression:      snapshot.CompressionLZ4,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
