package query

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/searchcache/attribute"
)

// chunkSize is the number of records evaluated between cancellation checks.
const chunkSize = 1024

// Source provides the records a query scans, in store order.
type Source[K comparable, V any] interface {
	All() iter.Seq2[K, V]
}

// IndexedSource is a Source with row access and per-attribute equality
// indexes. Equality and IN criteria on indexed attributes narrow the scan to
// candidate rows, visited in ascending row order.
type IndexedSource[K comparable, V any] interface {
	Source[K, V]
	Rows() int
	Row(row uint32) (K, V, bool)
	Lookup(attr string, v attribute.Value) (*roaring.Bitmap, bool)
}

// Resolver maps attribute names to extractors.
type Resolver[K comparable, V any] interface {
	Resolve(name string) (attribute.Extractor[K, V], error)
}

// Options configures query execution.
type Options struct {
	// SkipExtractionErrors excludes records whose attributes cannot be
	// extracted instead of failing the query. Skipped errors are reported
	// by ResultSet.Diagnostics.
	SkipExtractionErrors bool

	// Parallelism is the number of goroutines extracting attributes.
	// Values below 2 evaluate records sequentially.
	Parallelism int

	// Logger receives debug output. Defaults to a discarding logger.
	Logger *slog.Logger
}

// DefaultOptions returns the default execution options.
func DefaultOptions() Options {
	return Options{
		Parallelism: 1,
		Logger:      slog.New(slog.DiscardHandler),
	}
}

// WithSkipExtractionErrors sets Options.SkipExtractionErrors.
func WithSkipExtractionErrors(skip bool) func(*Options) {
	return func(o *Options) { o.SkipExtractionErrors = skip }
}

// WithParallelism sets Options.Parallelism.
func WithParallelism(n int) func(*Options) {
	return func(o *Options) { o.Parallelism = n }
}

// WithLogger sets Options.Logger.
func WithLogger(l *slog.Logger) func(*Options) {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// plan is a spec with every attribute bound to its extractor.
type plan[K comparable, V any] struct {
	spec       *Spec
	extractors map[string]attribute.Extractor[K, V]
}

type record[K comparable, V any] struct {
	key   K
	value V
}

// evaluation is the extracted state of one record.
type evaluation struct {
	matched bool
	group   []attribute.Value
	aggs    []attribute.Value
	proj    []attribute.Value
	err     error
}

type group struct {
	key  []attribute.Value
	proj []attribute.Value
	accs []accumulator
}

// Execute runs spec against src.
//
// All attribute names are resolved before the scan starts, so an unknown
// attribute fails the query without extracting anything. Records are visited
// once, in store order. Groups are emitted in first-seen order unless the
// spec orders them.
func Execute[K comparable, V any](ctx context.Context, spec *Spec, src Source[K, V], reg Resolver[K, V], optFns ...func(*Options)) (*ResultSet, error) {
	if spec == nil {
		return nil, invalidf("nil spec")
	}

	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := resolve(spec, reg)
	if err != nil {
		return nil, err
	}

	groups, order, diagnostics, scanned, err := p.scan(ctx, src, opts)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(order))
	layout := newLayout(spec.projections)
	for _, gk := range order {
		g := groups[gk]
		aggs := make([]attribute.Value, len(g.accs))
		for i := range g.accs {
			v, err := g.accs[i].result()
			if err != nil {
				return nil, fmt.Errorf("%s for group %v: %w", spec.aggregations[i], g.key, err)
			}
			aggs[i] = v
		}
		rows = append(rows, Row{layout: layout, proj: g.proj, aggs: aggs, key: g.key})
	}

	sortRows(rows, spec.orderBy, layout)
	if spec.maxResults > 0 && len(rows) > spec.maxResults {
		rows = rows[:spec.maxResults]
	}

	opts.Logger.DebugContext(ctx, "query executed",
		slog.Int("scanned", scanned),
		slog.Int("groups", len(order)),
		slog.Int("rows", len(rows)),
		slog.Int("skipped", len(diagnostics)),
	)

	return &ResultSet{
		rows:        rows,
		hasAggs:     spec.HasAggregations(),
		diagnostics: diagnostics,
	}, nil
}

func resolve[K comparable, V any](spec *Spec, reg Resolver[K, V]) (*plan[K, V], error) {
	p := &plan[K, V]{
		spec:       spec,
		extractors: make(map[string]attribute.Extractor[K, V], len(spec.attributes)),
	}
	for _, name := range spec.attributes {
		ex, err := reg.Resolve(name)
		if err != nil {
			return nil, err
		}
		p.extractors[name] = ex
	}
	return p, nil
}

// candidates returns the rows that can match the equality criteria on
// indexed attributes. ok is false if no criterion narrows the scan.
func (p *plan[K, V]) candidates(src IndexedSource[K, V]) (*roaring.Bitmap, bool) {
	var result *roaring.Bitmap
	for _, c := range p.spec.criteria {
		if c.Operator != OpEqual && c.Operator != OpIn {
			continue
		}
		var bm *roaring.Bitmap
		for _, v := range c.Values {
			hits, ok := src.Lookup(c.Attribute, v)
			if !ok {
				bm = nil
				break
			}
			if bm == nil {
				bm = hits
			} else {
				bm.Or(hits)
			}
		}
		if bm == nil {
			continue
		}
		if result == nil {
			result = bm
		} else {
			result.And(bm)
		}
	}
	return result, result != nil
}

// records returns the records to scan in store order.
func (p *plan[K, V]) records(src Source[K, V]) iter.Seq2[K, V] {
	is, ok := src.(IndexedSource[K, V])
	if !ok {
		return src.All()
	}
	bm, ok := p.candidates(is)
	if !ok {
		return src.All()
	}
	return func(yield func(K, V) bool) {
		it := bm.Iterator()
		for it.HasNext() {
			k, v, ok := is.Row(it.Next())
			if !ok {
				continue
			}
			if !yield(k, v) {
				return
			}
		}
	}
}

func (p *plan[K, V]) scan(ctx context.Context, src Source[K, V], opts Options) (map[string]*group, []string, []error, int, error) {
	var (
		groups      = make(map[string]*group)
		order       []string
		diagnostics []error
		scanned     int
		chunk       = make([]record[K, V], 0, chunkSize)
		evals       = make([]evaluation, chunkSize)
	)

	flush := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.evaluateChunk(ctx, chunk, evals[:len(chunk)], opts.Parallelism); err != nil {
			return err
		}
		for i := range chunk {
			e := &evals[i]
			if e.err != nil {
				if !opts.SkipExtractionErrors {
					return e.err
				}
				diagnostics = append(diagnostics, e.err)
				opts.Logger.DebugContext(ctx, "record skipped", slog.String("error", e.err.Error()))
				continue
			}
			if !e.matched {
				continue
			}
			gk := groupKey(e.group)
			g, ok := groups[gk]
			if !ok {
				g = &group{key: e.group, proj: e.proj, accs: make([]accumulator, len(p.spec.aggregations))}
				for j, a := range p.spec.aggregations {
					g.accs[j] = newAccumulator(a.Func)
				}
				groups[gk] = g
				order = append(order, gk)
			}
			for j := range g.accs {
				g.accs[j].add(e.aggs[j])
			}
		}
		scanned += len(chunk)
		chunk = chunk[:0]
		return nil
	}

	for k, v := range p.records(src) {
		chunk = append(chunk, record[K, V]{key: k, value: v})
		if len(chunk) == chunkSize {
			if err := flush(); err != nil {
				return nil, nil, nil, 0, err
			}
		}
	}
	if len(chunk) > 0 {
		if err := flush(); err != nil {
			return nil, nil, nil, 0, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, 0, err
	}
	return groups, order, diagnostics, scanned, nil
}

// evaluateChunk extracts every record of chunk into evals. Extraction errors
// are stored per record; only cancellation fails the chunk.
func (p *plan[K, V]) evaluateChunk(ctx context.Context, chunk []record[K, V], evals []evaluation, parallelism int) error {
	if parallelism < 2 || len(chunk) < 2*parallelism {
		for i := range chunk {
			evals[i] = p.evaluate(chunk[i].key, chunk[i].value)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	step := (len(chunk) + parallelism - 1) / parallelism
	for start := 0; start < len(chunk); start += step {
		end := min(start+step, len(chunk))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%128 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				evals[i] = p.evaluate(chunk[i].key, chunk[i].value)
			}
			return nil
		})
	}
	return g.Wait()
}

// evaluate extracts the attributes of one record. Criteria are evaluated
// first; a record that does not match is not extracted any further.
func (p *plan[K, V]) evaluate(key K, value V) evaluation {
	spec := p.spec
	cache := make(map[string]attribute.Value, len(spec.attributes))
	get := func(name string) (attribute.Value, error) {
		if v, ok := cache[name]; ok {
			return v, nil
		}
		v, err := p.extractors[name].AttributeFor(key, value, name)
		if err != nil {
			return attribute.Value{}, attribute.NewExtractionError(name, key, err)
		}
		cache[name] = v
		return v, nil
	}

	for _, c := range spec.criteria {
		v, err := get(c.Attribute)
		if err != nil {
			return evaluation{err: err}
		}
		if !c.Matches(v) {
			return evaluation{}
		}
	}

	e := evaluation{matched: true}

	if len(spec.groupBy) > 0 {
		e.group = make([]attribute.Value, len(spec.groupBy))
		for i, name := range spec.groupBy {
			v, err := get(name)
			if err != nil {
				return evaluation{err: err}
			}
			e.group[i] = v
		}
	}

	e.aggs = make([]attribute.Value, len(spec.aggregations))
	for i, a := range spec.aggregations {
		if a.Attribute == "" {
			e.aggs[i] = attribute.Int(1)
			continue
		}
		v, err := get(a.Attribute)
		if err != nil {
			return evaluation{err: err}
		}
		if (a.Func == FuncSum || a.Func == FuncAverage) && !v.IsNull() && !v.IsNumeric() {
			return evaluation{err: attribute.NewExtractionError(a.Attribute, key,
				fmt.Errorf("%w: %s over %s value %v", ErrNotNumeric, a.Func, v.Kind(), v))}
		}
		e.aggs[i] = v
	}

	if len(spec.projections) > 0 {
		e.proj = make([]attribute.Value, len(spec.projections))
		for i, name := range spec.projections {
			v, err := get(name)
			if err != nil {
				return evaluation{err: err}
			}
			e.proj[i] = v
		}
	}

	return e
}

// groupKey encodes a tuple of values as a length-prefixed string so that
// distinct tuples never collide.
func groupKey(vals []attribute.Value) string {
	if len(vals) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, v := range vals {
		k := v.Key()
		sb.WriteString(strconv.Itoa(len(k)))
		sb.WriteByte(':')
		sb.WriteString(k)
	}
	return sb.String()
}

func sortRows(rows []Row, orderBy []Order, l *layout) {
	if len(orderBy) == 0 {
		return
	}
	idx := make([]int, len(orderBy))
	for i, o := range orderBy {
		idx[i] = l.index[o.Attribute]
	}
	slices.SortStableFunc(rows, func(a, b Row) int {
		for i, o := range orderBy {
			c := attribute.Compare(a.proj[idx[i]], b.proj[idx[i]])
			if o.Direction == Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}
