package query

import (
	"iter"
	"slices"

	"github.com/hupe1980/searchcache/attribute"
)

// layout maps projected attribute names to row positions. It is shared by
// all rows of a result set.
type layout struct {
	names []string
	index map[string]int
}

func newLayout(names []string) *layout {
	l := &layout{names: names, index: make(map[string]int, len(names))}
	for i, n := range names {
		l.index[n] = i
	}
	return l
}

// Row is one result row: the projected attributes and the aggregates of a
// group.
type Row struct {
	layout *layout
	proj   []attribute.Value
	aggs   []attribute.Value
	key    []attribute.Value
}

// Attribute returns the projected value of name.
// ok is false if name was not projected by the query.
func (r Row) Attribute(name string) (attribute.Value, bool) {
	if r.layout == nil {
		return attribute.Value{}, false
	}
	i, ok := r.layout.index[name]
	if !ok {
		return attribute.Value{}, false
	}
	return r.proj[i], true
}

// Attributes returns the projected attribute names in projection order.
func (r Row) Attributes() []string {
	if r.layout == nil {
		return nil
	}
	return slices.Clone(r.layout.names)
}

// Aggregates returns the aggregate results, aligned with the query's
// aggregations.
func (r Row) Aggregates() []attribute.Value {
	return slices.Clone(r.aggs)
}

// Aggregate returns the i-th aggregate result.
func (r Row) Aggregate(i int) (attribute.Value, bool) {
	if i < 0 || i >= len(r.aggs) {
		return attribute.Value{}, false
	}
	return r.aggs[i], true
}

// GroupKey returns the group-by values of the row's group.
func (r Row) GroupKey() []attribute.Value {
	return slices.Clone(r.key)
}

// ResultSet is the immutable outcome of a query.
type ResultSet struct {
	rows        []Row
	hasAggs     bool
	diagnostics []error
}

// Rows returns an iterator over the rows. It may be consumed any number of times.
func (rs *ResultSet) Rows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for _, r := range rs.rows {
			if !yield(r) {
				return
			}
		}
	}
}

// All returns the rows as a slice.
func (rs *ResultSet) All() []Row {
	return slices.Clone(rs.rows)
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int { return len(rs.rows) }

// Row returns the i-th row.
func (rs *ResultSet) Row(i int) (Row, bool) {
	if i < 0 || i >= len(rs.rows) {
		return Row{}, false
	}
	return rs.rows[i], true
}

// HasAggregators reports whether the query computed aggregates.
func (rs *ResultSet) HasAggregators() bool { return rs.hasAggs }

// Diagnostics returns the extraction errors of records skipped by the query.
func (rs *ResultSet) Diagnostics() []error {
	return slices.Clone(rs.diagnostics)
}
