package searchcache

import (
	"context"

	"github.com/hupe1980/searchcache/query"
)

// QueryBuilder assembles a query against a Cache.
//
// Methods modify the builder in place and return it for chaining. Validation
// happens when the query is built or executed.
//
//	rs, err := c.CreateQuery().
//	    Include("customer", "city").
//	    GroupBy("customer", "city").
//	    IncludeAggregator(query.Sum("price")).
//	    Execute(ctx)
type QueryBuilder[K comparable, V any] struct {
	cache *Cache[K, V]
	b     query.Builder
}

// Include adds attributes to project into every result row.
func (q *QueryBuilder[K, V]) Include(names ...string) *QueryBuilder[K, V] {
	q.b = q.b.Include(names...)
	return q
}

// GroupBy adds grouping attributes.
func (q *QueryBuilder[K, V]) GroupBy(names ...string) *QueryBuilder[K, V] {
	q.b = q.b.GroupBy(names...)
	return q
}

// IncludeAggregator adds aggregate functions.
func (q *QueryBuilder[K, V]) IncludeAggregator(aggs ...query.Aggregation) *QueryBuilder[K, V] {
	q.b = q.b.Aggregate(aggs...)
	return q
}

// AddCriteria restricts the query to entries matching all criteria.
func (q *QueryBuilder[K, V]) AddCriteria(criteria ...query.Criterion) *QueryBuilder[K, V] {
	q.b = q.b.Where(criteria...)
	return q
}

// AddOrderBy orders result rows by a projected attribute.
func (q *QueryBuilder[K, V]) AddOrderBy(name string, dir query.Direction) *QueryBuilder[K, V] {
	q.b = q.b.OrderBy(name, dir)
	return q
}

// MaxResults limits the number of result rows. Zero means unlimited.
func (q *QueryBuilder[K, V]) MaxResults(n int) *QueryBuilder[K, V] {
	q.b = q.b.MaxResults(n)
	return q
}

// Build validates the query and returns an immutable spec that can be
// executed any number of times.
func (q *QueryBuilder[K, V]) Build() (*query.Spec, error) {
	spec, err := q.b.Build()
	return spec, translateError(err)
}

// Execute builds and runs the query.
func (q *QueryBuilder[K, V]) Execute(ctx context.Context) (*query.ResultSet, error) {
	spec, err := q.Build()
	if err != nil {
		q.cache.metrics.RecordQuery(0, 0, err)
		return nil, err
	}
	return q.cache.Execute(ctx, spec)
}
