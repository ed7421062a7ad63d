package query

import (
	"slices"
)

// Direction is the sort direction of an ordering.
type Direction uint8

const (
	// Ascending sorts from the smallest to the largest value.
	Ascending Direction = iota
	// Descending sorts from the largest to the smallest value.
	Descending
)

// Order sorts result rows by a projected attribute.
type Order struct {
	Attribute string
	Direction Direction
}

// Builder is an immutable fluent builder for query specifications.
// Each method returns a new builder with the updated configuration, so a
// partially configured builder can be shared and extended safely.
//
// Example:
//
//	spec, err := query.NewBuilder().
//	    Include("customer", "city").
//	    GroupBy("customer", "city").
//	    Aggregate(query.Sum("price")).
//	    Build()
type Builder struct {
	projections  []string
	groupBy      []string
	aggregations []Aggregation
	criteria     []Criterion
	orderBy      []Order
	maxResults   int
}

// NewBuilder returns an empty builder.
func NewBuilder() Builder {
	return Builder{}
}

// Include adds attributes to project into every result row.
// Group-by attributes are not projected implicitly.
func (b Builder) Include(names ...string) Builder {
	b.projections = append(slices.Clip(b.projections), names...)
	return b
}

// GroupBy adds attributes to the group key.
func (b Builder) GroupBy(names ...string) Builder {
	b.groupBy = append(slices.Clip(b.groupBy), names...)
	return b
}

// Aggregate adds aggregate functions. Results keep the order in which they were added.
func (b Builder) Aggregate(aggs ...Aggregation) Builder {
	b.aggregations = append(slices.Clip(b.aggregations), aggs...)
	return b
}

// Where adds criteria. A record must match all criteria to take part in the query.
func (b Builder) Where(criteria ...Criterion) Builder {
	b.criteria = append(slices.Clip(b.criteria), criteria...)
	return b
}

// OrderBy sorts result rows by a projected attribute. Later orderings break
// ties of earlier ones; remaining ties keep first-seen group order.
func (b Builder) OrderBy(name string, dir Direction) Builder {
	b.orderBy = append(slices.Clip(b.orderBy), Order{Attribute: name, Direction: dir})
	return b
}

// MaxResults limits the number of result rows. Zero means unlimited.
func (b Builder) MaxResults(n int) Builder {
	b.maxResults = n
	return b
}

// Build validates the builder and returns an immutable specification.
func (b Builder) Build() (*Spec, error) {
	if err := checkNames("projection", b.projections); err != nil {
		return nil, err
	}
	if err := checkNames("group-by", b.groupBy); err != nil {
		return nil, err
	}

	seenAgg := make(map[Aggregation]struct{}, len(b.aggregations))
	for _, a := range b.aggregations {
		if !a.Func.valid() {
			return nil, invalidf("unsupported aggregate function %s", a.Func)
		}
		if a.Attribute == "" && a.Func != FuncCount {
			return nil, invalidf("%s requires an attribute", a.Func)
		}
		if _, ok := seenAgg[a]; ok {
			return nil, invalidf("duplicate aggregation %s", a)
		}
		seenAgg[a] = struct{}{}
	}

	for _, c := range b.criteria {
		if err := c.validate(); err != nil {
			return nil, err
		}
	}

	for _, o := range b.orderBy {
		if !slices.Contains(b.projections, o.Attribute) {
			return nil, invalidf("order-by attribute %q must be projected", o.Attribute)
		}
		if o.Direction != Ascending && o.Direction != Descending {
			return nil, invalidf("unsupported sort direction %d", o.Direction)
		}
	}

	if b.maxResults < 0 {
		return nil, invalidf("max results must not be negative, got %d", b.maxResults)
	}

	s := &Spec{
		projections:  slices.Clone(b.projections),
		groupBy:      slices.Clone(b.groupBy),
		aggregations: slices.Clone(b.aggregations),
		criteria:     cloneCriteria(b.criteria),
		orderBy:      slices.Clone(b.orderBy),
		maxResults:   b.maxResults,
	}
	s.attributes = s.collectAttributes()
	return s, nil
}

// MustBuild is like Build but panics on an invalid query.
// Use this only in tests or with statically known queries.
func (b Builder) MustBuild() *Spec {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func checkNames(kind string, names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			return invalidf("%s attribute name must not be empty", kind)
		}
		if _, ok := seen[n]; ok {
			return invalidf("duplicate %s attribute %q", kind, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

func cloneCriteria(in []Criterion) []Criterion {
	if in == nil {
		return nil
	}
	out := make([]Criterion, len(in))
	for i, c := range in {
		c.Values = slices.Clone(c.Values)
		out[i] = c
	}
	return out
}

// Spec is an immutable, validated query specification.
type Spec struct {
	projections  []string
	groupBy      []string
	aggregations []Aggregation
	criteria     []Criterion
	orderBy      []Order
	maxResults   int
	attributes   []string
}

// Projections returns the projected attribute names.
func (s *Spec) Projections() []string { return slices.Clone(s.projections) }

// GroupBy returns the group-by attribute names.
func (s *Spec) GroupBy() []string { return slices.Clone(s.groupBy) }

// Aggregations returns the aggregations in result order.
func (s *Spec) Aggregations() []Aggregation { return slices.Clone(s.aggregations) }

// Criteria returns the criteria.
func (s *Spec) Criteria() []Criterion { return cloneCriteria(s.criteria) }

// OrderBy returns the result ordering.
func (s *Spec) OrderBy() []Order { return slices.Clone(s.orderBy) }

// MaxResults returns the row limit; zero means unlimited.
func (s *Spec) MaxResults() int { return s.maxResults }

// HasAggregations reports whether the query computes aggregates.
func (s *Spec) HasAggregations() bool { return len(s.aggregations) > 0 }

// Attributes returns every referenced attribute name once, in first-reference
// order: criteria, group-by, aggregations, projections.
func (s *Spec) Attributes() []string { return slices.Clone(s.attributes) }

func (s *Spec) collectAttributes() []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(n string) {
		if n == "" {
			return
		}
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}

	for _, c := range s.criteria {
		add(c.Attribute)
	}
	for _, n := range s.groupBy {
		add(n)
	}
	for _, a := range s.aggregations {
		add(a.Attribute)
	}
	for _, n := range s.projections {
		add(n)
	}
	return out
}
