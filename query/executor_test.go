package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/searchcache/attribute"
	"github.com/hupe1980/searchcache/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	Customer string
	City     string
	Price    any
}

var errMalformed = errors.New("malformed order")

func newRegistry(t *testing.T) *attribute.Registry[int, order] {
	t.Helper()

	r := attribute.NewRegistry[int, order]()
	require.NoError(t, r.Register(
		attribute.KeyField[int, order]("id"),
		attribute.Field[int]("price", func(o order) any { return o.Price }),
		attribute.Field[int]("city", func(o order) any { return o.City }),
		attribute.Custom[int, order]("customer", attribute.ExtractorFunc[int, order](func(_ int, o order, _ string) (attribute.Value, error) {
			if o.Customer == "!" {
				return attribute.Value{}, errMalformed
			}
			return attribute.String(o.Customer), nil
		})),
	))
	return r
}

func newSnapshot(t *testing.T, orders ...order) *store.Snapshot[int, order] {
	t.Helper()

	s, err := store.New(store.Index[int, order]{
		Name: "city",
		Extract: func(_ int, o order) (attribute.Value, error) {
			return attribute.String(o.City), nil
		},
	})
	require.NoError(t, err)
	for i, o := range orders {
		require.NoError(t, s.Put(i+1, o))
	}
	return s.Snapshot()
}

func sampleOrders() []order {
	return []order{
		{Customer: "Alpha", City: "NY", Price: 100},
		{Customer: "Alpha", City: "NY", Price: 70},
		{Customer: "Bravo", City: "AZ", Price: 200},
	}
}

func values(vals ...any) []attribute.Value {
	out := make([]attribute.Value, len(vals))
	for i, v := range vals {
		out[i], _ = attribute.FromAny(v)
	}
	return out
}

// table flattens a result set into projections followed by aggregates.
func table(rs *ResultSet) [][]attribute.Value {
	var out [][]attribute.Value
	for row := range rs.Rows() {
		var line []attribute.Value
		for _, name := range row.Attributes() {
			v, _ := row.Attribute(name)
			line = append(line, v)
		}
		out = append(out, append(line, row.Aggregates()...))
	}
	return out
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("SumByCustomerAndCity", func(t *testing.T) {
		spec := NewBuilder().
			Include("customer", "city").
			GroupBy("customer", "city").
			Aggregate(Sum("price")).
			MustBuild()

		rs, err := Execute[int, order](ctx, spec, newSnapshot(t, sampleOrders()...), newRegistry(t))
		require.NoError(t, err)

		assert.True(t, rs.HasAggregators())
		assert.Equal(t, [][]attribute.Value{
			values("Alpha", "NY", 170),
			values("Bravo", "AZ", 200),
		}, table(rs))

		row, ok := rs.Row(0)
		require.True(t, ok)
		assert.Equal(t, values("Alpha", "NY"), row.GroupKey())
	})

	t.Run("AverageByCity", func(t *testing.T) {
		spec := NewBuilder().Include("city").GroupBy("city").Aggregate(Average("price")).MustBuild()

		rs, err := Execute[int, order](ctx, spec, newSnapshot(t, sampleOrders()...), newRegistry(t))
		require.NoError(t, err)

		assert.Equal(t, [][]attribute.Value{
			{attribute.String("NY"), attribute.Float(85)},
			{attribute.String("AZ"), attribute.Float(200)},
		}, table(rs))
	})

	t.Run("NegativePrices", func(t *testing.T) {
		spec := NewBuilder().
			Include("city").
			GroupBy("city").
			Aggregate(Average("price"), Sum("price")).
			MustBuild()

		src := newSnapshot(t,
			order{Customer: "Alpha", City: "NY", Price: -10},
			order{Customer: "Alpha", City: "NY", Price: -20},
			order{Customer: "Bravo", City: "AZ", Price: -5},
			order{Customer: "Bravo", City: "AZ", Price: 0.5},
		)
		rs, err := Execute[int, order](ctx, spec, src, newRegistry(t))
		require.NoError(t, err)

		assert.Equal(t, [][]attribute.Value{
			{attribute.String("NY"), attribute.Float(-15), attribute.Int(-30)},
			{attribute.String("AZ"), attribute.Float(-2.25), attribute.Float(-4.5)},
		}, table(rs))
	})

	t.Run("AllAggregatesWithoutGroupBy", func(t *testing.T) {
		spec := NewBuilder().
			Aggregate(Count(), Sum("price"), Average("price"), Min("price"), Max("price"), CountOf("city")).
			MustBuild()

		rs, err := Execute[int, order](ctx, spec, newSnapshot(t, sampleOrders()...), newRegistry(t))
		require.NoError(t, err)
		require.Equal(t, 1, rs.Len())

		row, _ := rs.Row(0)
		assert.Empty(t, row.GroupKey())
		assert.Equal(t, []attribute.Value{
			attribute.Int(3),
			attribute.Int(370),
			attribute.Float(370.0 / 3),
			attribute.Int(70),
			attribute.Int(200),
			attribute.Int(3),
		}, row.Aggregates())
	})

	t.Run("ProjectionWithoutAggregates", func(t *testing.T) {
		spec := NewBuilder().Include("city").GroupBy("city").MustBuild()

		rs, err := Execute[int, order](ctx, spec, newSnapshot(t, sampleOrders()...), newRegistry(t))
		require.NoError(t, err)

		assert.False(t, rs.HasAggregators())
		assert.Equal(t, [][]attribute.Value{values("NY"), values("AZ")}, table(rs))
	})

	t.Run("NonGroupedProjectionTakesFirstRecord", func(t *testing.T) {
		spec := NewBuilder().Include("price").GroupBy("city").Aggregate(Count()).MustBuild()

		rs, err := Execute[int, order](ctx, spec, newSnapshot(t, sampleOrders()...), newRegistry(t))
		require.NoError(t, err)

		assert.Equal(t, [][]attribute.Value{values(100, 2), values(200, 1)}, table(rs))
	})

	t.Run("EmptySource", func(t *testing.T) {
		for _, b := range []Builder{
			NewBuilder().Aggregate(Sum("price")),
			NewBuilder().Include("city").GroupBy("city").Aggregate(Count()),
		} {
			rs, err := Execute[int, order](ctx, b.MustBuild(), newSnapshot(t), newRegistry(t))
			require.NoError(t, err)
			assert.Equal(t, 0, rs.Len())
			assert.Empty(t, rs.All())
		}
	})

	t.Run("UnknownAttributeFailsBeforeScan", func(t *testing.T) {
		var calls atomic.Int64
		r := attribute.NewRegistry[int, order]()
		require.NoError(t, r.Register(attribute.Field[int]("city", func(o order) any {
			calls.Add(1)
			return o.City
		})))

		spec := NewBuilder().Include("city").GroupBy("city").Aggregate(Sum("missing")).MustBuild()
		_, err := Execute[int, order](ctx, spec, newSnapshot(t, sampleOrders()...), r)
		require.ErrorIs(t, err, attribute.ErrUnknownAttribute)

		var uae *attribute.UnknownAttributeError
		require.ErrorAs(t, err, &uae)
		assert.Equal(t, "missing", uae.Name)
		assert.Zero(t, calls.Load())
	})

	t.Run("ExtractionErrorFailsQuery", func(t *testing.T) {
		orders := append(sampleOrders(), order{Customer: "!", City: "NY", Price: 1})
		spec := NewBuilder().Include("customer").GroupBy("customer").Aggregate(Sum("price")).MustBuild()

		_, err := Execute[int, order](ctx, spec, newSnapshot(t, orders...), newRegistry(t))
		require.ErrorIs(t, err, attribute.ErrAttributeExtraction)
		require.ErrorIs(t, err, errMalformed)

		var aee *attribute.AttributeExtractionError
		require.ErrorAs(t, err, &aee)
		assert.Equal(t, "customer", aee.Attribute)
		assert.Equal(t, 4, aee.Key)
	})

	t.Run("SkipExtractionErrors", func(t *testing.T) {
		orders := []order{
			{Customer: "!", City: "NY", Price: 1},
			{Customer: "Alpha", City: "NY", Price: 100},
			{Customer: "!", City: "AZ", Price: 2},
		}
		spec := NewBuilder().Include("city").GroupBy("city").Aggregate(Sum("price"), Count()).
			Where(Ne("customer", "Bravo")).
			MustBuild()

		rs, err := Execute[int, order](ctx, spec, newSnapshot(t, orders...), newRegistry(t), WithSkipExtractionErrors(true))
		require.NoError(t, err)

		assert.Equal(t, [][]attribute.Value{values("NY", 100, 1)}, table(rs))
		diags := rs.Diagnostics()
		require.Len(t, diags, 2)
		for _, d := range diags {
			assert.ErrorIs(t, d, attribute.ErrAttributeExtraction)
		}
	})

	t.Run("NonNumericSum", func(t *testing.T) {
		spec := NewBuilder().Aggregate(Sum("city")).MustBuild()

		_, err := Execute[int, order](ctx, spec, newSnapshot(t, sampleOrders()...), newRegistry(t))
		require.ErrorIs(t, err, attribute.ErrAttributeExtraction)
		require.ErrorIs(t, err, ErrNotNumeric)
	})

	t.Run("NullsAreExcluded", func(t *testing.T) {
		orders := []order{
			{Customer: "Alpha", City: "NY"},
			{Customer: "Alpha", City: "NY"},
			{Customer: "Bravo", City: "AZ", Price: 3},
			{Customer: "Bravo", City: "AZ"},
		}
		spec := NewBuilder().Include("customer").GroupBy("customer").
			Aggregate(Sum("price"), Average("price"), CountOf("price"), Count()).
			MustBuild()

		rs, err := Execute[int, order](ctx, spec, newSnapshot(t, orders...), newRegistry(t))
		require.NoError(t, err)

		assert.Equal(t, [][]attribute.Value{
			{attribute.String("Alpha"), attribute.Null(), attribute.Null(), attribute.Int(0), attribute.Int(2)},
			{attribute.String("Bravo"), attribute.Int(3), attribute.Float(3), attribute.Int(1), attribute.Int(2)},
		}, table(rs))
	})

	t.Run("NullGroupKey", func(t *testing.T) {
		orders := []order{
			{Customer: "Alpha", City: "NY"},
			{Customer: "Bravo", City: "NY", Price: 2},
			{Customer: "Charlie", City: "NY"},
		}
		spec := NewBuilder().Include("customer").GroupBy("price").Aggregate(Count()).MustBuild()

		rs, err := Execute[int, order](ctx, spec, newSnapshot(t, orders...), newRegistry(t))
		require.NoError(t, err)
		assert.Equal(t, [][]attribute.Value{values("Alpha", 2), values("Bravo", 1)}, table(rs))
	})

	t.Run("IntAndFloatShareGroup", func(t *testing.T) {
		orders := []order{
			{Customer: "Alpha", Price: 2},
			{Customer: "Bravo", Price: 2.0},
			{Customer: "Charlie", Price: 2.5},
		}
		spec := NewBuilder().GroupBy("price").Aggregate(Count()).MustBuild()

		rs, err := Execute[int, order](ctx, spec, newSnapshot(t, orders...), newRegistry(t))
		require.NoError(t, err)
		assert.Equal(t, 2, rs.Len())
	})

	t.Run("IntegerOverflow", func(t *testing.T) {
		orders := []order{
			{Customer: "Alpha", Price: int64(math.MaxInt64)},
			{Customer: "Alpha", Price: 1},
		}
		spec := NewBuilder().Aggregate(Sum("price")).MustBuild()

		_, err := Execute[int, order](ctx, spec, newSnapshot(t, orders...), newRegistry(t))
		require.ErrorIs(t, err, ErrIntegerOverflow)
	})

	t.Run("Criteria", func(t *testing.T) {
		spec := NewBuilder().Include("customer").GroupBy("customer").Aggregate(Sum("price")).
			Where(Gte("price", 100), In("city", "NY", "AZ")).
			MustBuild()

		rs, err := Execute[int, order](ctx, spec, newSnapshot(t, sampleOrders()...), newRegistry(t))
		require.NoError(t, err)
		assert.Equal(t, [][]attribute.Value{values("Alpha", 100), values("Bravo", 200)}, table(rs))
	})

	t.Run("OrderByAndMaxResults", func(t *testing.T) {
		orders := []order{
			{Customer: "Charlie", City: "NY", Price: 1},
			{Customer: "Alpha", City: "AZ", Price: 2},
			{Customer: "Bravo", City: "NY", Price: 3},
			{Customer: "Delta", City: "AZ", Price: 4},
		}
		spec := NewBuilder().Include("city", "customer").GroupBy("customer").
			OrderBy("city", Descending).
			OrderBy("customer", Ascending).
			MaxResults(3).
			MustBuild()

		rs, err := Execute[int, order](ctx, spec, newSnapshot(t, orders...), newRegistry(t))
		require.NoError(t, err)
		assert.Equal(t, [][]attribute.Value{
			values("NY", "Bravo"),
			values("NY", "Charlie"),
			values("AZ", "Alpha"),
		}, table(rs))
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		spec := NewBuilder().Aggregate(Count()).MustBuild()
		rs, err := Execute[int, order](cctx, spec, newSnapshot(t, sampleOrders()...), newRegistry(t))
		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, rs)
	})

	t.Run("CancelDuringScan", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var calls atomic.Int64
		r := attribute.NewRegistry[int, order]()
		require.NoError(t, r.Register(attribute.Field[int]("price", func(o order) any {
			if calls.Add(1) == 10 {
				cancel()
			}
			return o.Price
		})))

		orders := make([]order, 3*chunkSize)
		for i := range orders {
			orders[i] = order{Price: i}
		}
		spec := NewBuilder().Aggregate(Sum("price")).MustBuild()

		for _, p := range []int{1, 4} {
			calls.Store(0)
			rs, err := Execute[int, order](cctx, spec, newSnapshot(t, orders...), r, WithParallelism(p))
			require.ErrorIs(t, err, context.Canceled)
			assert.Nil(t, rs)
		}
	})

	t.Run("NilSpec", func(t *testing.T) {
		_, err := Execute[int, order](ctx, nil, newSnapshot(t), newRegistry(t))
		require.ErrorIs(t, err, ErrInvalidQuery)
	})
}

func TestExecuteParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()
	cities := []string{"NY", "AZ", "SFO", "LA", "BOS"}

	orders := make([]order, 5000)
	for i := range orders {
		o := order{
			Customer: fmt.Sprintf("c%02d", i%37),
			City:     cities[i%len(cities)],
			Price:    i % 101,
		}
		if i%13 == 0 {
			o.Price = nil
		}
		if i%97 == 0 {
			o.Customer = "!"
		}
		orders[i] = o
	}
	snap := newSnapshot(t, orders...)

	spec := NewBuilder().
		Include("customer", "city").
		GroupBy("customer", "city").
		Aggregate(Sum("price"), Average("price"), Count(), Min("price"), Max("price")).
		MustBuild()

	seq, err := Execute[int, order](ctx, spec, snap, newRegistry(t), WithSkipExtractionErrors(true))
	require.NoError(t, err)

	for _, p := range []int{2, 3, 8} {
		par, err := Execute[int, order](ctx, spec, snap, newRegistry(t), WithSkipExtractionErrors(true), WithParallelism(p))
		require.NoError(t, err)
		assert.Equal(t, table(seq), table(par), "parallelism %d", p)
		assert.Equal(t, seq.Diagnostics(), par.Diagnostics(), "parallelism %d", p)
	}

	_, seqErr := Execute[int, order](ctx, spec, snap, newRegistry(t))
	_, parErr := Execute[int, order](ctx, spec, snap, newRegistry(t), WithParallelism(4))
	require.Error(t, seqErr)
	assert.Equal(t, seqErr.Error(), parErr.Error())
}

// unindexed hides the index methods of a snapshot.
type unindexed struct {
	Source[int, order]
}

func TestExecuteIndexNarrowing(t *testing.T) {
	ctx := context.Background()
	snap := newSnapshot(t,
		order{Customer: "Alpha", City: "NY", Price: 100},
		order{Customer: "Bravo", City: "AZ", Price: 200},
		order{Customer: "Alpha", City: "SFO", Price: 160},
		order{Customer: "Charlie", City: "NY", Price: 10},
		order{Customer: "Alpha", City: "AZ", Price: 30},
	)

	specs := map[string]*Spec{
		"Eq": NewBuilder().Include("customer").GroupBy("customer").Aggregate(Sum("price")).
			Where(Eq("city", "NY")).MustBuild(),
		"In": NewBuilder().Include("customer").GroupBy("customer").Aggregate(Sum("price")).
			Where(In("city", "AZ", "SFO")).MustBuild(),
		"InWithUnindexed": NewBuilder().Include("city").GroupBy("city").Aggregate(Count()).
			Where(In("city", "AZ", "NY"), Eq("customer", "Alpha")).MustBuild(),
		"Missing": NewBuilder().Aggregate(Count()).
			Where(Eq("city", "LA")).MustBuild(),
	}

	for name, spec := range specs {
		t.Run(name, func(t *testing.T) {
			narrowed, err := Execute[int, order](ctx, spec, snap, newRegistry(t))
			require.NoError(t, err)
			full, err := Execute[int, order](ctx, spec, unindexed{snap}, newRegistry(t))
			require.NoError(t, err)
			assert.Equal(t, table(full), table(narrowed))
		})
	}
}
