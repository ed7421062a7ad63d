package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Run("Immutable", func(t *testing.T) {
		base := NewBuilder().Include("customer")
		a := base.Include("city")
		b := base.Include("price")

		sa, err := a.Build()
		require.NoError(t, err)
		sb, err := b.Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"customer", "city"}, sa.Projections())
		assert.Equal(t, []string{"customer", "price"}, sb.Projections())
	})

	t.Run("Attributes", func(t *testing.T) {
		spec, err := NewBuilder().
			Include("customer", "city").
			GroupBy("city", "customer").
			Aggregate(Sum("price"), Count(), Max("price")).
			Where(Gt("price", 10)).
			Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"price", "city", "customer"}, spec.Attributes())
		assert.True(t, spec.HasAggregations())
		assert.Equal(t, []Aggregation{Sum("price"), Count(), Max("price")}, spec.Aggregations())
	})

	t.Run("SpecAccessorsReturnCopies", func(t *testing.T) {
		spec := NewBuilder().Include("a").GroupBy("b").MustBuild()
		p := spec.Projections()
		p[0] = "mutated"
		g := spec.GroupBy()
		g[0] = "mutated"
		assert.Equal(t, []string{"a"}, spec.Projections())
		assert.Equal(t, []string{"b"}, spec.GroupBy())
	})

	t.Run("Invalid", func(t *testing.T) {
		tests := []struct {
			name string
			b    Builder
		}{
			{"EmptyProjection", NewBuilder().Include("")},
			{"DuplicateProjection", NewBuilder().Include("a", "a")},
			{"DuplicateGroupBy", NewBuilder().GroupBy("a").GroupBy("a")},
			{"EmptyGroupBy", NewBuilder().GroupBy("")},
			{"DuplicateAggregation", NewBuilder().Aggregate(Sum("a"), Sum("a"))},
			{"SumWithoutAttribute", NewBuilder().Aggregate(Aggregation{Func: FuncSum})},
			{"UnknownFunc", NewBuilder().Aggregate(Aggregation{Func: Func(42), Attribute: "a"})},
			{"ZeroFunc", NewBuilder().Aggregate(Aggregation{Attribute: "a"})},
			{"EmptyIn", NewBuilder().Where(In("a"))},
			{"UnknownOperator", NewBuilder().Where(Criterion{Attribute: "a", Operator: "like"})},
			{"EmptyCriterionAttribute", NewBuilder().Where(Eq("", 1))},
			{"UnsupportedCriterionValue", NewBuilder().Where(Eq("a", struct{}{}))},
			{"OrderByNotProjected", NewBuilder().Include("a").OrderBy("b", Ascending)},
			{"BadDirection", NewBuilder().Include("a").OrderBy("a", Direction(9))},
			{"NegativeMaxResults", NewBuilder().MaxResults(-1)},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := tt.b.Build()
				require.ErrorIs(t, err, ErrInvalidQuery)

				var iqe *InvalidQueryError
				require.ErrorAs(t, err, &iqe)
				assert.NotEmpty(t, iqe.Reason)
			})
		}
	})

	t.Run("SameAttributeInDifferentRoles", func(t *testing.T) {
		_, err := NewBuilder().
			Include("city").
			GroupBy("city").
			Aggregate(Min("city"), CountOf("city")).
			Build()
		require.NoError(t, err)
	})

	t.Run("MustBuildPanics", func(t *testing.T) {
		assert.Panics(t, func() { NewBuilder().Include("").MustBuild() })
	})
}

func TestAggregationString(t *testing.T) {
	assert.Equal(t, "SUM(price)", Sum("price").String())
	assert.Equal(t, "AVERAGE(price)", Average("price").String())
	assert.Equal(t, "COUNT(*)", Count().String())
	assert.Equal(t, "COUNT(city)", CountOf("city").String())
	assert.Equal(t, "MIN(price)", Min("price").String())
	assert.Equal(t, "MAX(price)", Max("price").String())
	assert.Equal(t, "Func(42)", Func(42).String())
}
