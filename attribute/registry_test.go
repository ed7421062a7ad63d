package attribute

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderRegistry(t *testing.T) *Registry[int, order] {
	t.Helper()

	r := NewRegistry[int, order]()
	require.NoError(t, r.Register(
		Field[int]("price", func(o order) any { return o.Price }),
		MustExpression[int, order]("city", "value.City"),
		Custom[int, order]("customer", ExtractorFunc[int, order](func(_ int, o order, _ string) (Value, error) {
			if o.Customer == nil {
				return Value{}, errors.New("malformed order")
			}
			return String(o.Customer.Name), nil
		})),
		KeyField[int, order]("id"),
	))
	return r
}

func TestRegistry(t *testing.T) {
	t.Run("Resolve", func(t *testing.T) {
		r := newOrderRegistry(t)
		o := order{Price: 70, City: "NY", Customer: &customer{Name: "Alpha"}}

		for name, want := range map[string]Value{
			"price":    Int(70),
			"city":     String("NY"),
			"customer": String("Alpha"),
			"id":       Int(3),
		} {
			ex, err := r.Resolve(name)
			require.NoError(t, err)
			v, err := ex.AttributeFor(3, o, name)
			require.NoError(t, err)
			assert.True(t, Equal(want, v), "%s: got %v", name, v)
		}

		assert.Equal(t, []string{"price", "city", "customer", "id"}, r.Names())
		assert.Equal(t, 4, r.Len())
	})

	t.Run("Unknown", func(t *testing.T) {
		r := newOrderRegistry(t)
		_, err := r.Resolve("missing")
		require.ErrorIs(t, err, ErrUnknownAttribute)

		var uae *UnknownAttributeError
		require.ErrorAs(t, err, &uae)
		assert.Equal(t, "missing", uae.Name)
	})

	t.Run("Duplicate", func(t *testing.T) {
		r := newOrderRegistry(t)
		err := r.Register(Field[int]("price", func(o order) any { return o.Price }))
		require.ErrorIs(t, err, ErrDuplicateAttribute)

		var dae *DuplicateAttributeError
		require.ErrorAs(t, err, &dae)
		assert.Equal(t, "price", dae.Name)
	})

	t.Run("DuplicateWithinCallIsAtomic", func(t *testing.T) {
		r := NewRegistry[int, order]()
		err := r.Register(
			Field[int]("a", func(o order) any { return o.Price }),
			Field[int]("a", func(o order) any { return o.City }),
		)
		require.ErrorIs(t, err, ErrDuplicateAttribute)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("Invalid", func(t *testing.T) {
		r := NewRegistry[int, order]()
		assert.ErrorIs(t, r.Register(Definition[int, order]{}), ErrEmptyName)
		assert.ErrorIs(t, r.Register(Definition[int, order]{Name: "x"}), ErrNilExtractor)
	})

	t.Run("DeclaredType", func(t *testing.T) {
		r := NewRegistry[int, order]()
		require.NoError(t, r.Register(
			MustExpression[int, order]("city", "value.City").WithType(FieldTypeInt),
		))

		ft, ok := r.Type("city")
		assert.True(t, ok)
		assert.Equal(t, FieldTypeInt, ft)

		ex, err := r.Resolve("city")
		require.NoError(t, err)
		_, err = ex.AttributeFor(1, order{City: "NY"}, "city")
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("RegisterExtractor", func(t *testing.T) {
		r := NewRegistry[int, order]()
		require.NoError(t, r.RegisterExtractor("const", ExtractorFunc[int, order](func(int, order, string) (Value, error) {
			return Int(1), nil
		})))
		_, err := r.Resolve("const")
		assert.NoError(t, err)
	})

	t.Run("ConcurrentResolve", func(t *testing.T) {
		r := newOrderRegistry(t)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					_, err := r.Resolve("price")
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()
	})
}

func TestExtractionError(t *testing.T) {
	cause := errors.New("boom")
	err := NewExtractionError("price", 7, cause)

	assert.ErrorIs(t, err, ErrAttributeExtraction)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, `extract attribute "price" for key 7: boom`, err.Error())
}
