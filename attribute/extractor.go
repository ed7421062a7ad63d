package attribute

// Extractor derives an attribute value from a cache entry.
//
// Implementations must be pure functions of (key, value, name) and safe for
// concurrent use: the query engine may call them from several goroutines.
// Within one query each attribute is extracted at most once per entry and the
// value is reused for criteria, grouping, aggregation and projection.
type Extractor[K comparable, V any] interface {
	AttributeFor(key K, value V, name string) (Value, error)
}

// ExtractorFunc is an adapter to allow the use of ordinary functions as extractors.
type ExtractorFunc[K comparable, V any] func(key K, value V, name string) (Value, error)

// AttributeFor calls f(key, value, name).
func (f ExtractorFunc[K, V]) AttributeFor(key K, value V, name string) (Value, error) {
	return f(key, value, name)
}

// Definition binds an attribute name to the extractor that produces it.
type Definition[K comparable, V any] struct {
	Name      string
	Type      FieldType
	Extractor Extractor[K, V]
}

// WithType returns a copy of the definition that rejects values not matching t.
func (d Definition[K, V]) WithType(t FieldType) Definition[K, V] {
	d.Type = t
	return d
}

// Field defines an attribute backed by a direct accessor on the cached value.
// The accessor result is converted with FromAny.
//
// Example:
//
//	attribute.Field[int]("price", func(o Order) any { return o.Price })
func Field[K comparable, V any](name string, get func(V) any) Definition[K, V] {
	return Definition[K, V]{
		Name: name,
		Extractor: ExtractorFunc[K, V](func(_ K, value V, _ string) (Value, error) {
			return FromAny(get(value))
		}),
	}
}

// KeyField defines an attribute that exposes the entry key.
func KeyField[K comparable, V any](name string) Definition[K, V] {
	return Definition[K, V]{
		Name: name,
		Extractor: ExtractorFunc[K, V](func(key K, _ V, _ string) (Value, error) {
			return FromAny(key)
		}),
	}
}

// Custom defines an attribute backed by a user supplied extractor.
func Custom[K comparable, V any](name string, ex Extractor[K, V]) Definition[K, V] {
	return Definition[K, V]{Name: name, Extractor: ex}
}

// typedExtractor enforces a declared FieldType on extracted values.
type typedExtractor[K comparable, V any] struct {
	inner Extractor[K, V]
	typ   FieldType
}

func (t typedExtractor[K, V]) AttributeFor(key K, value V, name string) (Value, error) {
	v, err := t.inner.AttributeFor(key, value, name)
	if err != nil {
		return Value{}, err
	}
	if err := t.typ.Check(v); err != nil {
		return Value{}, err
	}
	return v, nil
}

// extractor returns the uniform extractor stored by the registry.
func (d Definition[K, V]) extractor() Extractor[K, V] {
	if d.Type == FieldTypeAny {
		return d.Extractor
	}
	return typedExtractor[K, V]{inner: d.Extractor, typ: d.Type}
}
