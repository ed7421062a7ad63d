// Package attribute provides typed attribute values and the extractor registry
// used by the query engine.
//
// An attribute is a named scalar derived from a cache entry. Attributes are
// defined in one of three ways and registered in a Registry:
//
//   - Field: a direct accessor on the cached value
//   - Expression: a reflection path such as "value.Customer.Name" or "value.Total()"
//   - Custom: any Extractor implementation
//
// Example:
//
//	reg := attribute.NewRegistry[int, Order]()
//	err := reg.Register(
//	    attribute.Field[int]("price", func(o Order) any { return o.Price }),
//	    attribute.MustExpression[int, Order]("city", "value.City"),
//	    attribute.Custom[int, Order]("customer", customerExtractor{}),
//	)
//
// # Values
//
// Values are null, int, float, string or bool. Equal and Key define the
// equality used for grouping: numbers compare by value regardless of
// representation, strings compare exactly and null equals null. Compare
// defines the natural ordering used by MIN, MAX and ordered results.
package attribute
