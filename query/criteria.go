package query

import (
	"strings"

	"github.com/hupe1980/searchcache/attribute"
)

// Operator represents a comparison operator for criteria.
type Operator string

const (
	// OpEqual represents the equality operator.
	OpEqual Operator = "eq"
	// OpNotEqual represents the inequality operator.
	OpNotEqual Operator = "ne"
	// OpGreaterThan represents the greater than operator.
	OpGreaterThan Operator = "gt"
	// OpGreaterEqual represents the greater than or equal operator.
	OpGreaterEqual Operator = "gte"
	// OpLessThan represents the less than operator.
	OpLessThan Operator = "lt"
	// OpLessEqual represents the less than or equal operator.
	OpLessEqual Operator = "lte"
	// OpIn represents the in list operator.
	OpIn Operator = "in"
	// OpContains represents the contains substring operator.
	OpContains Operator = "contains"
	// OpIsNull matches null values.
	OpIsNull Operator = "isnull"
)

// Criterion is a single condition on an attribute. A query matches a record
// when all of its criteria match.
type Criterion struct {
	Attribute string
	Operator  Operator
	Values    []attribute.Value
	err       error
}

func newCriterion(attr string, op Operator, vals ...any) Criterion {
	c := Criterion{Attribute: attr, Operator: op, Values: make([]attribute.Value, 0, len(vals))}
	for _, raw := range vals {
		v, err := attribute.FromAny(raw)
		if err != nil {
			c.err = err
			return c
		}
		c.Values = append(c.Values, v)
	}
	return c
}

// Eq matches attr == v.
func Eq(attr string, v any) Criterion { return newCriterion(attr, OpEqual, v) }

// Ne matches attr != v. Null attribute values never match.
func Ne(attr string, v any) Criterion { return newCriterion(attr, OpNotEqual, v) }

// Gt matches attr > v.
func Gt(attr string, v any) Criterion { return newCriterion(attr, OpGreaterThan, v) }

// Gte matches attr >= v.
func Gte(attr string, v any) Criterion { return newCriterion(attr, OpGreaterEqual, v) }

// Lt matches attr < v.
func Lt(attr string, v any) Criterion { return newCriterion(attr, OpLessThan, v) }

// Lte matches attr <= v.
func Lte(attr string, v any) Criterion { return newCriterion(attr, OpLessEqual, v) }

// In matches attr equal to any of vals.
func In(attr string, vals ...any) Criterion { return newCriterion(attr, OpIn, vals...) }

// Contains matches string attributes containing substr.
func Contains(attr, substr string) Criterion { return newCriterion(attr, OpContains, substr) }

// IsNull matches null attribute values.
func IsNull(attr string) Criterion { return newCriterion(attr, OpIsNull) }

func (c Criterion) validate() error {
	if c.Attribute == "" {
		return invalidf("criterion attribute name must not be empty")
	}
	if c.err != nil {
		return invalidf("criterion on %q: %v", c.Attribute, c.err)
	}

	switch c.Operator {
	case OpIsNull:
		return nil
	case OpIn:
		if len(c.Values) == 0 {
			return invalidf("IN on %q requires at least one value", c.Attribute)
		}
		return nil
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual, OpContains:
		if len(c.Values) != 1 {
			return invalidf("operator %s on %q requires exactly one value", c.Operator, c.Attribute)
		}
		if c.Operator == OpContains && c.Values[0].Kind() != attribute.KindString {
			return invalidf("contains on %q requires a string", c.Attribute)
		}
		return nil
	default:
		return invalidf("unsupported operator %q", c.Operator)
	}
}

// Matches reports whether v satisfies the criterion.
func (c Criterion) Matches(v attribute.Value) bool {
	if c.Operator == OpIsNull {
		return v.IsNull()
	}
	if v.IsNull() {
		return false
	}

	switch c.Operator {
	case OpEqual:
		return attribute.Equal(v, c.Values[0])
	case OpNotEqual:
		return !attribute.Equal(v, c.Values[0])
	case OpGreaterThan:
		return sameDomain(v, c.Values[0]) && attribute.Compare(v, c.Values[0]) > 0
	case OpGreaterEqual:
		return sameDomain(v, c.Values[0]) && attribute.Compare(v, c.Values[0]) >= 0
	case OpLessThan:
		return sameDomain(v, c.Values[0]) && attribute.Compare(v, c.Values[0]) < 0
	case OpLessEqual:
		return sameDomain(v, c.Values[0]) && attribute.Compare(v, c.Values[0]) <= 0
	case OpIn:
		for _, item := range c.Values {
			if attribute.Equal(v, item) {
				return true
			}
		}
		return false
	case OpContains:
		s, ok := v.AsString()
		if !ok {
			return false
		}
		sub, _ := c.Values[0].AsString()
		return strings.Contains(s, sub)
	default:
		return false
	}
}

// sameDomain reports whether a and b share an ordering domain.
func sameDomain(a, b attribute.Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		return true
	}
	return a.Kind() == b.Kind() && !a.IsNull()
}
