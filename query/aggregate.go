package query

import "fmt"

// Func identifies an aggregate function.
type Func uint8

const (
	// FuncSum sums the non-null numeric values of an attribute.
	FuncSum Func = iota + 1
	// FuncAverage averages the non-null numeric values of an attribute.
	FuncAverage
	// FuncCount counts records, or the non-null values of an attribute.
	FuncCount
	// FuncMin returns the smallest non-null value of an attribute.
	FuncMin
	// FuncMax returns the largest non-null value of an attribute.
	FuncMax
)

// String returns the SQL name of the function.
func (f Func) String() string {
	switch f {
	case FuncSum:
		return "SUM"
	case FuncAverage:
		return "AVERAGE"
	case FuncCount:
		return "COUNT"
	case FuncMin:
		return "MIN"
	case FuncMax:
		return "MAX"
	default:
		return fmt.Sprintf("Func(%d)", uint8(f))
	}
}

func (f Func) valid() bool {
	return f >= FuncSum && f <= FuncMax
}

// Aggregation pairs an aggregate function with its source attribute.
// COUNT without an attribute counts records.
type Aggregation struct {
	Func      Func
	Attribute string
}

// String implements fmt.Stringer.
func (a Aggregation) String() string {
	if a.Attribute == "" {
		return a.Func.String() + "(*)"
	}
	return a.Func.String() + "(" + a.Attribute + ")"
}

// Sum returns SUM(attr).
func Sum(attr string) Aggregation { return Aggregation{Func: FuncSum, Attribute: attr} }

// Average returns AVERAGE(attr).
func Average(attr string) Aggregation { return Aggregation{Func: FuncAverage, Attribute: attr} }

// Count returns COUNT(*).
func Count() Aggregation { return Aggregation{Func: FuncCount} }

// CountOf returns COUNT(attr), counting non-null values.
func CountOf(attr string) Aggregation { return Aggregation{Func: FuncCount, Attribute: attr} }

// Min returns MIN(attr).
func Min(attr string) Aggregation { return Aggregation{Func: FuncMin, Attribute: attr} }

// Max returns MAX(attr).
func Max(attr string) Aggregation { return Aggregation{Func: FuncMax, Attribute: attr} }
