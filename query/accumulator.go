package query

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/hupe1980/searchcache/attribute"
)

// accumulator is the running state of one aggregation within one group.
//
// It is a tagged variant: fn selects which fields are meaningful. SUM and
// AVERAGE share the numeric state, MIN and MAX share the extremum.
type accumulator struct {
	fn Func

	// count of contributing (non-null) values, or records for COUNT(*).
	count int64

	// 128-bit two's complement integer sum.
	hi int64
	lo uint64
	// sum of float inputs; sawFloat switches SUM to a float result.
	fsum     float64
	sawFloat bool

	best    attribute.Value
	hasBest bool
}

func newAccumulator(fn Func) accumulator {
	return accumulator{fn: fn}
}

// add folds v into the running state. Null values never contribute.
// SUM and AVERAGE require numeric input; the executor checks that up front.
func (a *accumulator) add(v attribute.Value) {
	if v.IsNull() {
		return
	}

	switch a.fn {
	case FuncCount:
		a.count++
	case FuncSum, FuncAverage:
		a.count++
		if i, ok := v.AsInt64(); ok {
			a.addInt(i)
			return
		}
		f, _ := v.AsFloat64()
		a.fsum += f
		a.sawFloat = true
	case FuncMin:
		if !a.hasBest || attribute.Compare(v, a.best) < 0 {
			a.best, a.hasBest = v, true
		}
	case FuncMax:
		if !a.hasBest || attribute.Compare(v, a.best) > 0 {
			a.best, a.hasBest = v, true
		}
	}
}

func (a *accumulator) addInt(x int64) {
	var carry uint64
	a.lo, carry = bits.Add64(a.lo, uint64(x), 0)
	a.hi += (x >> 63) + int64(carry)
}

// intSum returns the integer sum if it fits into int64.
func (a *accumulator) intSum() (int64, bool) {
	return int64(a.lo), a.hi == int64(a.lo)>>63
}

// floatSum converts the 128-bit integer sum to float64 and adds the float sum.
func (a *accumulator) floatSum() float64 {
	if s, ok := a.intSum(); ok {
		return float64(s) + a.fsum
	}

	hi, lo, sign := a.hi, a.lo, 1.0
	if hi < 0 {
		// two's-complement negation of hi:lo
		var borrow uint64
		lo, borrow = bits.Sub64(0, lo, 0)
		hi = -hi - int64(borrow)
		sign = -1
	}
	return sign*(float64(uint64(hi))*math.Exp2(64)+float64(lo)) + a.fsum
}

// result finalizes the accumulator.
func (a *accumulator) result() (attribute.Value, error) {
	switch a.fn {
	case FuncCount:
		return attribute.Int(a.count), nil
	case FuncSum:
		if a.count == 0 {
			return attribute.Null(), nil
		}
		if a.sawFloat {
			return attribute.Float(a.floatSum()), nil
		}
		s, ok := a.intSum()
		if !ok {
			return attribute.Value{}, ErrIntegerOverflow
		}
		return attribute.Int(s), nil
	case FuncAverage:
		if a.count == 0 {
			return attribute.Null(), nil
		}
		return attribute.Float(a.floatSum() / float64(a.count)), nil
	case FuncMin, FuncMax:
		if !a.hasBest {
			return attribute.Null(), nil
		}
		return a.best, nil
	default:
		return attribute.Value{}, fmt.Errorf("unsupported aggregate function %s", a.fn)
	}
}
