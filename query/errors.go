package query

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is matched by InvalidQueryError.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNotNumeric indicates a non-numeric value fed into SUM or AVERAGE.
	ErrNotNumeric = errors.New("value is not numeric")
	// ErrIntegerOverflow indicates an integer SUM that does not fit into int64.
	ErrIntegerOverflow = errors.New("integer sum overflows int64")
)

// InvalidQueryError indicates a structural violation detected while building a query.
type InvalidQueryError struct {
	Reason string
}

func invalidf(format string, args ...any) *InvalidQueryError {
	return &InvalidQueryError{Reason: fmt.Sprintf(format, args...)}
}

func (e *InvalidQueryError) Error() string {
	return "invalid query: " + e.Reason
}

func (e *InvalidQueryError) Is(target error) bool { return target == ErrInvalidQuery }
