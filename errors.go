package searchcache

import (
	"errors"
	"fmt"

	"github.com/hupe1980/searchcache/attribute"
	"github.com/hupe1980/searchcache/query"
	"github.com/hupe1980/searchcache/resource"
)

var (
	// ErrInvalidQuery is returned when a query is structurally invalid.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUnknownAttribute is returned when a query or index names an
	// attribute that is not registered.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrAttributeExtraction is returned when an attribute cannot be read
	// from a cached entry.
	ErrAttributeExtraction = errors.New("attribute extraction failed")

	// ErrDuplicateAttribute is returned when an attribute name is registered twice.
	ErrDuplicateAttribute = errors.New("duplicate attribute")

	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("cache is closed")

	// ErrQueryLimit is returned when the resource controller rejects a query.
	ErrQueryLimit = errors.New("query limit exceeded")

	// ErrNotNumeric indicates a non-numeric value fed into SUM or AVERAGE.
	ErrNotNumeric = query.ErrNotNumeric

	// ErrIntegerOverflow indicates an integer SUM that does not fit into int64.
	ErrIntegerOverflow = query.ErrIntegerOverflow
)

// translateError maps package errors onto the root sentinels. The original
// error stays in the chain, so typed errors such as
// *attribute.AttributeExtractionError remain reachable through errors.As.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, query.ErrInvalidQuery):
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	case errors.Is(err, attribute.ErrUnknownAttribute):
		return fmt.Errorf("%w: %w", ErrUnknownAttribute, err)
	case errors.Is(err, attribute.ErrAttributeExtraction):
		return fmt.Errorf("%w: %w", ErrAttributeExtraction, err)
	case errors.Is(err, attribute.ErrDuplicateAttribute):
		return fmt.Errorf("%w: %w", ErrDuplicateAttribute, err)
	case errors.Is(err, resource.ErrLimitExceeded):
		return fmt.Errorf("%w: %w", ErrQueryLimit, err)
	}

	return err
}
