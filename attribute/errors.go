package attribute

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateAttribute is matched by DuplicateAttributeError.
	ErrDuplicateAttribute = errors.New("duplicate attribute")
	// ErrUnknownAttribute is matched by UnknownAttributeError.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrAttributeExtraction is matched by AttributeExtractionError.
	ErrAttributeExtraction = errors.New("attribute extraction failed")
	// ErrEmptyName is returned when an attribute is registered without a name.
	ErrEmptyName = errors.New("attribute name must not be empty")
	// ErrInvalidExpression is returned for malformed attribute expressions.
	ErrInvalidExpression = errors.New("invalid attribute expression")
	// ErrNilExtractor is returned when a definition carries no extractor.
	ErrNilExtractor = errors.New("attribute extractor must not be nil")
	// ErrInvalidValue is returned when an extractor yields the zero (invalid) Value.
	ErrInvalidValue = errors.New("extractor returned an invalid value")
	// ErrTypeMismatch indicates an extracted value that does not match the declared type.
	ErrTypeMismatch = errors.New("attribute type mismatch")
)

// DuplicateAttributeError indicates a name collision during registration.
type DuplicateAttributeError struct {
	Name string
}

func (e *DuplicateAttributeError) Error() string {
	return fmt.Sprintf("duplicate attribute: %q is already registered", e.Name)
}

func (e *DuplicateAttributeError) Is(target error) bool { return target == ErrDuplicateAttribute }

// UnknownAttributeError indicates an attribute name without a registered extractor.
type UnknownAttributeError struct {
	Name string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("unknown attribute: %q", e.Name)
}

func (e *UnknownAttributeError) Is(target error) bool { return target == ErrUnknownAttribute }

// AttributeExtractionError indicates that an extractor failed for a specific record.
//
// The original underlying error can be accessed via errors.Unwrap.
type AttributeExtractionError struct {
	Attribute string
	Key       any
	cause     error
}

// NewExtractionError wraps cause as an extraction failure of attribute for the record with key.
func NewExtractionError(attribute string, key any, cause error) *AttributeExtractionError {
	return &AttributeExtractionError{Attribute: attribute, Key: key, cause: cause}
}

func (e *AttributeExtractionError) Error() string {
	return fmt.Sprintf("extract attribute %q for key %v: %v", e.Attribute, e.Key, e.cause)
}

func (e *AttributeExtractionError) Unwrap() error { return e.cause }

func (e *AttributeExtractionError) Is(target error) bool { return target == ErrAttributeExtraction }
