package attribute

import "fmt"

// FieldType defines the declared data type of an attribute.
type FieldType uint8

const (
	FieldTypeAny FieldType = iota
	FieldTypeInt
	FieldTypeFloat
	FieldTypeString
	FieldTypeBool
)

// String returns the string representation of the FieldType.
func (t FieldType) String() string {
	switch t {
	case FieldTypeAny:
		return "Any"
	case FieldTypeInt:
		return "Int"
	case FieldTypeFloat:
		return "Float"
	case FieldTypeString:
		return "String"
	case FieldTypeBool:
		return "Bool"
	default:
		return "Unknown"
	}
}

// Check verifies that v conforms to the field type. Null always conforms.
func (t FieldType) Check(v Value) error {
	if !checkKind(v.kind, t) {
		return fmt.Errorf("%w: got %s, expected %s", ErrTypeMismatch, v.kind, t)
	}
	return nil
}

func checkKind(k Kind, expected FieldType) bool {
	if k == KindNull {
		return true
	}
	switch expected {
	case FieldTypeAny:
		return k != KindInvalid
	case FieldTypeInt:
		return k == KindInt
	case FieldTypeFloat:
		return k == KindFloat || k == KindInt // Allow upgrading Int to Float
	case FieldTypeString:
		return k == KindString
	case FieldTypeBool:
		return k == KindBool
	}
	return false
}
