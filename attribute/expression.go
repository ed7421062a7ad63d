package attribute

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

var errNilPath = errors.New("nil along attribute path")

type pathStep struct {
	name string
	call bool
}

// Expression defines an attribute evaluated from a path expression against
// the entry.
//
// The expression starts at "key" or "value" and is followed by exported
// struct fields or zero-argument methods:
//
//	value.City
//	value.Customer.Name
//	value.TotalPrice()
//
// Pointers are followed transparently; a nil pointer along the path yields
// Null(). Methods may return a single value or a (value, error) pair.
func Expression[K comparable, V any](name, expr string) (Definition[K, V], error) {
	fromKey, steps, err := parseExpression(expr)
	if err != nil {
		return Definition[K, V]{}, err
	}

	ex := ExtractorFunc[K, V](func(key K, value V, _ string) (Value, error) {
		var root reflect.Value
		if fromKey {
			root = reflect.ValueOf(&key).Elem()
		} else {
			root = reflect.ValueOf(&value).Elem()
		}
		out, err := evalPath(root, steps)
		if errors.Is(err, errNilPath) {
			return Null(), nil
		}
		if err != nil {
			return Value{}, fmt.Errorf("evaluate %q: %w", expr, err)
		}
		return FromAny(out)
	})

	return Definition[K, V]{Name: name, Extractor: ex}, nil
}

// MustExpression is like Expression but panics on a malformed expression.
func MustExpression[K comparable, V any](name, expr string) Definition[K, V] {
	d, err := Expression[K, V](name, expr)
	if err != nil {
		panic(err)
	}
	return d
}

func parseExpression(expr string) (fromKey bool, steps []pathStep, err error) {
	parts := strings.Split(strings.TrimSpace(expr), ".")
	switch parts[0] {
	case "key":
		fromKey = true
	case "value":
	default:
		return false, nil, fmt.Errorf("%w: %q must start with key or value", ErrInvalidExpression, expr)
	}

	for _, p := range parts[1:] {
		step := pathStep{name: p}
		if strings.HasSuffix(p, "()") {
			step = pathStep{name: strings.TrimSuffix(p, "()"), call: true}
		}
		if !isExportedIdent(step.name) {
			return false, nil, fmt.Errorf("%w: %q has invalid segment %q", ErrInvalidExpression, expr, p)
		}
		steps = append(steps, step)
	}
	return fromKey, steps, nil
}

func isExportedIdent(s string) bool {
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	if !unicode.IsUpper(r) {
		return false
	}
	for _, c := range s {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			return false
		}
	}
	return true
}

func evalPath(cur reflect.Value, steps []pathStep) (any, error) {
	for _, s := range steps {
		var err error
		if s.call {
			cur, err = callMethod(cur, s.name)
		} else {
			cur, err = field(cur, s.name)
		}
		if err != nil {
			return nil, err
		}
	}

	cur, err := indirect(cur)
	if err != nil {
		return nil, err
	}
	return cur.Interface(), nil
}

func indirect(v reflect.Value) (reflect.Value, error) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}, errNilPath
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return reflect.Value{}, errNilPath
	}
	return v, nil
}

func field(v reflect.Value, name string) (reflect.Value, error) {
	v, err := indirect(v)
	if err != nil {
		return reflect.Value{}, err
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("field %s on non-struct %s", name, v.Type())
	}
	f := v.FieldByName(name)
	if !f.IsValid() {
		return reflect.Value{}, fmt.Errorf("type %s has no field %s", v.Type(), name)
	}
	return f, nil
}

func callMethod(v reflect.Value, name string) (reflect.Value, error) {
	if !v.IsValid() || ((v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil()) {
		return reflect.Value{}, errNilPath
	}
	m := lookupMethod(v, name)
	if !m.IsValid() {
		return reflect.Value{}, fmt.Errorf("type %s has no method %s", v.Type(), name)
	}

	mt := m.Type()
	if mt.NumIn() != 0 || mt.NumOut() == 0 || mt.NumOut() > 2 {
		return reflect.Value{}, fmt.Errorf("method %s must take no arguments and return (T) or (T, error)", name)
	}
	if mt.NumOut() == 2 && !mt.Out(1).Implements(reflect.TypeFor[error]()) {
		return reflect.Value{}, fmt.Errorf("method %s second result must be error", name)
	}

	out := m.Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		return reflect.Value{}, out[1].Interface().(error)
	}
	return out[0], nil
}

func lookupMethod(v reflect.Value, name string) reflect.Value {
	for v.IsValid() {
		if m := v.MethodByName(name); m.IsValid() {
			return m
		}
		if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface && v.CanAddr() {
			if m := v.Addr().MethodByName(name); m.IsValid() {
				return m
			}
		}
		if (v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface) || v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return reflect.Value{}
}
