package eval

import (
	"github.com/dsblank/object-ql/objectql"
)

// GetAttr is the guarded accessor queries reach as get_attr(target,
// name). It returns the attribute of target if present, else the mapping
// entry of that name, else objectql.NotFound. It never fails.
func GetAttr(target any, name string) any {
	if v, ok := lookupAttr(target, name); ok {
		return v
	}
	if m, ok := target.(map[string]any); ok {
		if v, ok := m[name]; ok {
			return Normalize(v)
		}
	}
	return objectql.NotFound
}

// HasAttr reports whether target has the attribute.
func HasAttr(target any, name string) bool {
	_, ok := lookupAttr(target, name)
	return ok
}

// attribute is strict attribute access, X.name.
func attribute(target any, name string) (any, error) {
	if v, ok := lookupAttr(target, name); ok {
		return v, nil
	}
	return nil, errorf(ErrAttribute, "'%s' object has no attribute '%s'", TypeName(target), name)
}

// lookupAttr dispatches on what target is: a struct-like Object, or a
// builtin value with a method table.
func lookupAttr(target any, name string) (any, bool) {
	if obj, ok := target.(objectql.Object); ok {
		v, ok := obj.Attr(name)
		if !ok {
			return nil, false
		}
		return Normalize(v), true
	}
	if m, ok := methodFor(target, name); ok {
		return &boundMethod{name: name, recv: target, fn: m}, true
	}
	return nil, false
}

// sliceValue is the evaluated lower:upper:step of a subscript.
type sliceValue struct {
	lower, upper, step any
}

// index implements container[key].
func index(container, key any) (any, error) {
	switch x := container.(type) {
	case []any:
		if s, ok := key.(*sliceValue); ok {
			return sliceItems(x, s)
		}
		return sequenceItem(x, key, "list")
	case Tuple:
		if s, ok := key.(*sliceValue); ok {
			out, err := sliceItems(x, s)
			if err != nil {
				return nil, err
			}
			return Tuple(out), nil
		}
		return sequenceItem(x, key, "tuple")
	case string:
		runes := []rune(x)
		if s, ok := key.(*sliceValue); ok {
			idx, err := sliceIndices(len(runes), s)
			if err != nil {
				return nil, err
			}
			out := make([]rune, len(idx))
			for i, j := range idx {
				out[i] = runes[j]
			}
			return string(out), nil
		}
		i, err := normalizeIndex(key, len(runes), "string")
		if err != nil {
			return nil, err
		}
		return string(runes[i]), nil
	case map[string]any:
		if _, err := hashKey(key); err != nil {
			return nil, err
		}
		if k, ok := key.(string); ok {
			if v, ok := x[k]; ok {
				return Normalize(v), nil
			}
		}
		return nil, errorf(ErrKey, "%s", Repr(key))
	}
	return nil, errorf(ErrType, "'%s' object is not subscriptable", TypeName(container))
}

func sequenceItem(items []any, key any, kind string) (any, error) {
	i, err := normalizeIndex(key, len(items), kind)
	if err != nil {
		return nil, err
	}
	return Normalize(items[i]), nil
}

func normalizeIndex(key any, length int, kind string) (int, error) {
	i, err := toInt(key, kind+" indices")
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, errorf(ErrIndex, "%s index out of range", kind)
	}
	return int(i), nil
}

func sliceItems(items []any, s *sliceValue) ([]any, error) {
	idx, err := sliceIndices(len(items), s)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(idx))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out, nil
}

// sliceIndices resolves a slice against a sequence of the given length,
// clamping out-of-range bounds.
func sliceIndices(length int, s *sliceValue) ([]int, error) {
	step := int64(1)
	if s.step != nil {
		var err error
		if step, err = toInt(s.step, "slice indices"); err != nil {
			return nil, err
		}
		if step == 0 {
			return nil, errorf(ErrValue, "slice step cannot be zero")
		}
	}

	n := int64(length)
	lowerDefault, upperDefault := int64(0), n
	if step < 0 {
		lowerDefault, upperDefault = n-1, -1
	}

	clamp := func(v any, def int64) (int64, error) {
		if v == nil {
			return def, nil
		}
		i, err := toInt(v, "slice indices")
		if err != nil {
			return 0, err
		}
		if i < 0 {
			i += n
			if i < 0 {
				if step < 0 {
					return -1, nil
				}
				return 0, nil
			}
		}
		if i >= n {
			if step < 0 {
				return n - 1, nil
			}
			return n, nil
		}
		return i, nil
	}

	lower, err := clamp(s.lower, lowerDefault)
	if err != nil {
		return nil, err
	}
	upper, err := clamp(s.upper, upperDefault)
	if err != nil {
		return nil, err
	}

	var idx []int
	if step > 0 {
		for i := lower; i < upper; i += step {
			idx = append(idx, int(i))
		}
	} else {
		for i := lower; i > upper; i += step {
			idx = append(idx, int(i))
		}
	}
	return idx, nil
}
