package eval

import (
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/syntax"
)

// Tuple is an immutable sequence.
type Tuple []any

// Set is an unordered collection of hashable values. Iteration follows
// insertion order.
type Set struct {
	index map[any]int
	elems []any
}

// NewSet builds a set from values. It fails when a value is unhashable.
func NewSet(values ...any) (*Set, error) {
	s := &Set{index: make(map[any]int, len(values))}
	for _, v := range values {
		if err := s.add(v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) add(v any) error {
	key, err := hashKey(v)
	if err != nil {
		return err
	}
	if _, ok := s.index[key]; ok {
		return nil
	}
	s.index[key] = len(s.elems)
	s.elems = append(s.elems, v)
	return nil
}

// Contains reports membership.
func (s *Set) Contains(v any) (bool, error) {
	key, err := hashKey(v)
	if err != nil {
		return false, err
	}
	_, ok := s.index[key]
	return ok, nil
}

// Len returns the number of elements.
func (s *Set) Len() int { return len(s.elems) }

// Elems returns the elements in insertion order. The slice must not be
// modified.
func (s *Set) Elems() []any { return s.elems }

type tupleKey string

// hashKey maps a value to a comparable key such that values comparing
// equal share a key (1, 1.0 and True are one element).
func hashKey(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, *objectql.Record:
		return x, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case int64:
		return x, nil
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x), nil
		}
		return x, nil
	case Tuple:
		var sb strings.Builder
		for _, elem := range x {
			k, err := hashKey(elem)
			if err != nil {
				return nil, err
			}
			sb.WriteString(Repr(k))
			sb.WriteByte(',')
		}
		return tupleKey(sb.String()), nil
	}
	if objectql.IsNotFound(v) {
		return v, nil
	}
	return nil, errorf(ErrType, "unhashable type: '%s'", TypeName(v))
}

// Truth reports the truth value of v: None, False, zero, empty
// containers and NotFound are false, everything else is true.
func Truth(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case Tuple:
		return len(x) > 0
	case *Set:
		return x.Len() > 0
	case map[string]any:
		return len(x) > 0
	}
	return !objectql.IsNotFound(v)
}

// TypeName returns the name queries and error messages use for the type
// of v.
func TypeName(v any) string {
	switch x := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case []any:
		return "list"
	case Tuple:
		return "tuple"
	case *Set:
		return "set"
	case map[string]any:
		return "dict"
	case *builtin:
		return "builtin_function_or_method"
	case *boundMethod:
		return "builtin_function_or_method"
	case *closure, objectql.Function:
		return "function"
	case objectql.Kinded:
		return x.Kind()
	}
	if objectql.IsNotFound(v) {
		return "NotFound"
	}
	return "object"
}

// Repr renders v the way the query language prints values. Output longer
// than MaxSequenceLength is cut short and ends in "...".
func Repr(v any) string {
	w := reprWriter{limit: MaxSequenceLength}
	w.value(v)
	if w.full() {
		return strings.ToValidUTF8(w.sb.String()[:w.limit], "") + "..."
	}
	return w.sb.String()
}

// Str is the str() conversion: strings are returned as is, everything
// else as its Repr.
func Str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return Repr(v)
}

// toStr is Str for values a query builds: a rendering longer than
// MaxSequenceLength is an ErrLimit error rather than a truncated string.
func toStr(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	w := reprWriter{limit: MaxSequenceLength}
	w.value(v)
	if w.full() {
		return "", errorf(ErrLimit, "string longer than %d", MaxSequenceLength)
	}
	return w.sb.String(), nil
}

// reprWriter renders values into a buffer that stops growing one byte
// past limit. Containers stop walking their elements once it is full, so
// a shared element repeated many times costs at most limit bytes.
type reprWriter struct {
	sb    strings.Builder
	limit int
}

func (w *reprWriter) full() bool { return w.sb.Len() > w.limit }

func (w *reprWriter) write(s string) {
	if rest := w.limit + 1 - w.sb.Len(); len(s) > rest {
		s = s[:max(rest, 0)]
	}
	w.sb.WriteString(s)
}

func (w *reprWriter) value(v any) {
	if w.full() {
		return
	}
	switch x := v.(type) {
	case nil, bool, int64, float64, string:
		w.write(syntax.FormatConstant(x))
	case []any:
		w.write("[")
		w.elems(x)
		w.write("]")
	case Tuple:
		w.write("(")
		w.elems(x)
		if len(x) == 1 {
			w.write(",")
		}
		w.write(")")
	case *Set:
		if x.Len() == 0 {
			w.write("set()")
			return
		}
		w.write("{")
		w.elems(x.Elems())
		w.write("}")
	case map[string]any:
		w.write("{")
		for i, k := range sortedKeys(x) {
			if w.full() {
				return
			}
			if i > 0 {
				w.write(", ")
			}
			w.write(syntax.QuoteString(k) + ": ")
			w.value(x[k])
		}
		w.write("}")
	default:
		w.write(reprOther(v))
	}
}

func (w *reprWriter) elems(values []any) {
	for i, v := range values {
		if w.full() {
			return
		}
		if i > 0 {
			w.write(", ")
		}
		w.value(v)
	}
}

func reprOther(v any) string {
	switch x := v.(type) {
	case tupleKey:
		return string(x)
	case *builtin:
		return "<built-in function " + x.name + ">"
	case *boundMethod:
		return "<built-in method " + x.name + " of " + TypeName(x.recv) + " object>"
	case *closure:
		return "<function <lambda>>"
	case objectql.Function:
		return "<function>"
	case *objectql.Record:
		if x.Handle == "" {
			return "<" + x.Class + ">"
		}
		return "<" + x.Class + " " + x.Handle + ">"
	}
	if objectql.IsNotFound(v) {
		return "NotFound"
	}
	return "<" + TypeName(v) + " object>"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize converts the plain Go values records commonly carry (int,
// float32, []string, map[string]string, ...) into the value types the
// evaluator works with. Unknown types pass through unchanged.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return int64(x)
		}
		return float64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return float64(x)
	case float32:
		return float64(x)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return out
	case []int64:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out
	case []*objectql.Record:
		out := make([]any, len(x))
		for i, r := range x {
			out[i] = r
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out
	case func([]any, map[string]any) (any, error):
		return objectql.Function(x)
	}
	return v
}

// number splits a numeric value into its integer or float form. Booleans
// count as integers.
func number(v any) (i int64, f float64, isFloat, ok bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, 1, false, true
		}
		return 0, 0, false, true
	case int64:
		return x, float64(x), false, true
	case int:
		return int64(x), float64(x), false, true
	case float64:
		return 0, x, true, true
	}
	return 0, 0, false, false
}

// Equal implements ==.
func Equal(a, b any) bool {
	if ai, af, aFloat, ok := number(a); ok {
		bi, bf, bFloat, ok := number(b)
		if !ok {
			return false
		}
		if aFloat || bFloat {
			return af == bf
		}
		return ai == bi
	}

	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		return ok && equalSlices(x, y)
	case Tuple:
		y, ok := b.(Tuple)
		return ok && equalSlices(x, y)
	case *Set:
		y, ok := b.(*Set)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, elem := range x.Elems() {
			if in, _ := y.Contains(elem); !in {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	}
	return identical(a, b)
}

func equalSlices(x, y []any) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if !Equal(x[i], y[i]) {
			return false
		}
	}
	return true
}

// identical compares references. Values whose dynamic type is not
// comparable are never identical.
func identical(a, b any) (same bool) {
	switch a.(type) {
	case objectql.Function, *closure, *builtin, *boundMethod, map[string]any, []any, Tuple:
		return false
	}
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// Is implements the identity operator.
func Is(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case int64:
		y, ok := b.(int64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		return ok && len(x) == len(y) && (len(x) == 0 || &x[0] == &y[0])
	case map[string]any:
		y, ok := b.(map[string]any)
		return ok && sameMap(x, y)
	}
	return identical(a, b)
}

// sameMap reports whether x and y are the same map. Go maps only compare
// to nil, so identity goes through the map header pointer.
func sameMap(x, y map[string]any) bool {
	return reflect.ValueOf(x).UnsafePointer() == reflect.ValueOf(y).UnsafePointer()
}

// Compare orders a and b: -1, 0 or 1. Numbers, strings, lists and tuples
// are ordered; anything else is a type error.
func Compare(a, b any) (int, error) {
	if ai, af, aFloat, ok := number(a); ok {
		if bi, bf, bFloat, ok := number(b); ok {
			if aFloat || bFloat {
				return cmpFloat(af, bf), nil
			}
			return cmpInt(ai, bi), nil
		}
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case []any:
		if y, ok := b.([]any); ok {
			return compareSlices(x, y)
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			return compareSlices(x, y)
		}
	}
	return 0, errorf(ErrType, "ordering not supported between instances of '%s' and '%s'", TypeName(a), TypeName(b))
}

func compareSlices(x, y []any) (int, error) {
	for i := 0; i < len(x) && i < len(y); i++ {
		if Equal(x[i], y[i]) {
			continue
		}
		return Compare(x[i], y[i])
	}
	return cmpInt(int64(len(x)), int64(len(y))), nil
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// iterate returns the elements iterating v produces.
func iterate(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return normalizeAll(x), nil
	case Tuple:
		return normalizeAll(x), nil
	case *Set:
		return x.Elems(), nil
	case string:
		out := make([]any, 0, len(x))
		for _, r := range x {
			out = append(out, string(r))
		}
		return out, nil
	case map[string]any:
		keys := sortedKeys(x)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	}
	return nil, errorf(ErrType, "'%s' object is not iterable", TypeName(v))
}

// normalizeAll returns items with every element normalized, copying only
// when some element changes.
func normalizeAll(items []any) []any {
	for i, item := range items {
		if isNative(item) {
			out := make([]any, len(items))
			copy(out, items[:i])
			for j := i; j < len(items); j++ {
				out[j] = Normalize(items[j])
			}
			return out
		}
	}
	return items
}

// isNative reports whether Normalize would convert v.
func isNative(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, uint, uint8, uint16, uint32, uint64, float32,
		[]string, []int, []int64, []float64, []map[string]any, []*objectql.Record,
		map[string]string, func([]any, map[string]any) (any, error):
		return true
	}
	return false
}

// contains implements the in operator.
func contains(container, item any) (bool, error) {
	switch x := container.(type) {
	case string:
		sub, ok := item.(string)
		if !ok {
			return false, errorf(ErrType, "'in <string>' requires string as left operand, not %s", TypeName(item))
		}
		return strings.Contains(x, sub), nil
	case []any:
		return containsEqual(x, item), nil
	case Tuple:
		return containsEqual(x, item), nil
	case *Set:
		return x.Contains(item)
	case map[string]any:
		if _, err := hashKey(item); err != nil {
			return false, err
		}
		key, ok := item.(string)
		if !ok {
			return false, nil
		}
		_, found := x[key]
		return found, nil
	}
	return false, errorf(ErrType, "argument of type '%s' is not iterable", TypeName(container))
}

func containsEqual(values []any, item any) bool {
	for _, v := range values {
		if Equal(v, item) {
			return true
		}
	}
	return false
}

// toInt converts an index-like value.
func toInt(v any, what string) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, errorf(ErrType, "%s must be integers, not %s", what, TypeName(v))
}
