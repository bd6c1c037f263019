package eval

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dsblank/object-ql/objectql/syntax"
)

type builtinFunc func(s *state, args []any, kwargs map[string]any) (any, error)

// builtin is a function every query can call without it being bound in
// the environment. Bindings of the same name shadow it.
type builtin struct {
	name string
	fn   builtinFunc
}

var builtins map[string]*builtin

func init() {
	builtins = make(map[string]*builtin)
	register := func(name string, fn builtinFunc) {
		builtins[name] = &builtin{name: name, fn: fn}
	}

	register("len", builtinLen)
	register("any", builtinAny)
	register("all", builtinAll)
	register("sum", builtinSum)
	register("min", func(s *state, args []any, kwargs map[string]any) (any, error) {
		return extreme(s, "min", args, kwargs, -1)
	})
	register("max", func(s *state, args []any, kwargs map[string]any) (any, error) {
		return extreme(s, "max", args, kwargs, 1)
	})
	register("abs", builtinAbs)
	register("round", builtinRound)
	register("str", builtinStr)
	register("int", builtinInt)
	register("float", builtinFloat)
	register("bool", builtinBool)
	register("list", builtinList)
	register("tuple", builtinTuple)
	register("set", builtinSet)
	register("dict", builtinDict)
	register("sorted", builtinSorted)
	register("reversed", builtinReversed)
	register("range", builtinRange)
	register("enumerate", builtinEnumerate)
	register("zip", builtinZip)
	register("hasattr", builtinHasAttr)
}

// Builtins returns the names of the functions available to every query.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkArgs(name string, args []any, kwargs map[string]any, min, max int) error {
	for k := range kwargs {
		return errorf(ErrType, "%s() got an unexpected keyword argument '%s'", name, k)
	}
	return checkArgCount(name, args, min, max)
}

func checkArgCount(name string, args []any, min, max int) error {
	switch {
	case len(args) < min && min == max:
		return errorf(ErrType, "%s() takes exactly %d argument(s) (%d given)", name, min, len(args))
	case len(args) < min:
		return errorf(ErrType, "%s() takes at least %d argument(s) (%d given)", name, min, len(args))
	case max >= 0 && len(args) > max:
		return errorf(ErrType, "%s() takes at most %d argument(s) (%d given)", name, max, len(args))
	}
	return nil
}

// keywords splits kwargs into the allowed names, rejecting the rest.
func keywords(name string, kwargs map[string]any, allowed ...string) (map[string]any, error) {
	for k := range kwargs {
		ok := false
		for _, a := range allowed {
			if k == a {
				ok = true
				break
			}
		}
		if !ok {
			return nil, errorf(ErrType, "%s() got an unexpected keyword argument '%s'", name, k)
		}
	}
	if kwargs == nil {
		return map[string]any{}, nil
	}
	return kwargs, nil
}

func builtinLen(s *state, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("len", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case string:
		return int64(utf8.RuneCountInString(x)), nil
	case []any:
		return int64(len(x)), nil
	case Tuple:
		return int64(len(x)), nil
	case *Set:
		return int64(x.Len()), nil
	case map[string]any:
		return int64(len(x)), nil
	}
	return nil, errorf(ErrType, "object of type '%s' has no len()", TypeName(args[0]))
}

func builtinAny(s *state, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("any", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if Truth(item) {
			return true, nil
		}
	}
	return false, nil
}

func builtinAll(s *state, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("all", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if !Truth(item) {
			return false, nil
		}
	}
	return true, nil
}

func builtinSum(s *state, args []any, kwargs map[string]any) (any, error) {
	kw, err := keywords("sum", kwargs, "start")
	if err != nil {
		return nil, err
	}
	if err := checkArgCount("sum", args, 1, 2); err != nil {
		return nil, err
	}
	var total any = int64(0)
	if len(args) == 2 {
		total = args[1]
	} else if start, ok := kw["start"]; ok {
		total = start
	}
	if _, ok := total.(string); ok {
		return nil, errorf(ErrType, "sum() can't sum strings [use ''.join(seq) instead]")
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := s.tick(); err != nil {
			return nil, err
		}
		if total, err = binary(syntax.Add, total, item); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// extreme implements min (sign -1) and max (sign 1).
func extreme(s *state, name string, args []any, kwargs map[string]any, sign int) (any, error) {
	kw, err := keywords(name, kwargs, "key", "default")
	if err != nil {
		return nil, err
	}
	if err := checkArgCount(name, args, 1, -1); err != nil {
		return nil, err
	}

	items := args
	if len(args) == 1 {
		if items, err = iterate(args[0]); err != nil {
			return nil, err
		}
	} else if _, ok := kw["default"]; ok {
		return nil, errorf(ErrType, "Cannot specify a default for %s() with multiple positional arguments", name)
	}

	if len(items) == 0 {
		if def, ok := kw["default"]; ok {
			return def, nil
		}
		return nil, errorf(ErrValue, "%s() arg is an empty sequence", name)
	}

	keyFn := kw["key"]
	keyOf := func(v any) (any, error) {
		if keyFn == nil {
			return v, nil
		}
		return s.call(keyFn, []any{v}, nil)
	}

	best := items[0]
	bestKey, err := keyOf(best)
	if err != nil {
		return nil, err
	}
	for _, item := range items[1:] {
		k, err := keyOf(item)
		if err != nil {
			return nil, err
		}
		c, err := Compare(k, bestKey)
		if err != nil {
			return nil, err
		}
		if c*sign > 0 {
			best, bestKey = item, k
		}
	}
	return best, nil
}

func builtinAbs(s *state, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("abs", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	i, f, isFloat, ok := number(args[0])
	if !ok {
		return nil, errorf(ErrType, "bad operand type for abs(): '%s'", TypeName(args[0]))
	}
	if isFloat {
		return math.Abs(f), nil
	}
	if i < 0 {
		if i == math.MinInt64 {
			return nil, errorf(ErrOverflow, "integer too large")
		}
		return -i, nil
	}
	return i, nil
}

func builtinRound(s *state, args []any, kwargs map[string]any) (any, error) {
	kw, err := keywords("round", kwargs, "ndigits")
	if err != nil {
		return nil, err
	}
	if err := checkArgCount("round", args, 1, 2); err != nil {
		return nil, err
	}
	ndigits := kw["ndigits"]
	if len(args) == 2 {
		ndigits = args[1]
	}

	i, f, isFloat, ok := number(args[0])
	if !ok {
		return nil, errorf(ErrType, "type %s doesn't define __round__ method", TypeName(args[0]))
	}

	if ndigits == nil {
		if !isFloat {
			return i, nil
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, errorf(ErrOverflow, "cannot convert float %s to integer", Repr(f))
		}
		return floatToInt(math.RoundToEven(f))
	}

	n, err := toInt(ndigits, "ndigits")
	if err != nil {
		return nil, err
	}
	if !isFloat {
		if n >= 0 {
			return i, nil
		}
		scale := math.Pow(10, float64(-n))
		return floatToInt(math.RoundToEven(float64(i)/scale) * scale)
	}
	scale := math.Pow(10, float64(n))
	rounded := math.RoundToEven(f*scale) / scale
	if math.IsInf(rounded, 0) || math.IsNaN(rounded) {
		return f, nil
	}
	return rounded, nil
}

func floatToInt(f float64) (int64, error) {
	if f >= math.MaxInt64 || f < math.MinInt64 || math.IsNaN(f) {
		return 0, errorf(ErrOverflow, "cannot convert float %s to integer", Repr(f))
	}
	return int64(f), nil
}

func builtinStr(s *state, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("str", args, kwargs, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return "", nil
	}
	return toStr(args[0])
}

func builtinInt(s *state, args []any, kwargs map[string]any) (any, error) {
	kw, err := keywords("int", kwargs, "base")
	if err != nil {
		return nil, err
	}
	if err := checkArgCount("int", args, 0, 2); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return int64(0), nil
	}
	base := int64(10)
	if b, ok := kw["base"]; ok {
		args = append(args, b)
	}
	if len(args) == 2 {
		if base, err = toInt(args[1], "base"); err != nil {
			return nil, err
		}
		if _, ok := args[0].(string); !ok {
			return nil, errorf(ErrType, "int() can't convert non-string with explicit base")
		}
	}

	switch x := args[0].(type) {
	case bool, int64:
		i, _, _, _ := number(x)
		return i, nil
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, errorf(ErrValue, "cannot convert float %s to integer", Repr(x))
		}
		return floatToInt(math.Trunc(x))
	case string:
		text := strings.ReplaceAll(strings.TrimSpace(x), "_", "")
		i, err := strconv.ParseInt(text, int(base), 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return nil, errorf(ErrOverflow, "integer too large")
			}
			return nil, errorf(ErrValue, "invalid literal for int() with base %d: %s", base, Repr(x))
		}
		return i, nil
	}
	return nil, errorf(ErrType, "int() argument must be a string or a number, not '%s'", TypeName(args[0]))
}

func builtinFloat(s *state, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("float", args, kwargs, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return 0.0, nil
	}
	if _, f, _, ok := number(args[0]); ok {
		return f, nil
	}
	if x, ok := args[0].(string); ok {
		text := strings.ToLower(strings.TrimSpace(x))
		switch text {
		case "inf", "+inf", "infinity", "+infinity":
			return math.Inf(1), nil
		case "-inf", "-infinity":
			return math.Inf(-1), nil
		case "nan", "+nan", "-nan":
			return math.NaN(), nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
		if err != nil && !math.IsInf(f, 0) {
			return nil, errorf(ErrValue, "could not convert string to float: %s", Repr(x))
		}
		return f, nil
	}
	return nil, errorf(ErrType, "float() argument must be a string or a number, not '%s'", TypeName(args[0]))
}

func builtinBool(s *state, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("bool", args, kwargs, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return false, nil
	}
	return Truth(args[0]), nil
}

func copyItems(name string, args []any, kwargs map[string]any) ([]any, error) {
	if err := checkArgs(name, args, kwargs, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return []any{}, nil
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	return append([]any{}, items...), nil
}

func builtinList(s *state, args []any, kwargs map[string]any) (any, error) {
	return copyItems("list", args, kwargs)
}

func builtinTuple(s *state, args []any, kwargs map[string]any) (any, error) {
	items, err := copyItems("tuple", args, kwargs)
	if err != nil {
		return nil, err
	}
	return Tuple(items), nil
}

func builtinSet(s *state, args []any, kwargs map[string]any) (any, error) {
	items, err := copyItems("set", args, kwargs)
	if err != nil {
		return nil, err
	}
	return NewSet(items...)
}

func builtinDict(s *state, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgCount("dict", args, 0, 1); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if len(args) == 1 {
		switch src := args[0].(type) {
		case map[string]any:
			for k, v := range src {
				out[k] = v
			}
		default:
			pairs, err := iterate(src)
			if err != nil {
				return nil, err
			}
			for i, pair := range pairs {
				kv, err := iterate(pair)
				if err != nil || len(kv) != 2 {
					return nil, errorf(ErrValue, "dictionary update sequence element #%d has the wrong length", i)
				}
				if err := setItem(out, kv[0], kv[1]); err != nil {
					return nil, err
				}
			}
		}
	}
	for k, v := range kwargs {
		out[k] = v
	}
	return out, nil
}

func builtinSorted(s *state, args []any, kwargs map[string]any) (any, error) {
	kw, err := keywords("sorted", kwargs, "key", "reverse")
	if err != nil {
		return nil, err
	}
	if err := checkArgCount("sorted", args, 1, 1); err != nil {
		return nil, err
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}

	keys := make([]any, len(items))
	for i, item := range items {
		if fn := kw["key"]; fn != nil {
			if keys[i], err = s.call(fn, []any{item}, nil); err != nil {
				return nil, err
			}
		} else {
			keys[i] = item
		}
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	reverse := Truth(kw["reverse"])
	var cmpErr error
	sort.SliceStable(order, func(a, b int) bool {
		c, err := Compare(keys[order[a]], keys[order[b]])
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		if reverse {
			return c > 0
		}
		return c < 0
	})
	if cmpErr != nil {
		return nil, cmpErr
	}

	out := make([]any, len(items))
	for i, j := range order {
		out[i] = items[j]
	}
	return out, nil
}

func builtinReversed(s *state, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("reversed", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	switch args[0].(type) {
	case *Set, map[string]any:
		return nil, errorf(ErrType, "'%s' object is not reversible", TypeName(args[0]))
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return out, nil
}

func builtinRange(s *state, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("range", args, kwargs, 1, 3); err != nil {
		return nil, err
	}
	bounds := make([]int64, len(args))
	for i, a := range args {
		n, err := toInt(a, "range() arguments")
		if err != nil {
			return nil, err
		}
		bounds[i] = n
	}

	start, stop, step := int64(0), bounds[0], int64(1)
	if len(bounds) >= 2 {
		start, stop = bounds[0], bounds[1]
	}
	if len(bounds) == 3 {
		step = bounds[2]
	}
	if step == 0 {
		return nil, errorf(ErrValue, "range() arg 3 must not be zero")
	}

	var length float64
	if step > 0 && stop > start {
		length = math.Ceil((float64(stop) - float64(start)) / float64(step))
	} else if step < 0 && stop < start {
		length = math.Ceil((float64(start) - float64(stop)) / float64(-step))
	}
	if length > MaxSequenceLength {
		return nil, errorf(ErrLimit, "range longer than %d", MaxSequenceLength)
	}

	out := make([]any, 0, int(length))
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		out = append(out, i)
		if (step > 0 && i > math.MaxInt64-step) || (step < 0 && i < math.MinInt64-step) {
			break
		}
	}
	return out, nil
}

func builtinEnumerate(s *state, args []any, kwargs map[string]any) (any, error) {
	kw, err := keywords("enumerate", kwargs, "start")
	if err != nil {
		return nil, err
	}
	if err := checkArgCount("enumerate", args, 1, 2); err != nil {
		return nil, err
	}
	start := int64(0)
	if st, ok := kw["start"]; ok {
		args = append(args, st)
	}
	if len(args) == 2 {
		if start, err = toInt(args[1], "enumerate() start"); err != nil {
			return nil, err
		}
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = Tuple{start + int64(i), item}
	}
	return out, nil
}

func builtinZip(s *state, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("zip", args, kwargs, 0, -1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return []any{}, nil
	}
	columns := make([][]any, len(args))
	shortest := -1
	for i, a := range args {
		items, err := iterate(a)
		if err != nil {
			return nil, err
		}
		columns[i] = items
		if shortest < 0 || len(items) < shortest {
			shortest = len(items)
		}
	}
	out := make([]any, shortest)
	for row := 0; row < shortest; row++ {
		t := make(Tuple, len(columns))
		for i, col := range columns {
			t[i] = col[row]
		}
		out[row] = t
	}
	return out, nil
}

func builtinHasAttr(s *state, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("hasattr", args, kwargs, 2, 2); err != nil {
		return nil, err
	}
	name, ok := args[1].(string)
	if !ok {
		return nil, errorf(ErrType, "hasattr(): attribute name must be string")
	}
	return HasAttr(args[0], name), nil
}
