package eval

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type methodFunc func(s *state, recv any, args []any, kwargs map[string]any) (any, error)

// boundMethod is a method of a builtin value, produced by attribute
// access and called like any function.
type boundMethod struct {
	name string
	recv any
	fn   methodFunc
}

var (
	stringMethods   map[string]methodFunc
	sequenceMethods map[string]methodFunc
	dictMethods     map[string]methodFunc
)

func init() {
	stringMethods = map[string]methodFunc{
		"lower":      stringUnary("lower", strings.ToLower),
		"upper":      stringUnary("upper", strings.ToUpper),
		"title":      stringUnary("title", title),
		"capitalize": stringUnary("capitalize", capitalize),
		"strip":      stringTrim("strip", strings.TrimSpace, strings.Trim),
		"lstrip": stringTrim("lstrip", func(s string) string {
			return strings.TrimLeftFunc(s, unicode.IsSpace)
		}, strings.TrimLeft),
		"rstrip": stringTrim("rstrip", func(s string) string {
			return strings.TrimRightFunc(s, unicode.IsSpace)
		}, strings.TrimRight),
		"startswith": stringAffix("startswith", strings.HasPrefix),
		"endswith":   stringAffix("endswith", strings.HasSuffix),
		"split":      stringSplit,
		"join":       stringJoin,
		"replace":    stringReplace,
		"find":       stringFind,
		"count":      stringCount,
		"index":      stringIndex,
		"isdigit":    stringPredicate("isdigit", unicode.IsDigit),
		"isalpha":    stringPredicate("isalpha", unicode.IsLetter),
	}

	sequenceMethods = map[string]methodFunc{
		"count": sequenceCount,
		"index": sequenceIndex,
	}

	dictMethods = map[string]methodFunc{
		"keys":   dictKeys,
		"values": dictValues,
		"items":  dictItems,
		"get":    dictGet,
	}
}

// methodFor finds the method table entry for a builtin value.
func methodFor(recv any, name string) (methodFunc, bool) {
	var table map[string]methodFunc
	switch recv.(type) {
	case string:
		table = stringMethods
	case []any, Tuple:
		table = sequenceMethods
	case map[string]any:
		table = dictMethods
	default:
		return nil, false
	}
	m, ok := table[name]
	return m, ok
}

func stringArg(method string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errorf(ErrType, "%s() argument must be str, not %s", method, TypeName(v))
	}
	return s, nil
}

func stringUnary(name string, fn func(string) string) methodFunc {
	return func(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
		if err := checkArgs(name, args, kwargs, 0, 0); err != nil {
			return nil, err
		}
		return fn(recv.(string)), nil
	}
}

func stringTrim(name string, space func(string) string, chars func(string, string) string) methodFunc {
	return func(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
		if err := checkArgs(name, args, kwargs, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 || args[0] == nil {
			return space(recv.(string)), nil
		}
		cutset, err := stringArg(name, args[0])
		if err != nil {
			return nil, err
		}
		return chars(recv.(string), cutset), nil
	}
}

func stringAffix(name string, match func(string, string) bool) methodFunc {
	return func(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
		if err := checkArgs(name, args, kwargs, 1, 1); err != nil {
			return nil, err
		}
		str := recv.(string)
		if options, ok := args[0].(Tuple); ok {
			for _, opt := range options {
				affix, err := stringArg(name, opt)
				if err != nil {
					return nil, err
				}
				if match(str, affix) {
					return true, nil
				}
			}
			return false, nil
		}
		affix, err := stringArg(name, args[0])
		if err != nil {
			return nil, err
		}
		return match(str, affix), nil
	}
}

func stringPredicate(name string, class func(rune) bool) methodFunc {
	return func(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
		if err := checkArgs(name, args, kwargs, 0, 0); err != nil {
			return nil, err
		}
		str := recv.(string)
		if str == "" {
			return false, nil
		}
		for _, r := range str {
			if !class(r) {
				return false, nil
			}
		}
		return true, nil
	}
}

// title upper-cases the first letter of every run of letters and
// lower-cases the rest.
func title(s string) string {
	var sb strings.Builder
	prevLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) && !prevLetter:
			sb.WriteRune(unicode.ToUpper(r))
		case unicode.IsLetter(r):
			sb.WriteRune(unicode.ToLower(r))
		default:
			sb.WriteRune(r)
		}
		prevLetter = unicode.IsLetter(r)
	}
	return sb.String()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func stringSplit(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
	kw, err := keywords("split", kwargs, "sep", "maxsplit")
	if err != nil {
		return nil, err
	}
	if err := checkArgCount("split", args, 0, 2); err != nil {
		return nil, err
	}
	sep, maxsplit := kw["sep"], kw["maxsplit"]
	if len(args) > 0 {
		sep = args[0]
	}
	if len(args) > 1 {
		maxsplit = args[1]
	}
	limit := int64(-1)
	if maxsplit != nil {
		if limit, err = toInt(maxsplit, "maxsplit"); err != nil {
			return nil, err
		}
	}

	str := recv.(string)
	var parts []string
	if sep == nil {
		parts = splitWhitespace(str, limit)
	} else {
		sepStr, err := stringArg("split", sep)
		if err != nil {
			return nil, err
		}
		if sepStr == "" {
			return nil, errorf(ErrValue, "empty separator")
		}
		if limit < 0 {
			parts = strings.Split(str, sepStr)
		} else {
			parts = strings.SplitN(str, sepStr, int(limit)+1)
		}
	}

	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

func splitWhitespace(s string, limit int64) []string {
	if limit < 0 {
		return strings.Fields(s)
	}
	var parts []string
	rest := strings.TrimLeftFunc(s, unicode.IsSpace)
	for rest != "" {
		if int64(len(parts)) == limit {
			parts = append(parts, rest)
			break
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			parts = append(parts, rest)
			break
		}
		parts = append(parts, rest[:end])
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	return parts
}

func stringJoin(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("join", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(items))
	size := 0
	for i, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, errorf(ErrType, "sequence item %d: expected str instance, %s found", i, TypeName(item))
		}
		parts[i] = str
		size += len(str)
	}
	sep := recv.(string)
	if len(items) > 1 {
		size += len(sep) * (len(items) - 1)
	}
	if size > MaxSequenceLength {
		return nil, errorf(ErrLimit, "string longer than %d", MaxSequenceLength)
	}
	return strings.Join(parts, sep), nil
}

func stringReplace(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("replace", args, kwargs, 2, 3); err != nil {
		return nil, err
	}
	old, err := stringArg("replace", args[0])
	if err != nil {
		return nil, err
	}
	repl, err := stringArg("replace", args[1])
	if err != nil {
		return nil, err
	}
	n := int64(-1)
	if len(args) == 3 {
		if n, err = toInt(args[2], "count"); err != nil {
			return nil, err
		}
	}
	str := recv.(string)
	count := strings.Count(str, old)
	if n >= 0 && int64(count) > n {
		count = int(n)
	}
	if len(str)+count*(len(repl)-len(old)) > MaxSequenceLength {
		return nil, errorf(ErrLimit, "string longer than %d", MaxSequenceLength)
	}
	return strings.Replace(str, old, repl, int(n)), nil
}

// runeIndex returns the rune offset of sub in s, or -1.
func runeIndex(s, sub string) int64 {
	i := strings.Index(s, sub)
	if i < 0 {
		return -1
	}
	return int64(utf8.RuneCountInString(s[:i]))
}

func stringFind(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("find", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	sub, err := stringArg("find", args[0])
	if err != nil {
		return nil, err
	}
	return runeIndex(recv.(string), sub), nil
}

func stringIndex(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("index", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	sub, err := stringArg("index", args[0])
	if err != nil {
		return nil, err
	}
	i := runeIndex(recv.(string), sub)
	if i < 0 {
		return nil, errorf(ErrValue, "substring not found")
	}
	return i, nil
}

func stringCount(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("count", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	sub, err := stringArg("count", args[0])
	if err != nil {
		return nil, err
	}
	return int64(strings.Count(recv.(string), sub)), nil
}

func sequenceCount(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("count", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	items, _ := iterate(recv)
	n := int64(0)
	for _, item := range items {
		if Equal(item, args[0]) {
			n++
		}
	}
	return n, nil
}

func sequenceIndex(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("index", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	items, _ := iterate(recv)
	for i, item := range items {
		if Equal(item, args[0]) {
			return int64(i), nil
		}
	}
	return nil, errorf(ErrValue, "%s is not in %s", Repr(args[0]), TypeName(recv))
}

func dictKeys(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("keys", args, kwargs, 0, 0); err != nil {
		return nil, err
	}
	return iterate(recv)
}

func dictValues(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("values", args, kwargs, 0, 0); err != nil {
		return nil, err
	}
	m := recv.(map[string]any)
	keys := sortedKeys(m)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = Normalize(m[k])
	}
	return out, nil
}

func dictItems(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("items", args, kwargs, 0, 0); err != nil {
		return nil, err
	}
	m := recv.(map[string]any)
	keys := sortedKeys(m)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = Tuple{k, Normalize(m[k])}
	}
	return out, nil
}

func dictGet(s *state, recv any, args []any, kwargs map[string]any) (any, error) {
	if err := checkArgs("get", args, kwargs, 1, 2); err != nil {
		return nil, err
	}
	var def any
	if len(args) == 2 {
		def = args[1]
	}
	if _, err := hashKey(args[0]); err != nil {
		return nil, err
	}
	key, ok := args[0].(string)
	if !ok {
		return def, nil
	}
	if v, ok := recv.(map[string]any)[key]; ok {
		return Normalize(v), nil
	}
	return def, nil
}
