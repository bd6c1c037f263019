package objectql

import "strings"

// Object is a struct-like record. Attribute reads made by a query resolve
// through Attr; the second result reports whether the attribute exists.
type Object interface {
	Attr(name string) (any, bool)
}

// Kinded is implemented by records that know their own type name. The
// lower-cased kind is the name a record is bound under when a query is
// evaluated against it (person, family, ...).
type Kinded interface {
	Kind() string
}

// Mapper converts a record into its mapping form, the shape queries of the
// row variant are written against.
type Mapper func(record any) any

// Function is a callable value visible to queries: builtins, lookups,
// record methods and lambdas all share this signature.
type Function func(args []any, kwargs map[string]any) (any, error)

type notFound struct{}

func (notFound) String() string { return "NotFound" }

// NotFound is returned by guarded lookups when neither an attribute nor a
// mapping key of the requested name exists.
var NotFound any = notFound{}

// IsNotFound reports whether v is the NotFound sentinel.
func IsNotFound(v any) bool {
	_, ok := v.(notFound)
	return ok
}

// Record is the generic record type used by the bundled sources. Fields
// hold plain values (nil, bool, int64, float64, string, []any,
// map[string]any, *Record or Function).
type Record struct {
	Class  string
	Handle string
	Fields map[string]any
}

// NewRecord creates a record of the given class.
func NewRecord(class, handle string, fields map[string]any) *Record {
	if fields == nil {
		fields = make(map[string]any)
	}
	return &Record{Class: class, Handle: handle, Fields: fields}
}

// NewObject creates a record with no handle, useful for nested values and
// constant groups.
func NewObject(class string, fields map[string]any) *Record {
	return NewRecord(class, "", fields)
}

// Attr implements Object. The handle is readable as the "handle" attribute
// unless a field shadows it. Every readable attribute x also has a getter
// method get_x, so person.get_note_list() reads the note_list field.
func (r *Record) Attr(name string) (any, bool) {
	if v, ok := r.field(name); ok {
		return v, true
	}
	if field, ok := strings.CutPrefix(name, "get_"); ok {
		if v, ok := r.field(field); ok {
			return Function(func([]any, map[string]any) (any, error) {
				return v, nil
			}), true
		}
	}
	return nil, false
}

func (r *Record) field(name string) (any, bool) {
	if v, ok := r.Fields[name]; ok {
		return v, true
	}
	if name == "handle" && r.Handle != "" {
		return r.Handle, true
	}
	return nil, false
}

// Kind implements Kinded.
func (r *Record) Kind() string {
	return strings.ToLower(r.Class)
}

// Mapping returns the dictionary form of the record: its fields plus
// "class" and "handle" entries. Nested records are converted as well.
func (r *Record) Mapping() map[string]any {
	m := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		m[k] = mappingValue(v)
	}
	m["class"] = r.Kind()
	if r.Handle != "" {
		m["handle"] = r.Handle
	}
	return m
}

func mappingValue(v any) any {
	switch val := v.(type) {
	case *Record:
		return val.Mapping()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = mappingValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = mappingValue(item)
		}
		return out
	default:
		return v
	}
}

// ToMapping is the default Mapper: records become mappings, everything
// else passes through unchanged.
func ToMapping(record any) any {
	if r, ok := record.(*Record); ok {
		return r.Mapping()
	}
	return record
}
