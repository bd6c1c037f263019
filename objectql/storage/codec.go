// Package storage provides the record sources the engine ships with: an
// in-memory source, a BadgerDB store and a SQLite store. Records are
// serialized as YAML documents.
package storage

import (
	"fmt"
	"math"
	"unicode"

	"github.com/goccy/go-yaml"

	"github.com/dsblank/object-ql/objectql"
)

// Nested records are written as mappings carrying these two keys. Queries
// cannot read names starting with an underscore, so the markers never
// clash with a field a query can see.
const (
	classMarker  = "_class"
	handleMarker = "_handle"
)

// EncodeRecord serializes r. Function-valued fields are not stored.
func EncodeRecord(r *objectql.Record) ([]byte, error) {
	data, err := yaml.Marshal(encodeValue(r))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %q: %w", r.Kind(), r.Handle, err)
	}
	return data, nil
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(data []byte) (*objectql.Record, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	r, ok := DecodeValue(doc).(*objectql.Record)
	if !ok {
		return nil, fmt.Errorf("failed to decode record: missing %s", classMarker)
	}
	return r, nil
}

func encodeValue(v any) any {
	switch x := v.(type) {
	case *objectql.Record:
		m := make(map[string]any, len(x.Fields)+2)
		for k, field := range x.Fields {
			if _, ok := field.(objectql.Function); ok {
				continue
			}
			m[k] = encodeValue(field)
		}
		m[classMarker] = x.Class
		if x.Handle != "" {
			m[handleMarker] = x.Handle
		}
		return m
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = encodeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = encodeValue(item)
		}
		return out
	}
	return v
}

// DecodeValue turns a value decoded from YAML into record values:
// integers become int64 and mappings with a class marker become records.
func DecodeValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = DecodeValue(item)
		}
		return out
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, item := range x {
			m[fmt.Sprint(k)] = item
		}
		return DecodeValue(m)
	case map[string]any:
		fields := make(map[string]any, len(x))
		for k, item := range x {
			fields[k] = DecodeValue(item)
		}
		class, ok := fields[classMarker].(string)
		if !ok {
			return fields
		}
		handle, _ := fields[handleMarker].(string)
		delete(fields, classMarker)
		delete(fields, handleMarker)
		return objectql.NewRecord(class, handle, fields)
	}
	return v
}

// ClassName returns the class name records of a collection get when the
// file they were loaded from does not name one: person becomes Person.
func ClassName(collection string) string {
	if collection == "" {
		return ""
	}
	runes := []rune(collection)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
