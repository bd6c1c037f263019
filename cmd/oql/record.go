package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/storage"
)

// parseRecordArg decodes a record given on the command line. A mapping
// becomes a Record when class is set (its "handle" entry is the handle);
// anything else is matched as a plain value.
func parseRecordArg(arg, class string) (any, error) {
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	value := storage.DecodeValue(raw)

	fields, ok := value.(map[string]any)
	if !ok || class == "" {
		return value, nil
	}
	handle, _ := fields["handle"].(string)
	delete(fields, "handle")
	return objectql.NewRecord(class, handle, fields), nil
}
