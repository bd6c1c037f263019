package env

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/dsblank/object-ql/objectql"
)

//go:embed constants.yaml
var defaultConstantsYAML []byte

// ConstantGroups maps a group name (Person) to its members (MALE: 1).
type ConstantGroups map[string]map[string]any

// ParseConstants decodes constant groups from YAML.
func ParseConstants(data []byte) (ConstantGroups, error) {
	var groups ConstantGroups
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse constants: %w", err)
	}
	return groups, nil
}

// DefaultConstants returns the built-in groups.
func DefaultConstants() ConstantGroups {
	groups, err := ParseConstants(defaultConstantsYAML)
	if err != nil {
		panic(err)
	}
	return groups
}

// registry is the process-wide set of constant groups. Groups are stored
// as records, so queries read them with attribute syntax.
var registry = struct {
	sync.RWMutex
	groups map[string]*objectql.Record
}{groups: recordsOf(DefaultConstants())}

func recordsOf(groups ConstantGroups) map[string]*objectql.Record {
	out := make(map[string]*objectql.Record, len(groups))
	for name, values := range groups {
		out[name] = groupRecord(name, values)
	}
	return out
}

func groupRecord(name string, values map[string]any) *objectql.Record {
	fields := make(map[string]any, len(values))
	for k, v := range values {
		fields[k] = v
	}
	return objectql.NewObject(name, fields)
}

// RegisterConstants adds or replaces one group.
func RegisterConstants(group string, values map[string]any) {
	rec := groupRecord(group, values)
	registry.Lock()
	defer registry.Unlock()
	registry.groups[group] = rec
}

// SetConstants replaces every registered group.
func SetConstants(groups ConstantGroups) {
	records := recordsOf(groups)
	registry.Lock()
	defer registry.Unlock()
	registry.groups = records
}

// ResetConstants restores the built-in groups.
func ResetConstants() {
	SetConstants(DefaultConstants())
}

// ConstantNames lists the registered groups, sorted.
func ConstantNames() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.groups))
	for name := range registry.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func addConstants(env map[string]any) {
	registry.RLock()
	defer registry.RUnlock()
	for name, rec := range registry.groups {
		env[name] = rec
	}
}
