package objectql

// Collection names one record collection: Name is the singular kind a
// query refers to (person), Plural the collection's own name (people).
type Collection struct {
	Name   string
	Plural string
}

// Schema lists the collections a query may range over and the record kinds
// that get a lookup function.
type Schema struct {
	Collections []Collection
	LookupKinds []string
}

// DefaultSchema is the genealogical schema the engine was written for.
var DefaultSchema = Schema{
	Collections: []Collection{
		{Name: "person", Plural: "people"},
		{Name: "family", Plural: "families"},
		{Name: "event", Plural: "events"},
		{Name: "place", Plural: "places"},
		{Name: "citation", Plural: "citations"},
		{Name: "source", Plural: "sources"},
		{Name: "repository", Plural: "repositories"},
		{Name: "media", Plural: "media"},
		{Name: "note", Plural: "notes"},
	},
	LookupKinds: []string{
		"person", "note", "family", "event", "media",
		"place", "tag", "source", "citation", "repository",
	},
}

// Names returns the collection names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Collections))
	for i, c := range s.Collections {
		names[i] = c.Name
	}
	return names
}

// Collection returns the collection with the given singular name.
func (s Schema) Collection(name string) (Collection, bool) {
	for _, c := range s.Collections {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}

// Plural returns the plural name of a collection, or name itself when the
// collection has none.
func (s Schema) Plural(name string) string {
	if c, ok := s.Collection(name); ok && c.Plural != "" {
		return c.Plural
	}
	return name
}
