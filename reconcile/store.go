package reconcile

import (
	"context"
	"sort"
	"strings"

	"github.com/mmdatafocus/po_import/coerce"
	"github.com/mmdatafocus/po_import/fieldschema"
)

// Row is one ingested spreadsheet line. Number is the 1-based sheet row, used in logs.
type Row struct {
	Number  int
	Data    map[string]any
	MapType map[string]fieldschema.FieldType
}

// FieldMap holds the coerced fields of one mutation. Null values are never stored.
type FieldMap map[string]coerce.Value

// Names returns the field names in sorted order.
func (m FieldMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Record is a row of the remote store as returned by its API.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type Match struct {
	Field string
	Value string
	// Linked matches when Value is one of the record ids held by a linked-record field.
	Linked bool
}

func LinkedTo(field, id string) Match { return Match{Field: field, Value: id, Linked: true} }

func Equals(field, value string) Match { return Match{Field: field, Value: value} }

// Filter is a conjunction of matches.
type Filter []Match

func (f Filter) Fields() []string {
	out := make([]string, 0, len(f))
	for _, m := range f {
		out = append(out, m.Field)
	}
	return out
}

func (f Filter) Matches(fields map[string]any) bool {
	for _, m := range f {
		v, ok := fields[m.Field]
		if !ok {
			return false
		}
		if m.Linked {
			if !containsID(v, m.Value) {
				return false
			}
			continue
		}
		if strings.TrimSpace(textOf(v)) != m.Value {
			return false
		}
	}
	return true
}

func containsID(v any, id string) bool {
	switch links := v.(type) {
	case coerce.Value:
		for _, got := range links.IDs() {
			if got == id {
				return true
			}
		}
	case []string:
		for _, got := range links {
			if got == id {
				return true
			}
		}
	case []any:
		for _, item := range links {
			switch l := item.(type) {
			case string:
				if l == id {
					return true
				}
			case map[string]any:
				if got, _ := l["id"].(string); got == id {
					return true
				}
			}
		}
	case []map[string]any:
		for _, l := range links {
			if got, _ := l["id"].(string); got == id {
				return true
			}
		}
	}
	return false
}

func textOf(v any) string {
	switch t := v.(type) {
	case coerce.Value:
		return t.Text()
	case map[string]any:
		// single select options come back as {"name": ...} from some endpoints
		if name, ok := t["name"].(string); ok {
			return name
		}
	}
	return coerce.StringForm(v)
}

// Store is the remote record store. Implementations own retries and timeouts.
type Store interface {
	Find(ctx context.Context, table string, filter Filter, fields []string) ([]Record, error)
	Create(ctx context.Context, table string, fields FieldMap) (Record, error)
	Update(ctx context.Context, table string, id string, fields FieldMap) (Record, error)
}
