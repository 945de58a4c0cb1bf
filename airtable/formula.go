package airtable

import (
	"strings"

	"github.com/mmdatafocus/po_import/reconcile"
)

// Formula renders the non-linked matches of a filter as a filterByFormula expression.
// It returns "" when nothing can be checked server side.
func Formula(filter reconcile.Filter) string {
	var parts []string
	for _, m := range filter {
		if m.Linked {
			continue
		}
		parts = append(parts, "{"+escapeFieldName(m.Field)+"}="+quote(m.Value))
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "AND(" + strings.Join(parts, ",") + ")"
}

func escapeFieldName(name string) string {
	return strings.ReplaceAll(name, "}", "\\}")
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
