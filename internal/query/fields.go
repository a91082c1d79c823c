package query

import "strings"

// Wildcard selects every column in catalog order.
const Wildcard = "*"

// FieldSelection is either all columns or an explicit, ordered name list.
type FieldSelection struct {
	All   bool
	Names []string
}

// ParseFields splits a field spec. Names keep the caller's order and are
// resolved later against the catalog.
func ParseFields(raw string) FieldSelection {
	if strings.TrimSpace(raw) == Wildcard {
		return FieldSelection{All: true}
	}
	parts := strings.Split(raw, ",")
	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = strings.TrimSpace(p)
	}
	return FieldSelection{Names: names}
}
