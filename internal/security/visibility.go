package security

import "slices"

// Visibility is the per-connection table allow/deny list.
//
// A nil Show means no allow-list is configured and every table not in Hide is
// visible. A non-nil empty Show hides everything.
type Visibility struct {
	Show []string
	Hide []string
}

// IsVisible applies the policy: the deny-list always wins, then the
// allow-list if one is configured.
func IsVisible(table string, v Visibility) bool {
	if slices.Contains(v.Hide, table) {
		return false
	}
	if v.Show == nil {
		return true
	}
	return slices.Contains(v.Show, table)
}

// Visible is IsVisible bound to v.
func (v Visibility) Visible(table string) bool {
	return IsVisible(table, v)
}

// Filter returns the visible tables, preserving order.
func (v Visibility) Filter(tables []string) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if v.Visible(t) {
			out = append(out, t)
		}
	}
	return out
}
