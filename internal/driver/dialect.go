package driver

import (
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"restables/internal/apperr"
)

var dialects = map[string]Dialect{}

func register(d Dialect) {
	dialects[d.Name()] = d
}

func init() {
	register(MySQLDialect{})
	register(PostgresDialect{})
	register(PgxDialect{})
	register(SQLiteDialect{})
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperr.ErrUnknownDialect, name)
	}
	return d, nil
}

// Dialects returns the registered dialect names in sorted order.
func Dialects() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func quoteWith(q, name string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// Ident quotes name for use in squirrel-built statements. Question marks are
// doubled for positional formats, which would otherwise rewrite them as
// placeholders.
func Ident(d Dialect, name string) string {
	q := d.QuoteIdent(name)
	if d.Placeholder() != sq.Question {
		q = strings.ReplaceAll(q, "?", "??")
	}
	return q
}
