// Package query turns the URL mini-language into validated plans and runs them.
package query

import (
	"regexp"
	"strconv"
	"strings"

	"restables/internal/apperr"
	"restables/internal/catalog"
)

// Direction is the sort direction of an ordering clause.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// Ordering is one ORDER BY clause.
type Ordering struct {
	Column    string
	Direction Direction
}

// Options is the parsed option string. Limit and Offset are nil when absent.
type Options struct {
	Ordering []Ordering
	Limit    *uint64
	Offset   *uint64
}

// Only the matched prefix of a token is consulted; "age:desc" orders by age
// descending and "limit:5x" limits to 5.
var (
	orderingToken = regexp.MustCompile(`^(\w+):(a|d)`)
	limitToken    = regexp.MustCompile(`^limit:(\d+)(?::(\d+))?`)
)

// ParseOptions parses a comma-separated option string.
//
// Tokens are read left to right. An ordering token appends a clause. The first
// limit token sets limit/offset and ends parsing; later tokens are ignored. Any
// other token fails with an OptionError naming it. An empty string means no
// ordering and no limit. Column names are not checked here.
func ParseOptions(raw string) (Options, error) {
	return parseOptions(raw, nil)
}

// ParseOptionsFor parses like ParseOptions but also resolves each ordering
// column against meta as it is read, so "nope:a,foo" fails on nope with a
// ColumnNotFound SchemaError before foo is looked at.
func ParseOptionsFor(raw string, meta *catalog.TableMetadata) (Options, error) {
	return parseOptions(raw, meta)
}

func parseOptions(raw string, meta *catalog.TableMetadata) (Options, error) {
	var opts Options
	if strings.TrimSpace(raw) == "" {
		return opts, nil
	}

	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)

		if m := orderingToken.FindStringSubmatch(tok); m != nil {
			if meta != nil {
				if _, ok := meta.Column(m[1]); !ok {
					return Options{}, apperr.ColumnMissing(m[1])
				}
			}
			dir := Ascending
			if m[2] == "d" {
				dir = Descending
			}
			opts.Ordering = append(opts.Ordering, Ordering{Column: m[1], Direction: dir})
			continue
		}

		if m := limitToken.FindStringSubmatch(tok); m != nil {
			limit, err := strconv.ParseUint(m[1], 10, 64)
			if err != nil {
				return Options{}, &apperr.OptionError{Option: tok}
			}
			opts.Limit = &limit
			if m[2] != "" {
				offset, err := strconv.ParseUint(m[2], 10, 64)
				if err != nil {
					return Options{}, &apperr.OptionError{Option: tok}
				}
				opts.Offset = &offset
			}
			break
		}

		return Options{}, &apperr.OptionError{Option: tok}
	}
	return opts, nil
}
