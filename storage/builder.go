package storage

import (
	"fmt"
	"strings"
)

// jsonPathOps is the predicate operator whitelist for WhereJSON.
var jsonPathOps = map[string]bool{
	"=":    true,
	"!=":   true,
	"<":    true,
	"<=":   true,
	">":    true,
	">=":   true,
	"LIKE": true,
}

// EventQueryBuilder assembles a parameterized SELECT over the events
// table. Fragments accumulate through the mutator methods and Build
// consumes the builder into a final SQL string plus a positionally
// ordered argument list.
//
// The builder keeps a running count of '?' placeholders against pushed
// arguments. Any imbalance surfaces as ErrArgumentEncoding, never as a
// statement that binds values to the wrong predicates.
type EventQueryBuilder struct {
	// indexed selects the JSON projection mode: when true the store has
	// an index layer over the document paths and the ->> operator form
	// is used so lookups hit the precomputed columns; when false fields
	// are extracted from the stored blob at query time. The mode is
	// fixed for the builder's lifetime so one query never mixes modes.
	indexed bool

	selects []string
	from    []string
	wheres  []string
	orderBy string
	limit   int64

	args         []interface{}
	placeholders int
	err          error
}

// NewEventQueryBuilder returns a builder. The indexed flag must reflect
// whether the store's full-text/index layer is active.
func NewEventQueryBuilder(indexed bool) *EventQueryBuilder {
	return &EventQueryBuilder{indexed: indexed}
}

// validJSONPath reports whether a dotted document path is safe to embed
// in generated SQL. Paths come from parsed user queries, so anything
// outside this alphabet is rejected rather than quoted.
func validJSONPath(path string) bool {
	if path == "" {
		return false
	}
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// JSONColumn renders the column expression for a document path in the
// given projection mode. Exposed so filter assembly outside the builder
// can emit fragments in the same mode the builder will use.
func JSONColumn(indexed bool, path string) string {
	if indexed {
		return fmt.Sprintf("events.source ->> '$.%s'", path)
	}
	return fmt.Sprintf("json_extract(events.source, '$.%s')", path)
}

func (b *EventQueryBuilder) jsonColumn(path string) string {
	return JSONColumn(b.indexed, path)
}

// Select adds a raw column reference or expression to the select list.
func (b *EventQueryBuilder) Select(col string) *EventQueryBuilder {
	b.selects = append(b.selects, col)
	return b
}

// SelectJSON projects a document field out of the stored JSON, aliased
// to its dotted path.
func (b *EventQueryBuilder) SelectJSON(path string) *EventQueryBuilder {
	if !validJSONPath(path) {
		b.setErr(fmt.Errorf("%w: invalid json path %q", ErrArgumentEncoding, path))
		return b
	}
	b.selects = append(b.selects, fmt.Sprintf("%s AS '%s'", b.jsonColumn(path), path))
	return b
}

// From adds a table to the from list.
func (b *EventQueryBuilder) From(table string) *EventQueryBuilder {
	for _, existing := range b.from {
		if existing == table {
			return b
		}
	}
	b.from = append(b.from, table)
	return b
}

// OrderBy sets the order-by clause. Direction must be ASC or DESC.
func (b *EventQueryBuilder) OrderBy(field, direction string) *EventQueryBuilder {
	direction = strings.ToUpper(direction)
	if direction != "ASC" && direction != "DESC" {
		b.setErr(fmt.Errorf("%w: invalid order direction %q", ErrArgumentEncoding, direction))
		return b
	}
	b.orderBy = fmt.Sprintf("ORDER BY %s %s", field, direction)
	return b
}

// Limit caps the number of returned rows.
func (b *EventQueryBuilder) Limit(n int64) *EventQueryBuilder {
	b.limit = n
	return b
}

// WhereJSON adds a predicate on a document path with a bound value.
func (b *EventQueryBuilder) WhereJSON(path, op string, value interface{}) error {
	if !validJSONPath(path) {
		return fmt.Errorf("%w: invalid json path %q", ErrArgumentEncoding, path)
	}
	if !jsonPathOps[strings.ToUpper(op)] {
		return fmt.Errorf("%w: invalid operator %q", ErrArgumentEncoding, op)
	}
	b.wheres = append(b.wheres, fmt.Sprintf("%s %s ?", b.jsonColumn(path), strings.ToUpper(op)))
	b.placeholders++
	b.args = append(b.args, value)
	return nil
}

// PushWhere adds a raw predicate fragment. Every '?' in the fragment
// must be matched by a PushArg call before Build.
func (b *EventQueryBuilder) PushWhere(fragment string) *EventQueryBuilder {
	b.wheres = append(b.wheres, fragment)
	b.placeholders += strings.Count(fragment, "?")
	return b
}

// PushArg binds the next positional argument. Binding more arguments
// than outstanding placeholders fails immediately.
func (b *EventQueryBuilder) PushArg(value interface{}) error {
	if len(b.args) >= b.placeholders {
		err := fmt.Errorf("%w: argument %v has no placeholder", ErrArgumentEncoding, value)
		b.setErr(err)
		return err
	}
	b.args = append(b.args, value)
	return nil
}

func (b *EventQueryBuilder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build consumes the builder into the final SQL text and argument list.
func (b *EventQueryBuilder) Build() (string, []interface{}, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if b.placeholders != len(b.args) {
		return "", nil, fmt.Errorf("%w: %d placeholders, %d arguments",
			ErrArgumentEncoding, b.placeholders, len(b.args))
	}
	if len(b.selects) == 0 || len(b.from) == 0 {
		return "", nil, fmt.Errorf("%w: empty select or from list", ErrArgumentEncoding)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.selects, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(strings.Join(b.from, ", "))
	if len(b.wheres) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.wheres, " AND "))
	}
	if b.orderBy != "" {
		sb.WriteString(" ")
		sb.WriteString(b.orderBy)
	}
	if b.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", b.limit)
	}

	return sb.String(), b.args, nil
}
