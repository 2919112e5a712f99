package repository

import "strings"

// Column names a Predicate may reference.  Predicates only accept these
// constants, never caller supplied identifiers.
type Column string

const (
	ColName         Column = "name"
	ColDetails      Column = "details"
	ColCity         Column = "location_city"
	ColNeighborhood Column = "location_neighborhood"
)

// likeEscape is the escape character declared in every LIKE clause.
const likeEscape = '!'

// Predicate is a filter compiled to a parameterized SQL fragment.  User
// input only ever travels in the returned args.
type Predicate interface {
	SQL() (string, []any)
}

// Always matches every row.
type Always struct{}

func (Always) SQL() (string, []any) { return "1=1", nil }

// Contains matches rows where any of Columns contains Value as a
// case-insensitive substring.  Value is expected lower-cased by the caller.
type Contains struct {
	Columns []Column
	Value   string
}

func (p Contains) SQL() (string, []any) {
	if len(p.Columns) == 0 {
		return "1=0", nil
	}
	pattern := "%" + EscapeLike(p.Value) + "%"
	parts := make([]string, 0, len(p.Columns))
	args := make([]any, 0, len(p.Columns))
	for _, col := range p.Columns {
		parts = append(parts, "LOWER("+string(col)+") LIKE ? ESCAPE '"+string(likeEscape)+"'")
		args = append(args, pattern)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// Match builds a Contains predicate from raw user input: the value is
// trimmed and case-folded, and an empty value yields Always.
func Match(value string, cols ...Column) Predicate {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Always{}
	}
	return Contains{Columns: cols, Value: v}
}

// And compiles predicates joined with AND.  No predicates means no filter.
func And(preds ...Predicate) (string, []any) {
	if len(preds) == 0 {
		return Always{}.SQL()
	}
	parts := make([]string, 0, len(preds))
	var args []any
	for _, p := range preds {
		frag, a := p.SQL()
		parts = append(parts, frag)
		args = append(args, a...)
	}
	return strings.Join(parts, " AND "), args
}

// EscapeLike escapes LIKE metacharacters so % and _ in user input match
// literally.
func EscapeLike(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '%', '_', likeEscape:
			b.WriteRune(likeEscape)
		}
		b.WriteRune(r)
	}
	return b.String()
}
