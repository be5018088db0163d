package dbx

import "strings"

// Predicate is a boolean SQL fragment with '?' placeholders.
type Predicate struct {
	SQL  string
	Args []any
}

// Empty reports whether p constrains nothing.
func (p Predicate) Empty() bool { return strings.TrimSpace(p.SQL) == "" }

// And joins the non-empty predicates with AND. Each operand is parenthesized.
func And(preds ...Predicate) Predicate {
	var parts []string
	var args []any
	for _, p := range preds {
		if p.Empty() {
			continue
		}
		parts = append(parts, "("+p.SQL+")")
		args = append(args, p.Args...)
	}
	return Predicate{SQL: strings.Join(parts, " AND "), Args: args}
}
