package db

import (
	"fmt"
	"strings"
)

// Where accumulates AND-ed SQL conditions with positional ($n) arguments.
type Where struct {
	conds []string
	args  []any
}

// Add appends a condition. Each "?" in cond is replaced by the next positional placeholder.
func (w *Where) Add(cond string, args ...any) *Where {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
	return w
}

// AddIf appends cond only when ok is true.
func (w *Where) AddIf(ok bool, cond string, args ...any) *Where {
	if ok {
		w.Add(cond, args...)
	}
	return w
}

// In appends "column IN (...)" for the given values; empty values add nothing.
func (w *Where) In(column string, values []string) *Where {
	if len(values) == 0 {
		return w
	}
	ph := make([]string, len(values))
	for i, v := range values {
		w.args = append(w.args, v)
		ph[i] = fmt.Sprintf("$%d", len(w.args))
	}
	w.conds = append(w.conds, column+" IN ("+strings.Join(ph, ", ")+")")
	return w
}

// SQL returns the " WHERE ..." clause (empty when no conditions) and its arguments.
func (w *Where) SQL() (string, []any) {
	if len(w.conds) == 0 {
		return "", w.args
	}
	return " WHERE " + strings.Join(w.conds, " AND "), w.args
}

// Contains wraps s for a case-insensitive ILIKE match.
func Contains(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
