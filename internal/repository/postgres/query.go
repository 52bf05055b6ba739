package postgres

import (
	"fmt"
	"strings"
)

// query accumulates positional arguments and the clauses that reference them.
type query struct {
	args  []any
	where []string
}

// bind appends v and formats clause with its placeholder number.
func (q *query) bind(clause string, v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf(clause, len(q.args))
}

func (q *query) and(clause string, v any) {
	q.where = append(q.where, q.bind(clause, v))
}

func (q *query) andRaw(clause string) {
	q.where = append(q.where, clause)
}

func (q *query) whereClause() string {
	if len(q.where) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(q.where, " AND ")
}
