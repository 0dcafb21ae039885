package search

import (
	"fmt"
	"strings"
)

// Query accumulates a WHERE clause with numbered placeholders.
type Query struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

func NewQuery(table, cols string) *Query {
	return &Query{table: table, cols: cols, idx: 1}
}

// Idx returns the next placeholder number.
func (q *Query) Idx() int { return q.idx }

// Add appends a clause using $Idx() placeholders for its args.
func (q *Query) Add(clause string, args ...interface{}) {
	q.where += " AND " + clause
	q.args = append(q.args, args...)
	q.idx += len(args)
}

// Apply adds one clause per predicate. Predicates on fields missing from
// fields are ignored; Parse has already rejected them.
func (q *Query) Apply(preds []Predicate, fields map[string]Field) {
	for _, p := range preds {
		f, ok := fields[p.Field]
		if !ok {
			continue
		}
		switch {
		case p.Op == OpContains:
			q.Add(fmt.Sprintf("%s ILIKE $%d", f.Column, q.idx), "%"+EscapeLike(p.Value)+"%")
		case p.Op == OpPrefix:
			q.Add(fmt.Sprintf("%s ILIKE $%d", f.Column, q.idx), EscapeLike(p.Value)+"%")
		case f.Kind == KindText:
			q.Add(fmt.Sprintf("lower(%s) = lower($%d)", f.Column, q.idx), p.Value)
		default:
			q.Add(fmt.Sprintf("%s = $%d", f.Column, q.idx), p.Value)
		}
	}
}

// OrderBy sets the ORDER BY clause (without the keyword).
func (q *Query) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

// ApplySort reads a comma-separated list of field names, "-" prefixed for
// descending. Unknown names are skipped; defaultOrder applies when none match.
func (q *Query) ApplySort(sortParam, defaultOrder string, fields map[string]Field) {
	var parts []string
	for _, name := range strings.Split(sortParam, ",") {
		name = strings.TrimSpace(name)
		dir := "ASC"
		if strings.HasPrefix(name, "-") {
			dir = "DESC"
			name = name[1:]
		}
		if f, ok := fields[name]; ok {
			parts = append(parts, f.Column+" "+dir)
		}
	}
	if len(parts) == 0 {
		q.orderBy = defaultOrder
		return
	}
	q.orderBy = strings.Join(parts, ", ")
}

func (q *Query) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.table, q.where)
}

func (q *Query) CountArgs() []interface{} {
	return q.args
}

func (q *Query) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.table, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	return sql + fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.idx, q.idx+1)
}

func (q *Query) DataArgs(limit, offset int) []interface{} {
	out := make([]interface{}, len(q.args), len(q.args)+2)
	copy(out, q.args)
	return append(out, limit, offset)
}
