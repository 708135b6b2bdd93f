package query

import "strings"

// JoinType identifies the SQL join keyword.
type JoinType string

const (
	InnerJoin JoinType = "INNER JOIN"
	LeftJoin  JoinType = "LEFT JOIN"
	RightJoin JoinType = "RIGHT JOIN"
	CrossJoin JoinType = "CROSS JOIN"
)

type joinSpec struct {
	kind  JoinType
	table string
	alias string
	left  string
	right string
}

// joinClause accumulates join specs in call order (spec §4.4:
// "join(type, table, left, right, alias?)").
type joinClause struct {
	joins []joinSpec
}

func (j *joinClause) add(kind JoinType, table, left, right, alias string) {
	j.joins = append(j.joins, joinSpec{kind: kind, table: table, alias: alias, left: left, right: right})
}

func (j *joinClause) render() string {
	var b strings.Builder
	for _, spec := range j.joins {
		b.WriteString(" ")
		b.WriteString(string(spec.kind))
		b.WriteString(" ")
		b.WriteString(renderTableRef(spec.table, spec.alias))
		if spec.kind != CrossJoin && spec.left != "" {
			b.WriteString(" ON ")
			b.WriteString(renderOperand(spec.left))
			b.WriteString(" = ")
			b.WriteString(renderOperand(spec.right))
		}
	}
	return b.String()
}

func renderTableRef(table, alias string) string {
	ref := table
	if ValidateIdentifier(table) {
		ref = QuoteIdentifier(table)
	}
	if alias != "" {
		ref += " AS " + alias
	}
	return ref
}
