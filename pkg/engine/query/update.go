package query

import (
	"context"
	"strings"
)

type setClause struct {
	column string
	value  interface{}
}

// Update builds an UPDATE statement (spec §4.4), including multi-table
// UPDATE (more than one call to Table) and the increment/decrement
// shorthand that expands to `col = col ± :param`.
type Update struct {
	base

	tables     []fromRef
	sets       []setClause
	joins      joinClause
	where      whereClause
	orderLimit orderLimitClause
	returning  []string
}

func NewUpdate(db DB) *Update {
	return &Update{base: newBase(db)}
}

func (u *Update) Table(name string, alias ...string) *Update {
	a := ""
	if len(alias) > 0 {
		a = alias[0]
	}
	u.tables = append(u.tables, fromRef{table: name, alias: a})
	u.invalidate()
	return u
}

func (u *Update) Set(column string, value interface{}) *Update {
	u.sets = append(u.sets, setClause{column: column, value: value})
	u.invalidate()
	return u
}

func (u *Update) Increment(column string, n interface{}) *Update {
	return u.Set(column, incrementOperand{column: column, delta: n, sign: "+"})
}

func (u *Update) Decrement(column string, n interface{}) *Update {
	return u.Set(column, incrementOperand{column: column, delta: n, sign: "-"})
}

// incrementOperand defers rendering `col ± n` until ToSQL, once column has
// gone through the same identifier check as every other set() target.
type incrementOperand struct {
	column string
	delta  interface{}
	sign   string
}

func (u *Update) Join(kind JoinType, table, left, right string, alias ...string) *Update {
	a := ""
	if len(alias) > 0 {
		a = alias[0]
	}
	u.joins.add(kind, table, left, right, a)
	u.invalidate()
	return u
}

func (u *Update) Where(column string, value interface{}, comparison Comparison, link Link) *Update {
	u.where.add(link, column, comparison, value)
	u.invalidate()
	return u
}

func (u *Update) OrderBy(column, direction string) *Update {
	u.orderLimit.addOrderBy(column, direction)
	u.invalidate()
	return u
}

func (u *Update) Limit(n int) *Update {
	u.orderLimit.setLimit(n)
	u.invalidate()
	return u
}

func (u *Update) Returning(columns ...string) *Update {
	u.returning = columns
	u.invalidate()
	return u
}

func (u *Update) ToSQL() (string, error) {
	if !u.dirty {
		return u.cachedSQL, nil
	}
	if len(u.tables) == 0 {
		return "", &BuilderError{Builder: "update", Message: "table(name) is required"}
	}
	if len(u.sets) == 0 {
		return "", &BuilderError{Builder: "update", Message: "at least one set() call is required"}
	}

	u.bag = NewParamBag()
	var b strings.Builder
	b.WriteString("UPDATE ")
	tables := make([]string, len(u.tables))
	for i, t := range u.tables {
		if err := checkIdentifier("update", "table", t.table); err != nil {
			return "", err
		}
		tables[i] = renderTableRef(t.table, t.alias)
	}
	b.WriteString(strings.Join(tables, ", "))

	b.WriteString(u.joins.render())

	b.WriteString(" SET ")
	parts := make([]string, len(u.sets))
	for i, s := range u.sets {
		if err := checkQualifiedIdentifier("update", "column", s.column); err != nil {
			return "", err
		}
		rhs, err := u.renderSetValue(s.value)
		if err != nil {
			return "", err
		}
		parts[i] = renderOperand(s.column) + " = " + rhs
	}
	b.WriteString(strings.Join(parts, ", "))

	if !u.where.empty() {
		whereSQL, err := u.where.render(u.bag)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(whereSQL)
	}

	b.WriteString(u.orderLimit.renderOrderBy())
	b.WriteString(u.orderLimit.renderLimitOffset())

	if len(u.returning) > 0 {
		quoted, err := quoteAllValidated("update", u.returning)
		if err != nil {
			return "", err
		}
		b.WriteString(" RETURNING " + strings.Join(quoted, ", "))
	}

	return u.cache(b.String()), nil
}

func (u *Update) renderSetValue(value interface{}) (string, error) {
	if op, ok := value.(incrementOperand); ok {
		return renderOperand(op.column) + " " + op.sign + " " + bindOperand(op.delta, u.bag), nil
	}
	return bindOperand(value, u.bag), nil
}

func (u *Update) Execute(ctx context.Context) (int64, error) {
	sql, err := u.ToSQL()
	if err != nil {
		return 0, err
	}
	return u.db.Exec(ctx, sql, u.bag.Values()...)
}
