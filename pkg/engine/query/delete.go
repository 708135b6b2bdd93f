package query

import (
	"context"
	"strings"
)

// Delete builds a DELETE statement (spec §4.4).
type Delete struct {
	base

	table      fromRef
	hasTable   bool
	joins      joinClause
	where      whereClause
	orderLimit orderLimitClause
}

func NewDelete(db DB) *Delete {
	return &Delete{base: newBase(db)}
}

func (d *Delete) From(table string, alias ...string) *Delete {
	a := ""
	if len(alias) > 0 {
		a = alias[0]
	}
	d.table = fromRef{table: table, alias: a}
	d.hasTable = true
	d.invalidate()
	return d
}

func (d *Delete) Join(kind JoinType, table, left, right string, alias ...string) *Delete {
	a := ""
	if len(alias) > 0 {
		a = alias[0]
	}
	d.joins.add(kind, table, left, right, a)
	d.invalidate()
	return d
}

func (d *Delete) Where(column string, value interface{}, comparison Comparison, link Link) *Delete {
	d.where.add(link, column, comparison, value)
	d.invalidate()
	return d
}

func (d *Delete) OrderBy(column, direction string) *Delete {
	d.orderLimit.addOrderBy(column, direction)
	d.invalidate()
	return d
}

func (d *Delete) Limit(n int) *Delete {
	d.orderLimit.setLimit(n)
	d.invalidate()
	return d
}

func (d *Delete) ToSQL() (string, error) {
	if !d.dirty {
		return d.cachedSQL, nil
	}
	if !d.hasTable {
		return "", &BuilderError{Builder: "delete", Message: "from(table) is required"}
	}
	if err := checkIdentifier("delete", "table", d.table.table); err != nil {
		return "", err
	}

	d.bag = NewParamBag()
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(renderTableRef(d.table.table, d.table.alias))

	b.WriteString(d.joins.render())

	if !d.where.empty() {
		whereSQL, err := d.where.render(d.bag)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(whereSQL)
	}

	b.WriteString(d.orderLimit.renderOrderBy())
	b.WriteString(d.orderLimit.renderLimitOffset())

	return d.cache(b.String()), nil
}

func (d *Delete) Execute(ctx context.Context) (int64, error) {
	sql, err := d.ToSQL()
	if err != nil {
		return 0, err
	}
	return d.db.Exec(ctx, sql, d.bag.Values()...)
}
