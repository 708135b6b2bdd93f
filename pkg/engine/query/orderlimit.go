package query

import (
	"fmt"
	"strings"
)

type orderSpec struct {
	column    string
	direction string
}

// orderLimitClause accumulates ORDER BY / LIMIT / OFFSET state shared by
// Select, Update, and Delete (spec §4.4).
type orderLimitClause struct {
	orders    []orderSpec
	limit     int
	hasLimit  bool
	offset    int
	hasOffset bool
}

func (o *orderLimitClause) addOrderBy(column, direction string) {
	d := strings.ToUpper(direction)
	if d != "ASC" && d != "DESC" {
		d = "ASC" // spec §4.4: any other string coerces to ASC
	}
	o.orders = append(o.orders, orderSpec{column: column, direction: d})
}

func (o *orderLimitClause) setLimit(n int) {
	if n < 0 {
		n = 0
	}
	o.limit = n
	o.hasLimit = true
}

// setOffset requires a prior positive limit (spec §4.4); page, when > 0,
// computes (page-1)*limit and manual is ignored.
func (o *orderLimitClause) setOffset(page, manual int) error {
	if !o.hasLimit || o.limit <= 0 {
		return &BuilderError{Builder: "order/limit", Message: "offset() requires a prior positive limit()"}
	}
	if page > 0 {
		o.offset = (page - 1) * o.limit
	} else {
		o.offset = manual
	}
	o.hasOffset = true
	return nil
}

func (o *orderLimitClause) renderOrderBy() string {
	if len(o.orders) == 0 {
		return ""
	}
	parts := make([]string, len(o.orders))
	for i, ord := range o.orders {
		parts[i] = renderOperand(ord.column) + " " + ord.direction
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func (o *orderLimitClause) renderLimitOffset() string {
	var b strings.Builder
	if o.hasLimit && o.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", o.limit)
	}
	if o.hasOffset {
		fmt.Fprintf(&b, " OFFSET %d", o.offset)
	}
	return b.String()
}

// groupByClause accumulates GROUP BY columns and the optional WITH ROLLUP
// modifier (spec §4.4).
type groupByClause struct {
	columns []string
	rollup  bool
}

func (g *groupByClause) add(columns ...string) {
	g.columns = append(g.columns, columns...)
}

func (g *groupByClause) render() string {
	if len(g.columns) == 0 {
		return ""
	}
	quoted := make([]string, len(g.columns))
	for i, c := range g.columns {
		quoted[i] = renderOperand(c)
	}
	sql := " GROUP BY " + strings.Join(quoted, ", ")
	if g.rollup {
		sql += " WITH ROLLUP"
	}
	return sql
}

// optionsClause covers Insert's mutually exclusive ignore()/replace() and
// its on_duplicate_key_update() map (spec §4.4).
type optionsClause struct {
	ignore            bool
	replace           bool
	onDuplicateUpdate map[string]interface{}
}

func (o *optionsClause) setIgnore() {
	o.ignore = true
	o.replace = false
}

func (o *optionsClause) setReplace() {
	o.replace = true
	o.ignore = false
}

func (o *optionsClause) setOnDuplicateKeyUpdate(values map[string]interface{}) {
	o.onDuplicateUpdate = values
}
