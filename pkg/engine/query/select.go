package query

import (
	"context"
	"fmt"
	"strings"
)

// Row is one result row, keyed by column name.
type Row map[string]interface{}

type fromRef struct {
	table    string
	alias    string
	subquery *Select
}

// Select builds a SELECT statement (spec §4.4). Identifiers here accept
// richer forms than the DML builders — `table.col`, `col AS alias`, `*`,
// and function calls containing `(` — and are not validated, only quoted
// when they look like a bare identifier.
type Select struct {
	base

	columns    []string
	distinct   bool
	from       []fromRef
	joins      joinClause
	where      whereClause
	groupBy    groupByClause
	having     whereClause
	orderLimit orderLimitClause
	unions     []unionSpec
}

type unionSpec struct {
	query *Select
	all   bool
}

// NewSelect starts a new SELECT builder against db.
func NewSelect(db DB) *Select {
	return &Select{base: newBase(db)}
}

func (s *Select) Select(columns ...string) *Select {
	s.columns = append(s.columns, columns...)
	s.invalidate()
	return s
}

func (s *Select) Distinct() *Select {
	s.distinct = true
	s.invalidate()
	return s
}

func (s *Select) From(table string, alias ...string) *Select {
	a := ""
	if len(alias) > 0 {
		a = alias[0]
	}
	s.from = append(s.from, fromRef{table: table, alias: a})
	s.invalidate()
	return s
}

// FromSubquery adds a derived table; alias is mandatory per spec §4.4.
func (s *Select) FromSubquery(sub *Select, alias string) *Select {
	s.from = append(s.from, fromRef{subquery: sub, alias: alias})
	s.invalidate()
	return s
}

func (s *Select) Join(kind JoinType, table, left, right string, alias ...string) *Select {
	a := ""
	if len(alias) > 0 {
		a = alias[0]
	}
	s.joins.add(kind, table, left, right, a)
	s.invalidate()
	return s
}

func (s *Select) Where(column string, value interface{}, comparison Comparison, link Link) *Select {
	s.where.add(link, column, comparison, value)
	s.invalidate()
	return s
}

// WhereGroup opens a parenthesized group; fn receives a fresh builder
// scoped only to the group (spec §4.4).
func (s *Select) WhereGroup(fn func(*GroupBuilder), link Link) *Select {
	gb := &GroupBuilder{}
	fn(gb)
	s.where.addGroup(link, gb.predicates)
	s.invalidate()
	return s
}

func (s *Select) WhereIn(column string, values []interface{}, link Link) *Select {
	return s.Where(column, values, In, link)
}

func (s *Select) WhereNotIn(column string, values []interface{}, link Link) *Select {
	return s.Where(column, values, NotIn, link)
}

func (s *Select) WhereBetween(column string, lo, hi interface{}, link Link) *Select {
	return s.Where(column, []interface{}{lo, hi}, Between, link)
}

func (s *Select) WhereNotBetween(column string, lo, hi interface{}, link Link) *Select {
	return s.Where(column, []interface{}{lo, hi}, NotBetween, link)
}

func (s *Select) WhereNull(column string, link Link) *Select {
	return s.Where(column, nil, IsNull, link)
}

func (s *Select) WhereNotNull(column string, link Link) *Select {
	return s.Where(column, nil, IsNotNull, link)
}

func (s *Select) WhereLike(column string, pattern string, link Link) *Select {
	return s.Where(column, pattern, Like, link)
}

func (s *Select) WhereNotLike(column string, pattern string, link Link) *Select {
	return s.Where(column, pattern, NotLike, link)
}

func (s *Select) WhereRaw(sql string, link Link) *Select {
	return s.Where("", Raw{SQL: sql}, RawCmp, link)
}

func (s *Select) WhereExists(sub *Select, link Link) *Select {
	s.where.predicates = append(s.where.predicates, predicate{
		link: link, comparison: RawCmp, isLeaf: true,
		value: existsValue{sub}, column: "",
	})
	s.invalidate()
	return s
}

type existsValue struct{ sub *Select }

func (s *Select) GroupBy(columns ...string) *Select {
	s.groupBy.add(columns...)
	s.invalidate()
	return s
}

func (s *Select) WithRollup() *Select {
	s.groupBy.rollup = true
	s.invalidate()
	return s
}

func (s *Select) Having(column string, value interface{}, comparison Comparison, link Link) *Select {
	s.having.add(link, column, comparison, value)
	s.invalidate()
	return s
}

func (s *Select) OrderBy(column, direction string) *Select {
	s.orderLimit.addOrderBy(column, direction)
	s.invalidate()
	return s
}

func (s *Select) Limit(n int) *Select {
	s.orderLimit.setLimit(n)
	s.invalidate()
	return s
}

func (s *Select) Offset(page, manual int) (*Select, error) {
	if err := s.orderLimit.setOffset(page, manual); err != nil {
		return s, err
	}
	s.invalidate()
	return s, nil
}

func (s *Select) Union(other *Select) *Select {
	s.unions = append(s.unions, unionSpec{query: other, all: false})
	s.invalidate()
	return s
}

func (s *Select) UnionAll(other *Select) *Select {
	s.unions = append(s.unions, unionSpec{query: other, all: true})
	s.invalidate()
	return s
}

// ToSQL renders the statement, caching the result until the next mutating
// call (spec §8: "to_sql() is pure").
func (s *Select) ToSQL() (string, error) {
	if !s.dirty {
		return s.cachedSQL, nil
	}
	s.bag = NewParamBag()

	var b strings.Builder
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.WriteString("*")
	} else {
		cols := make([]string, len(s.columns))
		for i, c := range s.columns {
			cols[i] = renderSelectColumn(c)
		}
		b.WriteString(strings.Join(cols, ", "))
	}

	if len(s.from) > 0 {
		b.WriteString(" FROM ")
		parts := make([]string, len(s.from))
		for i, f := range s.from {
			if f.subquery != nil {
				sub, err := f.subquery.ToSQL()
				if err != nil {
					return "", err
				}
				s.bag.Merge(f.subquery.bag)
				parts[i] = "(" + sub + ") AS " + f.alias
			} else {
				parts[i] = renderTableRef(f.table, f.alias)
			}
		}
		b.WriteString(strings.Join(parts, ", "))
	}

	b.WriteString(s.joins.render())

	if !s.where.empty() {
		whereSQL, err := renderWherePredicates(s.where.predicates, s.bag)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(whereSQL)
	}

	b.WriteString(s.groupBy.render())

	if !s.having.empty() {
		havingSQL, err := s.having.render(s.bag)
		if err != nil {
			return "", err
		}
		b.WriteString(" HAVING ")
		b.WriteString(havingSQL)
	}

	b.WriteString(s.orderLimit.renderOrderBy())
	b.WriteString(s.orderLimit.renderLimitOffset())

	sql := b.String()
	for _, u := range s.unions {
		usql, err := u.query.ToSQL()
		if err != nil {
			return "", err
		}
		s.bag.Merge(u.query.bag)
		keyword := "UNION"
		if u.all {
			keyword = "UNION ALL"
		}
		sql = sql + " " + keyword + " " + usql
	}

	return s.cache(sql), nil
}

// renderWherePredicates handles the EXISTS special case (a nested Select)
// before delegating to the shared predicate renderer.
func renderWherePredicates(preds []predicate, bag *ParamBag) (string, error) {
	rewritten := make([]predicate, len(preds))
	for i, p := range preds {
		if p.isLeaf {
			if ev, ok := p.value.(existsValue); ok {
				sql, err := ev.sub.ToSQL()
				if err != nil {
					return "", err
				}
				bag.Merge(ev.sub.bag)
				rewritten[i] = predicate{link: p.link, isLeaf: true, column: "EXISTS", comparison: RawCmp, value: Raw{SQL: "EXISTS (" + sql + ")"}}
				continue
			}
		}
		rewritten[i] = p
	}
	return renderPredicates(rewritten, bag)
}

func renderSelectColumn(c string) string {
	if ValidateIdentifier(c) {
		return QuoteIdentifier(c)
	}
	return c
}

// Execute runs the statement as a non-returning exec and reports rows
// affected. Select statements normally go through FetchAll/FetchOne, but
// Execute is exposed for uniformity with the DML builders (spec §4.4:
// "All four builders expose ... execute()").
func (s *Select) Execute(ctx context.Context) (int64, error) {
	sql, err := s.ToSQL()
	if err != nil {
		return 0, err
	}
	return s.db.Exec(ctx, sql, s.bag.Values()...)
}

// FetchAll runs the query and returns every row.
func (s *Select) FetchAll(ctx context.Context) ([]Row, error) {
	sql, err := s.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, sql, s.bag.Values()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// FetchOne runs the query and returns the first row, or ok=false if empty.
func (s *Select) FetchOne(ctx context.Context) (Row, bool, error) {
	rows, err := s.FetchAll(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// FetchScalar runs the query and returns the first column of the first row.
func (s *Select) FetchScalar(ctx context.Context) (interface{}, error) {
	row, ok, err := s.FetchOne(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	for _, v := range row {
		return v, nil
	}
	return nil, nil
}

func scanRow(rows Rows) (Row, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("query: failed to scan row: %w", err)
	}
	cols := rows.FieldDescriptions()
	row := make(Row, len(cols))
	for i, col := range cols {
		if i < len(values) {
			row[col] = values[i]
		}
	}
	return row, nil
}

// GroupBuilder is the scoped builder WhereGroup's callback receives.
type GroupBuilder struct {
	predicates []predicate
}

func (g *GroupBuilder) Where(column string, value interface{}, comparison Comparison, link Link) *GroupBuilder {
	g.predicates = append(g.predicates, predicate{link: link, column: column, comparison: comparison, value: value, isLeaf: true})
	return g
}
