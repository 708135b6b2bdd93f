package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Insert builds an INSERT statement (spec §4.4). Unlike Select, table and
// column identifiers here are validated against ValidateIdentifier.
type Insert struct {
	base

	table       string
	singleRow   map[string]interface{}
	batchRows   []map[string]interface{}
	fromSelect  *Select
	fromColumns []string
	options     optionsClause
	returning   []string
}

// NewInsert starts a new INSERT builder against db.
func NewInsert(db DB) *Insert {
	return &Insert{base: newBase(db)}
}

func (i *Insert) Into(table string) *Insert {
	i.table = table
	i.invalidate()
	return i
}

// Set stages a single-row value. Mutually exclusive with BatchValues and
// FromSelect in the same statement.
func (i *Insert) Set(column string, value interface{}) *Insert {
	if i.singleRow == nil {
		i.singleRow = make(map[string]interface{})
	}
	i.singleRow[column] = value
	i.invalidate()
	return i
}

// BatchValues stages a multi-row insert. Column lists are derived from the
// union of keys across all rows; rows missing a key get NULL for it (spec
// §4.4).
func (i *Insert) BatchValues(rows []map[string]interface{}) *Insert {
	i.batchRows = rows
	i.invalidate()
	return i
}

func (i *Insert) FromSelect(sub *Select, columns ...string) *Insert {
	i.fromSelect = sub
	i.fromColumns = columns
	i.invalidate()
	return i
}

func (i *Insert) Ignore() *Insert {
	i.options.setIgnore()
	i.invalidate()
	return i
}

func (i *Insert) Replace() *Insert {
	i.options.setReplace()
	i.invalidate()
	return i
}

func (i *Insert) OnDuplicateKeyUpdate(values map[string]interface{}) *Insert {
	i.options.setOnDuplicateKeyUpdate(values)
	i.invalidate()
	return i
}

// Returning requests columns back via RETURNING, used by the flush
// orchestrator to read auto-increment ids in one round trip (grounded on
// the teacher's `RETURNING *` usage in pkg/engine/mutation/builders.go).
func (i *Insert) Returning(columns ...string) *Insert {
	i.returning = columns
	i.invalidate()
	return i
}

func (i *Insert) ToSQL() (string, error) {
	if !i.dirty {
		return i.cachedSQL, nil
	}
	if i.table == "" {
		return "", &BuilderError{Builder: "insert", Message: "into(table) is required"}
	}
	if !ValidateIdentifier(i.table) {
		return "", &BuilderError{Builder: "insert", Message: fmt.Sprintf("invalid table identifier %q", i.table)}
	}

	i.bag = NewParamBag()
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(QuoteIdentifier(i.table))

	switch {
	case i.fromSelect != nil:
		if len(i.fromColumns) > 0 {
			quoted, err := quoteAllValidated("insert", i.fromColumns)
			if err != nil {
				return "", err
			}
			b.WriteString(" (" + strings.Join(quoted, ", ") + ")")
		}
		sub, err := i.fromSelect.ToSQL()
		if err != nil {
			return "", err
		}
		i.bag.Merge(i.fromSelect.bag)
		b.WriteString(" ")
		b.WriteString(sub)

	case len(i.batchRows) > 0:
		columns := unionKeys(i.batchRows)
		quoted, err := quoteAllValidated("insert", columns)
		if err != nil {
			return "", err
		}
		b.WriteString(" (" + strings.Join(quoted, ", ") + ") VALUES ")
		rowsSQL := make([]string, len(i.batchRows))
		for r, row := range i.batchRows {
			placeholders := make([]string, len(columns))
			for c, col := range columns {
				v, ok := row[col]
				if !ok {
					v = nil
				}
				placeholders[c] = bindOperand(v, i.bag)
			}
			rowsSQL[r] = "(" + strings.Join(placeholders, ", ") + ")"
		}
		b.WriteString(strings.Join(rowsSQL, ", "))

	case len(i.singleRow) > 0:
		columns := sortedKeys(i.singleRow)
		quoted, err := quoteAllValidated("insert", columns)
		if err != nil {
			return "", err
		}
		b.WriteString(" (" + strings.Join(quoted, ", ") + ") VALUES (")
		placeholders := make([]string, len(columns))
		for c, col := range columns {
			placeholders[c] = bindOperand(i.singleRow[col], i.bag)
		}
		b.WriteString(strings.Join(placeholders, ", "))
		b.WriteString(")")

	default:
		return "", &BuilderError{Builder: "insert", Message: "one of set(), batch_values(), or from_select() is required"}
	}

	switch {
	case i.options.ignore:
		b.WriteString(" ON CONFLICT DO NOTHING")
	case i.options.replace:
		// Postgres has no REPLACE INTO; emit the equivalent upsert against
		// every inserted column.
		cols := sortedKeys(i.singleRow)
		if err := checkIdentifiers("insert", "column", cols); err != nil {
			return "", err
		}
		parts := make([]string, len(cols))
		for idx, col := range cols {
			q := QuoteIdentifier(col)
			parts[idx] = q + " = EXCLUDED." + q
		}
		b.WriteString(" ON CONFLICT DO UPDATE SET " + strings.Join(parts, ", "))
	case len(i.options.onDuplicateUpdate) > 0:
		b.WriteString(" ON CONFLICT DO UPDATE SET ")
		cols := sortedKeys(i.options.onDuplicateUpdate)
		if err := checkIdentifiers("insert", "column", cols); err != nil {
			return "", err
		}
		parts := make([]string, len(cols))
		for idx, col := range cols {
			parts[idx] = QuoteIdentifier(col) + " = " + bindOperand(i.options.onDuplicateUpdate[col], i.bag)
		}
		b.WriteString(strings.Join(parts, ", "))
	}

	if len(i.returning) > 0 {
		quoted, err := quoteAllValidated("insert", i.returning)
		if err != nil {
			return "", err
		}
		b.WriteString(" RETURNING " + strings.Join(quoted, ", "))
	}

	return i.cache(b.String()), nil
}

func (i *Insert) Execute(ctx context.Context) (int64, error) {
	sql, err := i.ToSQL()
	if err != nil {
		return 0, err
	}
	return i.db.Exec(ctx, sql, i.bag.Values()...)
}

// FetchOne executes an insert carrying a RETURNING clause and returns the
// returned row.
func (i *Insert) FetchOne(ctx context.Context) (Row, error) {
	sql, err := i.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := i.db.Query(ctx, sql, i.bag.Values()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("query: INSERT returned no rows")
	}
	return scanRow(rows)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unionKeys(rows []map[string]interface{}) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, row := range rows {
		for _, k := range sortedKeys(row) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func quoteAll(columns []string) []string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdentifier(c)
	}
	return quoted
}
