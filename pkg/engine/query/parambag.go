// Package query implements the fluent, composable SQL builder family
// (Select, Insert, Update, Delete) and the identifier/placeholder
// machinery they share. It generalizes the teacher's flat, map-based
// mutation builders (pkg/engine/mutation/builders.go) into builders
// assembled from small clause helpers.
package query

import (
	"fmt"
	"regexp"
)

// Param is one bound value in a statement's parameter bag.
type Param struct {
	Placeholder string
	Value       interface{}
}

// ParamBag collects named parameters during SQL construction and binds
// them to a prepared statement at execution time (spec §2, §4.4). Binding
// is one-shot per statement: a bag is never reused across two to_sql()
// calls with different values, matching "binding is one-shot per
// statement".
type ParamBag struct {
	params  []Param
	counter int
}

// NewParamBag creates an empty parameter bag.
func NewParamBag() *ParamBag {
	return &ParamBag{}
}

// Bind appends value and returns its placeholder, of the form `:p<N>`
// (spec §4.4, "Parameter naming").
func (b *ParamBag) Bind(value interface{}) string {
	b.counter++
	placeholder := fmt.Sprintf(":p%d", b.counter)
	b.params = append(b.params, Param{Placeholder: placeholder, Value: value})
	return placeholder
}

// Params returns every bound parameter in bind order.
func (b *ParamBag) Params() []Param {
	return b.params
}

// Values returns just the bound values, in bind order — the positional
// slice pgx expects once placeholders are rewritten to `$N`.
func (b *ParamBag) Values() []interface{} {
	values := make([]interface{}, len(b.params))
	for i, p := range b.params {
		values[i] = p.Value
	}
	return values
}

// Merge appends another bag's parameters after this one's, renumbering
// nothing (placeholders already baked into SQL text keep their names;
// callers needing positional order call Values() after the SQL for every
// sub-query has been concatenated in the same order). Used by UNION and
// subquery composition.
func (b *ParamBag) Merge(other *ParamBag) {
	b.params = append(b.params, other.params...)
	if other.counter > b.counter {
		b.counter = other.counter
	}
}

// identifierPattern is the validation regex DML builders apply to bare
// column/table identifiers (spec §4.4).
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier reports whether s is a safe bare SQL identifier.
func ValidateIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// qualifiedIdentifierPattern additionally allows one "table.column" dotted
// qualifier, for Update/Delete column references used alongside Join/
// multi-table Table() calls.
var qualifiedIdentifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateQualifiedIdentifier reports whether s is a bare identifier or a
// "table.column" pair of them, rejecting everything else (raw fragments,
// stray punctuation, injected SQL).
func ValidateQualifiedIdentifier(s string) bool {
	return qualifiedIdentifierPattern.MatchString(s)
}

// QuoteIdentifier wraps a validated identifier in double quotes, the
// dialect's standard quoting.
func QuoteIdentifier(s string) string {
	return `"` + s + `"`
}

// checkIdentifier validates name and, on failure, returns a *BuilderError
// naming builder and field — the strict path Insert/Update/Delete use for
// their target table, their SET/INSERT column names and their RETURNING
// columns (spec §4.4). Select's renderTableRef/renderOperand stay lenient,
// to allow raw fragments and computed expressions. WHERE columns and JOIN
// tables/operands of Update and Delete also go through those lenient
// helpers and are not validated here.
func checkIdentifier(builder, field, name string) error {
	if !ValidateIdentifier(name) {
		return &BuilderError{Builder: builder, Message: fmt.Sprintf("invalid %s identifier %q", field, name)}
	}
	return nil
}

// checkQualifiedIdentifier is checkIdentifier's column-reference variant,
// accepting a "table.column" qualifier alongside a bare name.
func checkQualifiedIdentifier(builder, field, name string) error {
	if !ValidateQualifiedIdentifier(name) {
		return &BuilderError{Builder: builder, Message: fmt.Sprintf("invalid %s identifier %q", field, name)}
	}
	return nil
}

// checkIdentifiers validates every name in names, returning the first
// failure.
func checkIdentifiers(builder, field string, names []string) error {
	for _, n := range names {
		if err := checkIdentifier(builder, field, n); err != nil {
			return err
		}
	}
	return nil
}

// quoteAllValidated validates then quotes every column name, failing
// closed on the first invalid one instead of silently passing it through.
func quoteAllValidated(builder string, columns []string) ([]string, error) {
	if err := checkIdentifiers(builder, "column", columns); err != nil {
		return nil, err
	}
	return quoteAll(columns), nil
}

var placeholderPattern = regexp.MustCompile(`:p\d+`)

// RewritePositional converts `:pN`-style named placeholders, in the order
// they appear in sql, into PostgreSQL's positional `$1`, `$2`, ... form.
// Builders generate `:name` placeholders per spec §6 ("No parameter-style
// conversion is performed by the engine"); the database adapter applies
// this conversion at the boundary, once, right before calling the pgx
// driver, the same way the teacher's builders hand pgx `$N` SQL directly.
func RewritePositional(sql string) string {
	n := 0
	return placeholderPattern.ReplaceAllStringFunc(sql, func(string) string {
		n++
		return fmt.Sprintf("$%d", n)
	})
}
