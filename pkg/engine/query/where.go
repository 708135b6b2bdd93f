package query

import "strings"

// Comparison is the operator used by a where/having predicate.
type Comparison string

const (
	EQ          Comparison = "="
	NE          Comparison = "!="
	GT          Comparison = ">"
	GTE         Comparison = ">="
	LT          Comparison = "<"
	LTE         Comparison = "<="
	Like        Comparison = "LIKE"
	NotLike     Comparison = "NOT LIKE"
	In          Comparison = "IN"
	NotIn       Comparison = "NOT IN"
	Between     Comparison = "BETWEEN"
	NotBetween  Comparison = "NOT BETWEEN"
	IsNull      Comparison = "IS NULL"
	IsNotNull   Comparison = "IS NOT NULL"
	RawCmp      Comparison = "RAW"
)

// Link joins one predicate to the next.
type Link string

const (
	And Link = "AND"
	Or  Link = "OR"
)

// predicate is one entry in a where/having clause: either a leaf
// comparison or a parenthesized group of further predicates.
type predicate struct {
	link Link

	// leaf fields
	column     string
	comparison Comparison
	value      interface{}
	isLeaf     bool

	// group fields
	group []predicate
}

// whereClause accumulates predicates for WHERE or HAVING, shared by every
// builder that needs one (spec §4.4: "Composed from small clause
// builders").
type whereClause struct {
	predicates []predicate
}

func (w *whereClause) add(link Link, column string, comparison Comparison, value interface{}) {
	w.predicates = append(w.predicates, predicate{
		link: link, column: column, comparison: comparison, value: value, isLeaf: true,
	})
}

func (w *whereClause) addGroup(link Link, group []predicate) {
	w.predicates = append(w.predicates, predicate{link: link, group: group})
}

func (w *whereClause) empty() bool {
	return len(w.predicates) == 0
}

// render produces the SQL text following the WHERE/HAVING keyword
// (exclusive of it) plus every bound parameter, in bind order. Returns
// an error (via *BuilderError, raised by the caller) when an IN/NOT IN
// predicate was given an empty value list.
func (w *whereClause) render(bag *ParamBag) (string, error) {
	return renderPredicates(w.predicates, bag)
}

func renderPredicates(preds []predicate, bag *ParamBag) (string, error) {
	var b strings.Builder
	for i, p := range preds {
		if i > 0 {
			b.WriteString(" ")
			b.WriteString(string(p.link))
			b.WriteString(" ")
		}

		if !p.isLeaf {
			inner, err := renderPredicates(p.group, bag)
			if err != nil {
				return "", err
			}
			b.WriteString("(")
			b.WriteString(inner)
			b.WriteString(")")
			continue
		}

		frag, err := renderLeaf(p, bag)
		if err != nil {
			return "", err
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}

func renderLeaf(p predicate, bag *ParamBag) (string, error) {
	col := renderOperand(p.column)

	switch p.comparison {
	case IsNull:
		return col + " IS NULL", nil
	case IsNotNull:
		return col + " IS NOT NULL", nil
	case RawCmp:
		if raw, ok := p.value.(Raw); ok {
			return raw.SQL, nil
		}
		return "", &BuilderError{Builder: "where", Message: "RAW predicate requires a query.Raw value"}
	case In, NotIn:
		values, err := toSlice(p.value)
		if err != nil {
			return "", err
		}
		if len(values) == 0 {
			return "", &BuilderError{Builder: "where", Message: "IN/NOT IN predicate requires a non-empty value list"}
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = bindOperand(v, bag)
		}
		return col + " " + string(p.comparison) + " (" + strings.Join(placeholders, ", ") + ")", nil
	case Between, NotBetween:
		bounds, err := toSlice(p.value)
		if err != nil || len(bounds) != 2 {
			return "", &BuilderError{Builder: "where", Message: "BETWEEN/NOT BETWEEN predicate requires exactly two bounds"}
		}
		lo := bindOperand(bounds[0], bag)
		hi := bindOperand(bounds[1], bag)
		return col + " " + string(p.comparison) + " " + lo + " AND " + hi, nil
	default:
		if sub, ok := p.value.(*Select); ok {
			sql, err := sub.ToSQL()
			if err != nil {
				return "", err
			}
			bag.Merge(sub.bag)
			return col + " " + string(p.comparison) + " (" + sql + ")", nil
		}
		return col + " " + string(p.comparison) + " " + bindOperand(p.value, bag), nil
	}
}

// renderOperand quotes a bare identifier, leaving dotted/aliased/function
// forms untouched — Select's richer identifier leniency applies here too,
// since where() is shared by Select and the DML builders alike.
func renderOperand(s string) string {
	if ValidateIdentifier(s) {
		return QuoteIdentifier(s)
	}
	return s
}

// bindOperand binds a scalar value, or splices a Raw fragment verbatim
// with no parameter contributed.
func bindOperand(value interface{}, bag *ParamBag) string {
	if raw, ok := value.(Raw); ok {
		return raw.SQL
	}
	return bag.Bind(value)
}

// toSlice normalizes an IN/BETWEEN value argument (accepted as []interface{}
// or any concrete slice via reflection-free common cases) into a flat slice.
func toSlice(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		return v, nil
	case nil:
		return nil, &BuilderError{Builder: "where", Message: "expected a slice value"}
	default:
		return nil, &BuilderError{Builder: "where", Message: "expected a []interface{} value"}
	}
}
