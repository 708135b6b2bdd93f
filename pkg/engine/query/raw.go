package query

// Raw wraps a literal SQL fragment that is spliced verbatim into generated
// SQL wherever a value is expected, contributing no bound parameter (spec
// §4.4's "Raw sentinel", glossary "Raw fragment"). Used for NOW(), other
// function calls, or `col = col + 1` forms.
type Raw struct {
	SQL string
}

// R is a short constructor, e.g. query.R("NOW()").
func R(sql string) Raw {
	return Raw{SQL: sql}
}
