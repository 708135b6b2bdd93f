package query

import (
	"context"
	"fmt"
)

// BuilderError covers an invalid identifier, an empty mandatory clause, or
// an IN/NOT IN predicate built against an empty value list (spec §7,
// "Builder error"). It implements the Kind()/Error() shape every typed
// engine error does (pkg/engine.ChameleonError), declared here instead of
// in pkg/engine to avoid an import cycle — builders raise it directly.
type BuilderError struct {
	Builder string
	Message string
}

func (e *BuilderError) Error() string {
	return fmt.Sprintf("builder error in %s: %s", e.Builder, e.Message)
}

func (e *BuilderError) Kind() string { return "builder" }

// DB is the minimal execution surface every builder needs. It mirrors
// engine.DBHandle's Exec/Query shape without importing the engine package
// (which imports query to emit flush DML — importing back would cycle);
// engine.go adapts its DBHandle to this interface with a small forwarding
// wrapper.
type DB interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (int64, error)
	Query(ctx context.Context, sql string, args ...interface{}) (Rows, error)
}

// Rows is the row-cursor surface fetch* methods consume.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Values() ([]interface{}, error)
	FieldDescriptions() []string
	Err() error
	Close()
}

// base is embedded by every builder (Select/Insert/Update/Delete). It
// owns the parameter bag, the dirty-flag SQL cache, and debug toggling —
// grounded on the teacher's shared debugLevel/shouldDebug/shouldTrace
// fields (pkg/engine/mutation/builders.go), generalized into one reusable
// type instead of four copies.
type base struct {
	db    DB
	bag   *ParamBag
	debug bool
	trace bool

	dirty     bool
	cachedSQL string
}

func newBase(db DB) base {
	return base{db: db, bag: NewParamBag(), dirty: true}
}

// invalidate marks the SQL cache stale; every fluent setter calls this.
func (b *base) invalidate() {
	b.dirty = true
}

// cache stores freshly generated SQL and clears the dirty flag, so
// repeated ToSQL() calls without mutation are idempotent and cheap (spec
// §8, "to_sql() is pure").
func (b *base) cache(sql string) string {
	b.cachedSQL = sql
	b.dirty = false
	return sql
}
