package engine

import (
	"context"

	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/query"
)

// queryDB adapts a DBHandle to the query package's DB interface, rewriting
// the named `:pN` placeholders the builders emit into PostgreSQL's
// positional `$N` form exactly once, at this boundary (spec §6: "No
// parameter-style conversion is performed by the engine [builders]" — the
// database adapter does it instead). query.Rows and this package's Rows
// share an identical method set, so the value DBHandle.Query returns
// satisfies query.Rows without any further wrapping — only the enclosing
// function signature needs to name the other package's interface type.
type queryDB struct {
	handle DBHandle
}

func newQueryDB(handle DBHandle) queryDB {
	return queryDB{handle: handle}
}

func (q queryDB) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	return q.handle.Exec(ctx, query.RewritePositional(sql), args...)
}

func (q queryDB) Query(ctx context.Context, sql string, args ...interface{}) (query.Rows, error) {
	return q.handle.Query(ctx, query.RewritePositional(sql), args...)
}
