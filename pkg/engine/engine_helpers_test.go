package engine

import (
	"context"

	"github.com/chameleon-db/chameleondb/chameleon/internal/config"
	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/metadata"
)

// fakeDB is a no-op DBHandle used to construct an *Engine in tests that
// exercise pure in-memory logic (change detection, dependency ordering,
// dispatcher wiring) without a live database.
type fakeDB struct {
	inTx bool
}

func (f *fakeDB) Prepare(ctx context.Context, sql string) (Statement, error) {
	return nil, &MetadataError{Message: "fakeDB: Prepare not supported"}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	return 0, &MetadataError{Message: "fakeDB: Exec not supported"}
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (Rows, error) {
	return nil, &MetadataError{Message: "fakeDB: Query not supported"}
}

func (f *fakeDB) BeginTx(ctx context.Context) error {
	f.inTx = true
	return nil
}

func (f *fakeDB) Commit(ctx context.Context) error {
	f.inTx = false
	return nil
}

func (f *fakeDB) Rollback(ctx context.Context) error {
	f.inTx = false
	return nil
}

func (f *fakeDB) InTransaction() bool { return f.inTx }

func (f *fakeDB) LastInsertID() string { return "" }

func (f *fakeDB) Quote(s string) string { return `"` + s + `"` }

// newTestEngine builds an *Engine wired to a StaticRegistry and a fakeDB,
// sufficient for tests that exercise identity-map, change-detection and
// flush-ordering logic without touching a real connection.
func newTestEngine(t interface {
	Fatalf(format string, args ...interface{})
}, registry *metadata.StaticRegistry) *Engine {
	e, err := NewEngine(config.Defaults(), registry, &fakeDB{})
	if err != nil {
		t.Fatalf("newTestEngine: %v", err)
	}
	return e
}
