package query

import "context"

// fakeRows is a canned Rows implementation for builders' Execute/Fetch paths.
type fakeRows struct {
	cols   []string
	data   [][]interface{}
	cursor int
}

func (r *fakeRows) Next() bool {
	if r.cursor >= len(r.data) {
		return false
	}
	r.cursor++
	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error { return nil }

func (r *fakeRows) Values() ([]interface{}, error) {
	return r.data[r.cursor-1], nil
}

func (r *fakeRows) FieldDescriptions() []string { return r.cols }

func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Close() {}

// fakeDB records every statement passed to Exec/Query and returns
// pre-programmed responses, standing in for *engine.Connector in builder
// tests that exercise Execute/FetchAll without a live database.
type fakeDB struct {
	lastSQL  string
	lastArgs []interface{}
	execN    int64
	execErr  error
	rows     *fakeRows
	queryErr error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	f.lastSQL = sql
	f.lastArgs = args
	return f.execN, f.execErr
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (Rows, error) {
	f.lastSQL = sql
	f.lastArgs = args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.rows == nil {
		return &fakeRows{}, nil
	}
	return f.rows, nil
}
