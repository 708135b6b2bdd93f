package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertSingleRow(t *testing.T) {
	i := NewInsert(&fakeDB{}).Into("users").Set("name", "ana").Set("age", 30)
	sql, err := i.ToSQL()

	assert.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("age", "name") VALUES (:p1, :p2)`, sql)
	assert.Equal(t, []interface{}{30, "ana"}, i.bag.Values())
}

func TestInsertRequiresTable(t *testing.T) {
	i := NewInsert(&fakeDB{}).Set("name", "ana")
	_, err := i.ToSQL()
	assert.Error(t, err)
}

func TestInsertRequiresAPayload(t *testing.T) {
	i := NewInsert(&fakeDB{}).Into("users")
	_, err := i.ToSQL()
	assert.Error(t, err)
}

func TestInsertRejectsInvalidTableIdentifier(t *testing.T) {
	i := NewInsert(&fakeDB{}).Into("users; DROP TABLE users").Set("name", "ana")
	_, err := i.ToSQL()
	assert.Error(t, err)
}

func TestInsertRejectsInvalidColumnIdentifier(t *testing.T) {
	i := NewInsert(&fakeDB{}).Into("users").Set("name; DROP TABLE users", "ana")
	_, err := i.ToSQL()
	assert.Error(t, err)
	assert.IsType(t, &BuilderError{}, err)
}

func TestInsertRejectsInvalidReturningIdentifier(t *testing.T) {
	i := NewInsert(&fakeDB{}).Into("users").Set("name", "ana").Returning("id; DROP TABLE users")
	_, err := i.ToSQL()
	assert.Error(t, err)
	assert.IsType(t, &BuilderError{}, err)
}

func TestInsertBatchValuesUnionsColumns(t *testing.T) {
	i := NewInsert(&fakeDB{}).Into("users").BatchValues([]map[string]interface{}{
		{"name": "ana"},
		{"name": "bea", "age": 20},
	})
	sql, err := i.ToSQL()

	assert.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("age", "name") VALUES (:p1, :p2), (:p3, :p4)`, sql)
	assert.Equal(t, []interface{}{nil, "ana", 20, "bea"}, i.bag.Values())
}

func TestInsertIgnore(t *testing.T) {
	i := NewInsert(&fakeDB{}).Into("users").Set("name", "ana").Ignore()
	sql, _ := i.ToSQL()
	assert.Equal(t, `INSERT INTO "users" ("name") VALUES (:p1) ON CONFLICT DO NOTHING`, sql)
}

func TestInsertOnDuplicateKeyUpdate(t *testing.T) {
	i := NewInsert(&fakeDB{}).Into("users").Set("id", 1).Set("name", "ana").
		OnDuplicateKeyUpdate(map[string]interface{}{"name": "ana2"})
	sql, _ := i.ToSQL()
	assert.Equal(t, `INSERT INTO "users" ("id", "name") VALUES (:p1, :p2) ON CONFLICT DO UPDATE SET "name" = :p3`, sql)
}

func TestInsertReturning(t *testing.T) {
	i := NewInsert(&fakeDB{}).Into("users").Set("name", "ana").Returning("id")
	sql, _ := i.ToSQL()
	assert.Equal(t, `INSERT INTO "users" ("name") VALUES (:p1) RETURNING "id"`, sql)
}

func TestInsertFetchOneReturnsScannedRow(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{cols: []string{"id"}, data: [][]interface{}{{int64(42)}}}}
	i := NewInsert(db).Into("users").Set("name", "ana").Returning("id")

	row, err := i.FetchOne(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(42), row["id"])
}

func TestInsertFromSelect(t *testing.T) {
	sub := NewSelect(&fakeDB{}).Select("name").From("staging_users")
	i := NewInsert(&fakeDB{}).Into("users").FromSelect(sub, "name")

	sql, err := i.ToSQL()
	assert.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("name") SELECT "name" FROM "staging_users"`, sql)
}
