package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhereBetween(t *testing.T) {
	s := NewSelect(&fakeDB{}).From("events").WhereBetween("created_at", 1, 100, And)
	sql, err := s.ToSQL()

	assert.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "events" WHERE "created_at" BETWEEN :p1 AND :p2`, sql)
}

func TestWhereBetweenRejectsWrongBoundCount(t *testing.T) {
	s := NewSelect(&fakeDB{}).From("events")
	s.where.add(And, "created_at", Between, []interface{}{1})
	_, err := s.ToSQL()
	assert.Error(t, err)
}

func TestWhereNullAndNotNull(t *testing.T) {
	s := NewSelect(&fakeDB{}).From("users").WhereNull("deleted_at", And)
	sql, _ := s.ToSQL()
	assert.Equal(t, `SELECT * FROM "users" WHERE "deleted_at" IS NULL`, sql)

	s2 := NewSelect(&fakeDB{}).From("users").WhereNotNull("deleted_at", And)
	sql2, _ := s2.ToSQL()
	assert.Equal(t, `SELECT * FROM "users" WHERE "deleted_at" IS NOT NULL`, sql2)
}

func TestWhereLikeAndNotLike(t *testing.T) {
	s := NewSelect(&fakeDB{}).From("users").WhereLike("name", "a%", And)
	sql, _ := s.ToSQL()
	assert.Equal(t, `SELECT * FROM "users" WHERE "name" LIKE :p1`, sql)
}

func TestWhereRawSplicesVerbatim(t *testing.T) {
	s := NewSelect(&fakeDB{}).From("users").WhereRaw("age > 18", And)
	sql, err := s.ToSQL()
	assert.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE age > 18`, sql)
}

func TestWhereExists(t *testing.T) {
	sub := NewSelect(&fakeDB{}).From("orders").Where("orders.user_id", Raw{SQL: "users.id"}, EQ, And)
	s := NewSelect(&fakeDB{}).From("users").WhereExists(sub, And)

	sql, err := s.ToSQL()
	assert.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE EXISTS (SELECT * FROM "orders" WHERE orders.user_id = users.id)`, sql)
}

func TestValidateIdentifierRejectsInjection(t *testing.T) {
	assert.True(t, ValidateIdentifier("users"))
	assert.False(t, ValidateIdentifier("users; DROP TABLE users"))
	assert.False(t, ValidateIdentifier("users.id"))
}

func TestRewritePositionalConvertsInOrder(t *testing.T) {
	sql := `SELECT * FROM "users" WHERE "id" = :p1 AND "age" > :p2`
	got := RewritePositional(sql)
	assert.Equal(t, `SELECT * FROM "users" WHERE "id" = $1 AND "age" > $2`, got)
}

func TestRewritePositionalRenumbersRegardlessOfOriginalNumbers(t *testing.T) {
	sql := `WHERE "x" = :p7 AND "y" = :p3`
	got := RewritePositional(sql)
	assert.Equal(t, `WHERE "x" = $1 AND "y" = $2`, got)
}
