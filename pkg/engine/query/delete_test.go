package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeleteBasic(t *testing.T) {
	d := NewDelete(&fakeDB{}).From("users").Where("id", 1, EQ, And)
	sql, err := d.ToSQL()

	assert.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" = :p1`, sql)
}

func TestDeleteRequiresTable(t *testing.T) {
	d := NewDelete(&fakeDB{})
	_, err := d.ToSQL()
	assert.Error(t, err)
}

func TestDeleteWithLimitAndOrderBy(t *testing.T) {
	d := NewDelete(&fakeDB{}).From("logs").OrderBy("created_at", "DESC").Limit(100)
	sql, _ := d.ToSQL()
	assert.Equal(t, `DELETE FROM "logs" ORDER BY "created_at" DESC LIMIT 100`, sql)
}

func TestDeleteRejectsInvalidTableIdentifier(t *testing.T) {
	d := NewDelete(&fakeDB{}).From("users; DROP TABLE x")
	_, err := d.ToSQL()
	assert.Error(t, err)
	assert.IsType(t, &BuilderError{}, err)
}

func TestDeleteWhereInMultipleValues(t *testing.T) {
	d := NewDelete(&fakeDB{}).From("sessions").
		Where("user_id", 1, EQ, And).
		Where("id", []interface{}{10, 20}, In, And)

	sql, err := d.ToSQL()
	assert.NoError(t, err)
	assert.Equal(t, `DELETE FROM "sessions" WHERE "user_id" = :p1 AND "id" IN (:p2, :p3)`, sql)
}
