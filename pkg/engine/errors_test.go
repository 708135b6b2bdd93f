package engine

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapDatabaseErrorNilPassesThrough(t *testing.T) {
	assert.NoError(t, mapDatabaseError(nil, "User", "insert", nil))
}

func TestMapDatabaseErrorNonPGWrapsAsDatabaseError(t *testing.T) {
	err := mapDatabaseError(errors.New("connection refused"), "User", "insert", nil)

	var dbErr *DatabaseError
	assert.ErrorAs(t, err, &dbErr)
	assert.Equal(t, "insert", dbErr.Operation)
}

func TestMapDatabaseErrorUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Detail: "Key (email)=(a@b.com) already exists."}
	values := map[string]interface{}{"email": "a@b.com"}

	err := mapDatabaseError(pgErr, "User", "insert", values)

	var uc *UniqueConstraintError
	assert.ErrorAs(t, err, &uc)
	assert.Equal(t, "email", uc.Field)
	assert.Equal(t, "a@b.com", uc.Value)
	assert.Equal(t, "User", uc.Table)
	assert.Equal(t, "unique_constraint", uc.Kind())
}

func TestMapDatabaseErrorForeignKeyViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23503",
		Detail:         "Key (author_id)=(uuid-999) is not present in table \"users\".",
		ConstraintName: "fk_posts_author_id_users",
	}
	values := map[string]interface{}{"author_id": "uuid-999"}

	err := mapDatabaseError(pgErr, "Post", "insert", values)

	var fkErr *ForeignKeyError
	assert.ErrorAs(t, err, &fkErr)
	assert.Equal(t, "author_id", fkErr.Field)
	assert.Equal(t, "users", fkErr.ReferencedTable)
	assert.Equal(t, "users", fkErr.ReferencedEntity)
}

func TestMapDatabaseErrorForeignKeyViolationUnrecognizedConstraintName(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503", ConstraintName: "some_other_constraint"}

	err := mapDatabaseError(pgErr, "Post", "insert", nil)

	var fkErr *ForeignKeyError
	assert.ErrorAs(t, err, &fkErr)
	assert.Equal(t, "referenced_table", fkErr.ReferencedTable)
}

func TestMapDatabaseErrorNotNullViolationUsesColumnName(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23502", ColumnName: "name"}

	err := mapDatabaseError(pgErr, "User", "insert", nil)

	var nn *NotNullError
	assert.ErrorAs(t, err, &nn)
	assert.Equal(t, "name", nn.Field)
}

func TestMapDatabaseErrorNotNullViolationFallsBackToMessage(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23502", Message: `null value in column "name" violates not-null constraint`}

	err := mapDatabaseError(pgErr, "User", "insert", nil)

	var nn *NotNullError
	assert.ErrorAs(t, err, &nn)
	assert.Equal(t, "name", nn.Field)
}

func TestMapDatabaseErrorCheckViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23514", Message: `new row for relation "orders" violates check constraint "orders_total_check"`, ConstraintName: "orders_total_check"}

	err := mapDatabaseError(pgErr, "Order", "insert", nil)

	var ce *ConstraintError
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, "check", ce.Type)
	assert.Equal(t, "orders", ce.Field)
}

func TestMapDatabaseErrorUndefinedTable(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42P01"}

	err := mapDatabaseError(pgErr, "Order", "select", nil)

	var meta *MetadataError
	assert.ErrorAs(t, err, &meta)
	assert.Equal(t, "Order", meta.Entity)
}

func TestMapDatabaseErrorUndefinedColumn(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42703", Message: `column "unknown_field" of relation "users" does not exist`}

	err := mapDatabaseError(pgErr, "User", "select", nil)

	var uf *UnknownFieldError
	assert.ErrorAs(t, err, &uf)
	assert.Equal(t, "unknown_field", uf.Field)
}

func TestMapDatabaseErrorUnknownCodeFallsBackToDatabaseError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40001", Message: "could not serialize access"}

	err := mapDatabaseError(pgErr, "Order", "update", nil)

	var dbErr *DatabaseError
	assert.ErrorAs(t, err, &dbErr)
}

func TestBetweenFirstMissingDelimitersReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", betweenFirst("no delimiters here", "(", ")"))
	assert.Equal(t, "", betweenFirst("(unterminated", "(", ")"))
}

func TestFormatErrorColorizesChameleonError(t *testing.T) {
	err := &NotNullError{Field: "name", Suggestion: "provide a value"}
	out := FormatError(err)
	assert.Contains(t, out, "not_null")
	assert.Contains(t, out, "name")
}

func TestFormatErrorPassesThroughPlainError(t *testing.T) {
	out := FormatError(errors.New("boom"))
	assert.Equal(t, "boom", out)
}
