package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgconn"
)

// ChameleonError is the shared interface every typed engine error
// implements, so callers can classify a failure with errors.As against a
// concrete kind without string-matching Error().
type ChameleonError interface {
	error
	Kind() string
}

// MetadataError covers an unregistered class, a missing primary key
// field, or a malformed relation descriptor (spec §7).
type MetadataError struct {
	Entity  string
	Message string
}

func (e *MetadataError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("metadata error: %s", e.Message)
	}
	return fmt.Sprintf("metadata error on %s: %s", e.Entity, e.Message)
}

func (e *MetadataError) Kind() string { return "metadata" }

// StateError covers illegal lifecycle transitions: persisting a removed
// entity, refreshing one with no primary key, and similar.
type StateError struct {
	Entity    string
	Operation string
	Message   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error: %s on %s: %s", e.Operation, e.Entity, e.Message)
}

func (e *StateError) Kind() string { return "state" }

// Builder errors (invalid identifier, empty mandatory clause, IN/NOT IN
// against an empty list) are *query.BuilderError, declared in
// pkg/engine/query to avoid an import cycle (query builders raise them
// directly); it implements ChameleonError via the same Kind()/Error()
// shape as every type in this file.

// CycleBreakError fires when the dependency manager finds a cycle it
// cannot split — every candidate foreign key in the cycle is non-nullable.
type CycleBreakError struct {
	Entities []string
}

func (e *CycleBreakError) Error() string {
	return fmt.Sprintf("cannot break dependency cycle among %s: all foreign keys are non-nullable", strings.Join(e.Entities, " -> "))
}

func (e *CycleBreakError) Kind() string { return "cycle_break" }

// ListenerError wraps an error returned by an event listener; a listener
// panic is not recovered and is not wrapped.
// Spec §7 treats it identically to a database error: abort flush, rollback.
type ListenerError struct {
	Event string
	Err   error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener error during %s: %s", e.Event, e.Err)
}

func (e *ListenerError) Kind() string { return "listener" }
func (e *ListenerError) Unwrap() error { return e.Err }

// UniqueConstraintError reports a unique-index violation.
type UniqueConstraintError struct {
	Field      string
	Value      interface{}
	Table      string
	Suggestion string
}

func (e *UniqueConstraintError) Error() string {
	return fmt.Sprintf(
		"unique constraint violation on field %q in table %q: value %v already exists. %s",
		e.Field, e.Table, e.Value, e.Suggestion,
	)
}

func (e *UniqueConstraintError) Kind() string { return "unique_constraint" }

// newUniqueConstraintError builds a UniqueConstraintError from a
// unique_violation PgError, pulling the offending field out of a detail
// string of the form `Key (email)=(test@mail.com) already exists.`.
func newUniqueConstraintError(pgErr *pgconn.PgError, entity string, values map[string]interface{}) *UniqueConstraintError {
	field := betweenFirst(pgErr.Detail, "(", ")")
	return &UniqueConstraintError{
		Field:      field,
		Value:      values[field],
		Table:      entity,
		Suggestion: fmt.Sprintf("use a different value for %s, or update the existing record", field),
	}
}

// ForeignKeyError reports a foreign-key violation.
type ForeignKeyError struct {
	Field            string
	Value            interface{}
	ReferencedTable  string
	ReferencedField  string
	ReferencedEntity string
	Suggestion       string
}

func (e *ForeignKeyError) Error() string {
	return fmt.Sprintf(
		"foreign key constraint violation on field %q: value %v does not exist in %s.%s. %s",
		e.Field, e.Value, e.ReferencedTable, e.ReferencedField, e.Suggestion,
	)
}

func (e *ForeignKeyError) Kind() string { return "foreign_key" }

// newForeignKeyError builds a ForeignKeyError from a foreign_key_violation
// PgError. The referenced table is guessed from a constraint name of the
// conventional form `fk_<table>_<field>_<referenced_table>`; anything else
// falls back to a generic placeholder rather than guessing wrong.
func newForeignKeyError(pgErr *pgconn.PgError, entity string, values map[string]interface{}) *ForeignKeyError {
	field := betweenFirst(pgErr.Detail, "(", ")")
	refTable := "referenced_table"
	if parts := strings.Split(pgErr.ConstraintName, "_"); len(parts) >= 4 && parts[0] == "fk" {
		refTable = parts[len(parts)-1]
	}
	return &ForeignKeyError{
		Field:            field,
		Value:            values[field],
		ReferencedTable:  refTable,
		ReferencedField:  "id",
		ReferencedEntity: refTable,
		Suggestion:       fmt.Sprintf("ensure the referenced %s exists before creating this %s", refTable, entity),
	}
}

// NotNullError reports a NOT NULL violation.
type NotNullError struct {
	Field      string
	Suggestion string
}

func (e *NotNullError) Error() string {
	return fmt.Sprintf("NOT NULL constraint violation on field %q. %s", e.Field, e.Suggestion)
}

func (e *NotNullError) Kind() string { return "not_null" }

// newNotNullError builds a NotNullError from a not_null_violation PgError.
// pgx usually fills ColumnName directly; only malformed drivers fall back
// to scraping the field out of the quoted message text.
func newNotNullError(pgErr *pgconn.PgError) *NotNullError {
	field := pgErr.ColumnName
	if field == "" {
		field = betweenFirst(pgErr.Message, `"`, `"`)
	}
	return &NotNullError{
		Field:      field,
		Suggestion: fmt.Sprintf("provide a value for %s (this field is required)", field),
	}
}

// ConstraintError reports a generic constraint violation (CHECK, exclusion).
type ConstraintError struct {
	Type       string
	Field      string
	Value      interface{}
	Suggestion string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s constraint violation on field %q: value %v. %s", e.Type, e.Field, e.Value, e.Suggestion)
}

func (e *ConstraintError) Kind() string { return "constraint" }

// newCheckConstraintError builds a ConstraintError from a check_violation
// PgError.
func newCheckConstraintError(pgErr *pgconn.PgError) *ConstraintError {
	return &ConstraintError{
		Type:       "check",
		Field:      betweenFirst(pgErr.Message, `"`, `"`),
		Suggestion: fmt.Sprintf("value violates check constraint: %s", pgErr.ConstraintName),
	}
}

// UnknownFieldError reports an attempt to reference a field the entity's
// metadata doesn't know about.
type UnknownFieldError struct {
	Entity    string
	Field     string
	Available []string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in entity %q", e.Field, e.Entity)
	if len(e.Available) > 0 {
		msg += fmt.Sprintf(" (available: %s)", strings.Join(e.Available, ", "))
	}
	return msg
}

func (e *UnknownFieldError) Kind() string { return "unknown_field" }

// newUndefinedColumnError builds an UnknownFieldError from an
// undefined_column PgError, e.g. `column "unknown_field" of relation
// "users" does not exist`.
func newUndefinedColumnError(pgErr *pgconn.PgError, entity string) *UnknownFieldError {
	return &UnknownFieldError{Entity: entity, Field: betweenFirst(pgErr.Message, `"`, `"`)}
}

// DatabaseError wraps any error the database interface returned that
// wasn't recognized as a specific constraint violation.
type DatabaseError struct {
	Operation string
	Err       error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Err)
}

func (e *DatabaseError) Kind() string  { return "database" }
func (e *DatabaseError) Unwrap() error { return e.Err }

// mapDatabaseError converts a PostgreSQL error into one of the typed
// constraint errors above, falling back to DatabaseError when the driver
// error isn't a *pgconn.PgError or its code isn't one we special-case.
func mapDatabaseError(err error, entity, operation string, values map[string]interface{}) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return &DatabaseError{Operation: operation, Err: err}
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return newUniqueConstraintError(pgErr, entity, values)
	case "23503": // foreign_key_violation
		return newForeignKeyError(pgErr, entity, values)
	case "23502": // not_null_violation
		return newNotNullError(pgErr)
	case "23514": // check_violation
		return newCheckConstraintError(pgErr)
	case "42P01": // undefined_table
		return &MetadataError{Entity: entity, Message: "table does not exist; has the schema been applied?"}
	case "42703": // undefined_column
		return newUndefinedColumnError(pgErr, entity)
	default:
		return &DatabaseError{Operation: operation, Err: fmt.Errorf("%s (code: %s)", pgErr.Message, pgErr.Code)}
	}
}

// betweenFirst returns the substring strictly between the first occurrence
// of open and the first occurrence of close after it, or "" if either
// delimiter is missing. Every PgError field this package scrapes — a
// detail's `(field)`, a message's `"field"` — is delimited this way.
func betweenFirst(s, open, close string) string {
	start := strings.Index(s, open)
	if start < 0 {
		return ""
	}
	rest := s[start+len(open):]
	end := strings.Index(rest, close)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// FormatError renders a ChameleonError with colorized CLI output, the way
// the teacher's parse-error formatter does for schema errors.
func FormatError(err error) string {
	var b strings.Builder

	var chErr ChameleonError
	if !errors.As(err, &chErr) {
		return err.Error()
	}

	errorColor := color.New(color.FgRed, color.Bold)
	errorColor.Fprintf(&b, "Error [%s]: ", chErr.Kind())
	fmt.Fprintf(&b, "%s\n", chErr.Error())

	return b.String()
}
