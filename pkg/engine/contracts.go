package engine

import (
	"context"
	"fmt"
	"reflect"
)

// DBHandle is the external database interface the unit-of-work engine
// consumes (spec §6). The engine never imports a driver package directly
// through this interface — *Connector is the one concrete implementation
// this module ships, but any type satisfying DBHandle can stand in, the
// same way the teacher's mutation builders only ever touched *Connector
// through its exported methods.
type DBHandle interface {
	Prepare(ctx context.Context, sql string) (Statement, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (int64, error)
	Query(ctx context.Context, sql string, args ...interface{}) (Rows, error)
	BeginTx(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	InTransaction() bool
	LastInsertID() string
	Quote(s string) string
}

// Statement is a prepared statement handle returned by DBHandle.Prepare.
type Statement interface {
	Exec(ctx context.Context, args ...interface{}) (int64, error)
	Query(ctx context.Context, args ...interface{}) (Rows, error)
	Close() error
}

// Rows is the minimal row-cursor surface the hydrator and query builders
// need. pgx rows do not satisfy it directly (their FieldDescriptions
// returns pgconn field descriptions, not names); Connector wraps them in
// pgxRowsAdapter.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Values() ([]interface{}, error)
	FieldDescriptions() []string
	Err() error
	Close()
}

// Entity is any pointer to a registered struct type. The engine never
// requires entities to implement an interface of their own (spec §6); this
// alias exists purely to make signatures read clearly.
type Entity = interface{}

// EntityAdapter is the registration step spec §9 calls for: in a
// statically typed target, each entity type supplies its own reader/writer
// functions instead of being discovered through source-language reflection.
// ReflectAdapter below is the default, struct-tag-driven implementation;
// callers with unusual construction needs may supply their own.
type EntityAdapter interface {
	// New returns a freshly allocated zero-value instance (a pointer).
	New() Entity
	// Get reads a field's current value by its metadata field name.
	Get(entity Entity, field string) (interface{}, bool)
	// Set writes a field's value by its metadata field name.
	Set(entity Entity, field string, value interface{}) error
	// Fields lists every field name this adapter knows how to read/write,
	// in declaration order — used to build a full-entity snapshot.
	Fields() []string
}

// ReflectAdapter builds an EntityAdapter for any struct type using
// `db:"field_name"` tags (falling back to the Go field name), the same
// reflection idiom `gofer` uses for its snapshot comparisons
// (other_examples/7653aa66_patrickascher-gofer__orm-snapshot.go.go).
type ReflectAdapter struct {
	elemType   reflect.Type
	fieldOrder []string
	tagToField map[string]string
}

// NewReflectAdapter builds an adapter for the struct type of prototype,
// which must be a pointer to a struct (e.g. (*User)(nil)).
func NewReflectAdapter(prototype Entity) (*ReflectAdapter, error) {
	t := reflect.TypeOf(prototype)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("engine: NewReflectAdapter requires a pointer-to-struct prototype, got %T", prototype)
	}

	elem := t.Elem()
	a := &ReflectAdapter{
		elemType:   elem,
		tagToField: make(map[string]string, elem.NumField()),
	}

	for i := 0; i < elem.NumField(); i++ {
		f := elem.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		name := f.Name
		if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
			name = tag
		}
		a.fieldOrder = append(a.fieldOrder, name)
		a.tagToField[name] = f.Name
	}

	return a, nil
}

func (a *ReflectAdapter) New() Entity {
	return reflect.New(a.elemType).Interface()
}

func (a *ReflectAdapter) Fields() []string {
	return a.fieldOrder
}

func (a *ReflectAdapter) Get(entity Entity, field string) (interface{}, bool) {
	structField, ok := a.tagToField[field]
	if !ok {
		return nil, false
	}
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return nil, false
	}
	fv := v.Elem().FieldByName(structField)
	if !fv.IsValid() {
		return nil, false
	}
	return fv.Interface(), true
}

func (a *ReflectAdapter) Set(entity Entity, field string, value interface{}) error {
	structField, ok := a.tagToField[field]
	if !ok {
		return &UnknownFieldError{Field: field, Entity: a.elemType.Name(), Available: a.fieldOrder}
	}
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("engine: Set requires a non-nil pointer, got %T", entity)
	}
	fv := v.Elem().FieldByName(structField)
	if !fv.IsValid() || !fv.CanSet() {
		return &UnknownFieldError{Field: field, Entity: a.elemType.Name(), Available: a.fieldOrder}
	}

	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(rv.Convert(fv.Type()))
		return nil
	}
	// The hydrator populates to-many relation fields with []interface{}
	// regardless of the field's concrete element type (it doesn't know
	// it); build the properly typed slice by element here.
	if rv.Kind() == reflect.Slice && fv.Kind() == reflect.Slice {
		out := reflect.MakeSlice(fv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := reflect.ValueOf(rv.Index(i).Interface())
			if !elem.Type().AssignableTo(fv.Type().Elem()) {
				return fmt.Errorf("engine: cannot assign slice element %s to field %s element type %s", elem.Type(), field, fv.Type().Elem())
			}
			out.Index(i).Set(elem)
		}
		fv.Set(out)
		return nil
	}
	return fmt.Errorf("engine: cannot assign %s to field %s (%s)", rv.Type(), field, fv.Type())
}
