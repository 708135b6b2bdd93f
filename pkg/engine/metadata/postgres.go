package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// PostgresRegistry implements Registry by introspecting information_schema
// when it is constructed and deriving EntityMetadata directly from
// column/FK introspection -- no column-mapping YAML needed. Entity names
// are derived from table names (singularized, PascalCase); Get/Has look
// entities up by that derived name.
type PostgresRegistry struct {
	conn     *pgx.Conn
	entities map[string]*EntityMetadata
}

// NewPostgresRegistry connects and introspects eagerly so that Get/Has are
// fast, side-effect-free lookups afterward.
func NewPostgresRegistry(ctx context.Context, connStr string) (*PostgresRegistry, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to connect to PostgreSQL: %w", err)
	}

	r := &PostgresRegistry{conn: conn, entities: make(map[string]*EntityMetadata)}
	if err := r.refresh(ctx); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return r, nil
}

// Close releases the introspection connection.
func (r *PostgresRegistry) Close(ctx context.Context) error {
	return r.conn.Close(ctx)
}

func (r *PostgresRegistry) refresh(ctx context.Context) error {
	tables, err := r.listTables(ctx)
	if err != nil {
		return err
	}

	for _, table := range tables {
		m, err := r.inspectTable(ctx, table)
		if err != nil {
			return fmt.Errorf("metadata: failed to inspect table %s: %w", table, err)
		}
		r.entities[m.Name] = m
	}

	// Second pass: resolve ManyToMany / inverse relations now that every
	// entity's BelongsTo columns are known, mirroring the teacher's
	// two-phase "list tables, then inspect each" introspection flow but
	// extended with a relation-linking phase.
	r.linkInverseRelations()

	return nil
}

func (r *PostgresRegistry) listTables(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (r *PostgresRegistry) inspectTable(ctx context.Context, tableName string) (*EntityMetadata, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			COALESCE(tc.constraint_type = 'PRIMARY KEY', false) as is_primary,
			c.column_default LIKE 'nextval(%' as is_auto
		FROM information_schema.columns c
		LEFT JOIN information_schema.key_column_usage kcu
			ON c.table_name = kcu.table_name AND c.column_name = kcu.column_name
		LEFT JOIN information_schema.table_constraints tc
			ON kcu.constraint_name = tc.constraint_name
		WHERE c.table_name = $1
		ORDER BY c.ordinal_position
	`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := &EntityMetadata{
		Name:      tableToEntityName(tableName),
		Table:     tableName,
		Columns:   make(map[string]ColumnInfo),
		Relations: make(map[string]RelationInfo),
	}

	for rows.Next() {
		var name, sqlType, nullable string
		var isPrimary, isAuto bool
		if err := rows.Scan(&name, &sqlType, &nullable, &isPrimary, &isAuto); err != nil {
			return nil, err
		}

		field := columnToFieldName(name)
		if isPrimary {
			m.IDField = field
		}
		m.Columns[field] = ColumnInfo{
			Column:        name,
			SQLType:       sqlType,
			Nullable:      nullable == "YES",
			AutoIncrement: isAuto,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fkRows, err := r.conn.Query(ctx, `
		SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_name = $1
	`, tableName)
	if err != nil {
		return nil, err
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var fkColumn, refTable, refColumn string
		if err := fkRows.Scan(&fkColumn, &refTable, &refColumn); err != nil {
			return nil, err
		}

		field := columnToFieldName(strings.TrimSuffix(fkColumn, "_id"))
		col := m.Columns[columnToFieldName(fkColumn)]
		m.Relations[field] = RelationInfo{
			Field:        field,
			Kind:         BelongsTo,
			TargetEntity: tableToEntityName(refTable),
			FKColumn:     fkColumn,
			Nullable:     col.Nullable,
		}
	}

	return m, fkRows.Err()
}

// linkInverseRelations adds HasMany entries on the target side of every
// discovered BelongsTo relation, so callers don't need to declare the
// inverse explicitly -- it is derived, as spec §3 describes for OneToMany
// ("inverse side; no column stored").
func (r *PostgresRegistry) linkInverseRelations() {
	for _, owner := range r.entities {
		for _, rel := range owner.Relations {
			if rel.Kind != BelongsTo {
				continue
			}
			target, ok := r.entities[rel.TargetEntity]
			if !ok {
				continue
			}
			inverseField := owner.Name + "List"
			if _, exists := target.Relations[inverseField]; exists {
				continue
			}
			target.Relations[inverseField] = RelationInfo{
				Field:         inverseField,
				Kind:          HasMany,
				TargetEntity:  owner.Name,
				MappedByField: rel.Field,
			}
		}
	}
}

// Get implements Registry.
func (r *PostgresRegistry) Get(entityName string) (*EntityMetadata, error) {
	m, ok := r.entities[entityName]
	if !ok {
		return nil, &NotRegisteredError{Entity: entityName}
	}
	return m, nil
}

// Has implements Registry.
func (r *PostgresRegistry) Has(entityName string) bool {
	_, ok := r.entities[entityName]
	return ok
}

// Names implements Registry.
func (r *PostgresRegistry) Names() []string {
	return entityNames(r.entities)
}

// LoadFromPath re-runs introspection; directory is ignored since this
// registry's source of truth is the live database, not files on disk.
func (r *PostgresRegistry) LoadFromPath(_ string) error {
	return r.refresh(context.Background())
}

func tableToEntityName(table string) string {
	singular := strings.TrimSuffix(table, "s")
	for singularIrregular, plural := range irregularPlurals {
		if plural == table {
			singular = singularIrregular
			break
		}
	}
	parts := strings.Split(singular, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}

func columnToFieldName(column string) string {
	parts := strings.Split(column, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}
