package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// entityNames returns the sorted keys of an entities map, shared by every
// Registry implementation's Names method.
func entityNames(entities map[string]*EntityMetadata) []string {
	names := make([]string, 0, len(entities))
	for name := range entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry is the read-only metadata interface the persistence engine
// consumes (spec §6, "Metadata interface (consumed)"). It is never
// mutated by the engine.
type Registry interface {
	Get(entityName string) (*EntityMetadata, error)
	Has(entityName string) bool
	LoadFromPath(directory string) error
	Names() []string
}

// StaticRegistry is an in-memory Registry populated either by direct
// registration (Register) or by loading YAML mapping files from disk.
// It is the default registry for tests and small applications that don't
// want to introspect a live database (see PostgresRegistry for that).
type StaticRegistry struct {
	entities map[string]*EntityMetadata
}

// NewStaticRegistry creates an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{entities: make(map[string]*EntityMetadata)}
}

// Register adds or replaces the metadata for one entity. If Table is left
// empty, EntityToTableName(name) is used.
func (r *StaticRegistry) Register(m *EntityMetadata) {
	if m.Table == "" {
		m.Table = EntityToTableName(m.Name)
	}
	r.entities[m.Name] = m
}

// Get implements Registry.
func (r *StaticRegistry) Get(entityName string) (*EntityMetadata, error) {
	m, ok := r.entities[entityName]
	if !ok {
		return nil, &NotRegisteredError{Entity: entityName}
	}
	return m, nil
}

// Has implements Registry.
func (r *StaticRegistry) Has(entityName string) bool {
	_, ok := r.entities[entityName]
	return ok
}

// Names returns every registered entity name, sorted, used by the DDL
// preview CLI command to walk the whole registry without a caller-supplied
// class list.
func (r *StaticRegistry) Names() []string {
	return entityNames(r.entities)
}

// yamlEntityFile mirrors the on-disk shape of one entity mapping file.
type yamlEntityFile struct {
	Name      string                     `yaml:"name"`
	Table     string                     `yaml:"table,omitempty"`
	IDField   string                     `yaml:"id_field"`
	Columns   map[string]yamlColumn      `yaml:"columns"`
	Relations map[string]yamlRelation    `yaml:"relations,omitempty"`
}

type yamlColumn struct {
	Column        string `yaml:"column"`
	SQLType       string `yaml:"sql_type"`
	Nullable      bool   `yaml:"nullable"`
	AutoIncrement bool   `yaml:"auto_increment"`
}

type yamlRelation struct {
	Kind           RelationKind `yaml:"kind"`
	TargetEntity   string       `yaml:"target_entity"`
	FKColumn       string       `yaml:"fk_column,omitempty"`
	Nullable       bool         `yaml:"nullable,omitempty"`
	MappedByField  string       `yaml:"mapped_by_field,omitempty"`
	LinkTable      string       `yaml:"link_table,omitempty"`
	JoinColumn     string       `yaml:"join_column,omitempty"`
	InverseJoinCol string       `yaml:"inverse_join_column,omitempty"`
}

// LoadFromPath bulk-loads every *.yml/*.yaml file in directory as one
// entity mapping each, per spec §6's "load_from_path(directory)".
func (r *StaticRegistry) LoadFromPath(directory string) error {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return fmt.Errorf("metadata: failed to read %s: %w", directory, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yml" && ext != ".yaml" {
			continue
		}

		path := filepath.Join(directory, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("metadata: failed to read %s: %w", path, err)
		}

		var raw yamlEntityFile
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("metadata: failed to parse %s: %w", path, err)
		}

		m := &EntityMetadata{
			Name:      raw.Name,
			Table:     raw.Table,
			IDField:   raw.IDField,
			Columns:   make(map[string]ColumnInfo, len(raw.Columns)),
			Relations: make(map[string]RelationInfo, len(raw.Relations)),
		}
		for field, col := range raw.Columns {
			m.Columns[field] = ColumnInfo{
				Column:        col.Column,
				SQLType:       col.SQLType,
				Nullable:      col.Nullable,
				AutoIncrement: col.AutoIncrement,
			}
		}
		for field, rel := range raw.Relations {
			m.Relations[field] = RelationInfo{
				Field:          field,
				Kind:           rel.Kind,
				TargetEntity:   rel.TargetEntity,
				FKColumn:       rel.FKColumn,
				Nullable:       rel.Nullable,
				MappedByField:  rel.MappedByField,
				LinkTable:      rel.LinkTable,
				JoinColumn:     rel.JoinColumn,
				InverseJoinCol: rel.InverseJoinCol,
			}
		}

		r.Register(m)
	}

	return nil
}

// NotRegisteredError is a metadata error per spec §7: "Class not
// registered ... surfaced at the first API call touching that class".
type NotRegisteredError struct {
	Entity string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("metadata: entity %q is not registered", e.Entity)
}
