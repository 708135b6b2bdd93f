// Package config loads the engine's YAML configuration file
// (.chameleon.yml), the way the teacher CLI loaded its migration settings,
// repurposed here for unit-of-work engine runtime settings.
package config

// Config is the root of .chameleon.yml.
type Config struct {
	Version  string         `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Schema   SchemaConfig   `yaml:"schema"`
	Features FeaturesConfig `yaml:"features"`
	Safety   SafetyConfig   `yaml:"safety"`
	Engine   EngineConfig   `yaml:"engine"`
}

// DatabaseConfig holds connection settings for the single supported dialect.
type DatabaseConfig struct {
	Driver            string `yaml:"driver"`
	ConnectionString  string `yaml:"connection_string"`
	MaxConnections    int    `yaml:"max_connections"`
	ConnectionTimeout int    `yaml:"connection_timeout"`
	MigrationTimeout  int    `yaml:"migration_timeout"`
}

// SchemaConfig locates metadata mapping files for StaticRegistry.LoadFromPath.
type SchemaConfig struct {
	Paths             []string `yaml:"paths"`
	MergedOutput      string   `yaml:"merged_output,omitempty"`
	ValidationStrict  bool     `yaml:"validation_strict,omitempty"`
}

// FeaturesConfig toggles optional unit-of-work behaviors.
type FeaturesConfig struct {
	AutoMigration          bool `yaml:"auto_migration"`
	RollbackEnabled        bool `yaml:"rollback_enabled"`
	AuditLogging           bool `yaml:"audit_logging"`
	BackupOnMigrate        bool `yaml:"backup_on_migrate"`
	DryRunDefault          bool `yaml:"dry_run_default"`
	CascadePersistDefault  bool `yaml:"cascade_persist_default"`
	AutoFlushOnCommit      bool `yaml:"auto_flush_on_commit"`
}

// SafetyConfig gates destructive CLI operations.
type SafetyConfig struct {
	RequireConfirmation bool `yaml:"require_confirmation"`
	BackupBeforeApply   bool `yaml:"backup_before_apply"`
	ValidateSchema      bool `yaml:"validate_schema"`
}

// EngineConfig configures the flush orchestrator directly.
type EngineConfig struct {
	MaxFlushIterations int    `yaml:"max_flush_iterations"`
	HydrationDepth     int    `yaml:"hydration_depth"`
	DebugLevel         string `yaml:"debug_level"`
}

// Defaults returns the configuration used when no .chameleon.yml exists.
func Defaults() *Config {
	return &Config{
		Version: "0.1.0",
		Database: DatabaseConfig{
			Driver:            "postgresql",
			ConnectionString:  "postgresql://localhost:5432/chameleon",
			MaxConnections:    10,
			ConnectionTimeout: 30,
			MigrationTimeout:  300,
		},
		Schema: SchemaConfig{
			Paths:        []string{"./schemas"},
			MergedOutput: ".chameleon/state/schema.merged.yml",
		},
		Features: FeaturesConfig{
			AutoMigration:         false,
			RollbackEnabled:       true,
			AuditLogging:          false,
			BackupOnMigrate:       false,
			DryRunDefault:         false,
			CascadePersistDefault: false,
			AutoFlushOnCommit:     false,
		},
		Safety: SafetyConfig{
			RequireConfirmation: true,
			BackupBeforeApply:   true,
			ValidateSchema:      true,
		},
		Engine: EngineConfig{
			MaxFlushIterations: 16,
			HydrationDepth:     3,
			DebugLevel:         "off",
		},
	}
}
