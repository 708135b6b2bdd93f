package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

const configFileName = ".chameleon.yml"

// Loader reads and writes the engine's YAML config file rooted at workDir.
type Loader struct {
	workDir  string
	filePath string
}

// NewLoader creates a loader rooted at workDir. It does not touch disk.
func NewLoader(workDir string) *Loader {
	return &Loader{
		workDir:  workDir,
		filePath: filepath.Join(workDir, configFileName),
	}
}

// Load reads and parses the config file, expanding ${VAR}-style
// environment references and resolving schema paths to absolute.
func (l *Loader) Load() (*Config, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config: %s not found", l.filePath)
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", l.filePath, err)
	}

	expanded := expandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", l.filePath, err)
	}

	l.resolvePaths(&cfg)

	return &cfg, nil
}

// LoadOrDefault returns Load()'s result, or Defaults() if no config file
// exists. Any other read/parse error still propagates.
func (l *Loader) LoadOrDefault() (*Config, error) {
	if _, err := os.Stat(l.filePath); os.IsNotExist(err) {
		return Defaults(), nil
	}
	return l.Load()
}

// Save writes cfg to the config file as YAML.
func (l *Loader) Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: failed to serialize config: %w", err)
	}
	if err := os.WriteFile(l.filePath, data, 0644); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", l.filePath, err)
	}
	return nil
}

// resolvePaths turns schema paths and the merged-output path into
// absolute paths rooted at workDir, so callers never have to reason
// about the process's current directory.
func (l *Loader) resolvePaths(cfg *Config) {
	for i, p := range cfg.Schema.Paths {
		if !filepath.IsAbs(p) {
			cfg.Schema.Paths[i] = filepath.Join(l.workDir, p)
		}
	}
	if cfg.Schema.MergedOutput != "" && !filepath.IsAbs(cfg.Schema.MergedOutput) {
		cfg.Schema.MergedOutput = filepath.Join(l.workDir, cfg.Schema.MergedOutput)
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with the environment variable's
// value, leaving unresolved references untouched (they'll fail YAML/field
// validation downstream rather than silently becoming empty strings).
func expandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// Template returns a commented starter .chameleon.yml, used by CLI init
// flows and documentation.
func Template() string {
	return `# ChameleonDB Configuration
version: "0.1.0"

database:
  driver: "postgresql"
  connection_string: "postgresql://localhost:5432/chameleon"
  max_connections: 10
  connection_timeout: 30
  migration_timeout: 300

schema:
  paths:
    - "./schemas"
  merged_output: ".chameleon/state/schema.merged.yml"
  validation_strict: false

features:
  auto_migration: false
  rollback_enabled: true
  audit_logging: false
  backup_on_migrate: false
  dry_run_default: false
  cascade_persist_default: false
  auto_flush_on_commit: false

safety:
  require_confirmation: true
  backup_before_apply: true
  validate_schema: true

engine:
  max_flush_iterations: 16
  hydration_depth: 3
  debug_level: "off"
`
}
