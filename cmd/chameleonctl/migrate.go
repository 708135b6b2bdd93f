package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chameleon-db/chameleondb/chameleon/internal/config"
	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine"
	"github.com/chameleon-db/chameleondb/chameleon/pkg/engine/metadata"
)

var dryRun bool

// migrateCmd previews the CREATE TABLE statements for every entity mapped
// under the config's schema paths. Unlike the teacher's cmd/chameleon
// migrate command, it never applies anything, registers a schema version,
// or tracks migration state -- this CLI has no vault, no journal, and no
// state tracker; applying schema changes is explicitly out of scope.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Preview the DDL for the mapped entity schema",
	Long: `migrate loads the entity metadata mapping files under the
configured schema paths and prints the CREATE TABLE statements they
describe. It never touches a database -- pass --dry-run to make that
explicit (it is the only supported mode).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dryRun {
			printWarning("migrate only supports --dry-run previews; re-run with --dry-run")
			return nil
		}

		workDir, err := workingDir()
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}

		printInfo("Loading configuration...")
		cfg, err := config.NewLoader(workDir).LoadOrDefault()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		registry := metadata.NewStaticRegistry()
		for _, path := range cfg.Schema.Paths {
			printInfo("Loading entity mappings from %s", path)
			if err := registry.LoadFromPath(path); err != nil {
				return fmt.Errorf("failed to load schema mappings from %s: %w", path, err)
			}
		}

		ddl, err := engine.GenerateDDL(registry, nil)
		if err != nil {
			return fmt.Errorf("failed to generate DDL: %w", err)
		}

		fmt.Println("─────────────────────────────────────────────────")
		fmt.Println("Schema DDL (preview only, not applied):")
		fmt.Println("─────────────────────────────────────────────────")
		fmt.Println(ddl)
		fmt.Println("─────────────────────────────────────────────────")

		printSuccess("Dry-run complete. Nothing was applied to the database.")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "required; preview DDL without applying it")
	rootCmd.AddCommand(migrateCmd)
}
