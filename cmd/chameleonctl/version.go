package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chameleon-db/chameleondb/chameleon/internal/config"
)

// Version is the chameleonctl/engine release version.
const Version = "0.2.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the CLI and engine version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("chameleonctl v%s\n", Version)

		if !verbose {
			return
		}

		workDir, err := workingDir()
		if err != nil {
			return
		}
		cfg, err := config.NewLoader(workDir).LoadOrDefault()
		if err != nil {
			printWarning("could not load .chameleon.yml: %v", err)
			return
		}
		fmt.Println("\nConfiguration:")
		fmt.Printf("  database driver:     %s\n", cfg.Database.Driver)
		fmt.Printf("  max flush iterations: %d\n", cfg.Engine.MaxFlushIterations)
		fmt.Printf("  hydration depth:      %d\n", cfg.Engine.HydrationDepth)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
