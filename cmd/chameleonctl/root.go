package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "chameleonctl",
	Short: "ChameleonDB unit-of-work engine CLI",
	Long: `chameleonctl is the operator-facing CLI around the ChameleonDB
persistence engine: version information and a schema-DDL preview. It does
not apply migrations or manage database state -- see the engine package's
Go API for that.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print extra diagnostic detail")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config-dir", "c", "", "directory containing .chameleon.yml (default: current directory)")
}

// workingDir resolves the directory the config loader should read
// .chameleon.yml from: --config-dir if set, otherwise the process's
// current directory.
func workingDir() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return os.Getwd()
}

func printInfo(format string, a ...interface{}) {
	c := color.New(color.FgCyan)
	c.Printf(format+"\n", a...)
}

func printSuccess(format string, a ...interface{}) {
	c := color.New(color.FgGreen, color.Bold)
	c.Printf(format+"\n", a...)
}

func printWarning(format string, a ...interface{}) {
	c := color.New(color.FgYellow)
	c.Printf(format+"\n", a...)
}

func printError(format string, a ...interface{}) {
	c := color.New(color.FgRed, color.Bold)
	c.Fprintf(os.Stderr, format+"\n", a...)
}
