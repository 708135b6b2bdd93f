package main

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	defer func() { os.Stdout = old }()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to open pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestVersionCommandPrintsVersion(t *testing.T) {
	oldVerbose := verbose
	verbose = false
	defer func() { verbose = oldVerbose }()

	output := captureStdout(t, func() {
		versionCmd.Run(&cobra.Command{}, []string{})
	})

	if !strings.Contains(output, "chameleonctl v") {
		t.Errorf("expected output to contain 'chameleonctl v', got: %s", output)
	}
}

func TestVersionCommandVerboseFallsBackToDefaultsWithoutConfigFile(t *testing.T) {
	oldVerbose := verbose
	oldConfigPath := configPath
	verbose = true
	configPath = t.TempDir() // no .chameleon.yml here, LoadOrDefault falls back silently
	defer func() {
		verbose = oldVerbose
		configPath = oldConfigPath
	}()

	output := captureStdout(t, func() {
		versionCmd.Run(&cobra.Command{}, []string{})
	})

	if !strings.Contains(output, "chameleonctl v") {
		t.Errorf("expected output to contain 'chameleonctl v', got: %s", output)
	}
	if !strings.Contains(output, "Configuration:") {
		t.Errorf("expected a configuration block built from defaults, got: %s", output)
	}
	if !strings.Contains(output, "postgresql") {
		t.Errorf("expected the default database driver to be printed, got: %s", output)
	}
}
