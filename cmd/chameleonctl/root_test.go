package main

import (
	"os"
	"testing"
)

func TestWorkingDirUsesConfigPathWhenSet(t *testing.T) {
	oldConfigPath := configPath
	configPath = "/some/explicit/dir"
	defer func() { configPath = oldConfigPath }()

	dir, err := workingDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != "/some/explicit/dir" {
		t.Errorf("expected explicit config dir, got %q", dir)
	}
}

func TestWorkingDirFallsBackToCwd(t *testing.T) {
	oldConfigPath := configPath
	configPath = ""
	defer func() { configPath = oldConfigPath }()

	want, err := os.Getwd()
	if err != nil {
		t.Fatalf("os.Getwd: %v", err)
	}

	dir, err := workingDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != want {
		t.Errorf("expected cwd %q, got %q", want, dir)
	}
}
