package main

import (
	"os"
	"path/filepath"
	"testing"
)

// getBinaryPath returns the path to the phanatic binary for testing
func getBinaryPath(t *testing.T) string {
	binaryName := "phanatic"
	if testing.Short() {
		t.Skip("Skipping CLI tests in short mode")
	}

	binaryPath, err := filepath.Abs(filepath.Join("..", "..", "bin", binaryName))
	if err != nil {
		t.Fatalf("failed to resolve binary path: %v", err)
	}
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skipf("Binary not found at %s, build it first with 'make build'", binaryPath)
	}

	return binaryPath
}

// writeTestFile writes content under dir and returns the full path.
func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
