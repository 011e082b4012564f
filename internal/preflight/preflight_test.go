package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"cardsorter/internal/config"
	"cardsorter/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFileReadable(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "grid.toml")
	if err := os.WriteFile(full, []byte("slots = []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.toml")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		pass bool
	}{
		{name: "readable", path: full, pass: true},
		{name: "empty", path: empty},
		{name: "missing", path: filepath.Join(dir, "missing.toml")},
		{name: "directory", path: dir},
		{name: "unset", path: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckFileReadable("Grid file", tt.path)
			if result.Passed != tt.pass {
				t.Fatalf("Passed = %v, want %v (%s)", result.Passed, tt.pass, result.Detail)
			}
		})
	}
}

func TestRunAllSkipsUnconfiguredPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	results := RunAll(cfg)
	if len(results) != 1 {
		t.Fatalf("expected only the log directory check, got %+v", results)
	}
	if results[0].Name != "Log directory" || !results[0].Passed {
		t.Fatalf("unexpected log directory result: %+v", results[0])
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected no failures, got %+v", failed)
	}
}

func TestRunAllReportsMissingGridAndCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	cfg.Grid.Source = config.GridSourceTOML
	cfg.Grid.Path = filepath.Join(t.TempDir(), "grid.toml")
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "cards.json")

	failed := Failed(RunAll(cfg))
	if len(failed) != 2 {
		t.Fatalf("expected grid and catalog failures, got %+v", failed)
	}
	if failed[0].Name != "Grid file" || failed[1].Name != "Catalog file" {
		t.Fatalf("unexpected failure order: %+v", failed)
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatalf("expected nil results, got %+v", results)
	}
}
