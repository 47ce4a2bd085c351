package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	opts := Default()
	if opts.StepLimit != DefaultStepLimit {
		t.Fatalf("StepLimit = %d", opts.StepLimit)
	}
	if opts.MaxCallDepth != DefaultMaxCallDepth {
		t.Fatalf("MaxCallDepth = %d", opts.MaxCallDepth)
	}
	if opts.CachePath != "" || opts.Trace {
		t.Fatal("cache and trace must default off")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crux.yaml")
	data := "step_limit: 5000\ncache_path: /tmp/consts.db\ntrace: true\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if opts.StepLimit != 5000 {
		t.Fatalf("StepLimit = %d", opts.StepLimit)
	}
	// Unset budgets fall back to defaults.
	if opts.MaxCallDepth != DefaultMaxCallDepth {
		t.Fatalf("MaxCallDepth = %d", opts.MaxCallDepth)
	}
	if opts.CachePath != "/tmp/consts.db" || !opts.Trace {
		t.Fatalf("opts = %+v", opts)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
