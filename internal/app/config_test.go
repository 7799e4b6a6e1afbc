package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfigFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "footnotefix.yaml")
	if err := os.WriteFile(yml, []byte(`
input: ./Input
output: ./Output
log:
  file: run.log
  verbose: true
nameFilter: true
workers: 3
cache:
  dir: .cache
  maxAge: 24h
report:
  path: run.md
  pdf: run.pdf
`), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	js := filepath.Join(dir, "footnotefix.json")
	if err := os.WriteFile(js, []byte(`{"input":"./Input","inPlace":true,"dryRun":true}`), 0o600); err != nil {
		t.Fatalf("write json: %v", err)
	}

	fc, err := LoadConfigFile(yml)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	cfg := DefaultConfig()
	ApplyFileConfig(&cfg, fc)
	want := Config{
		InputDir:      "./Input",
		OutputDir:     "./Output",
		LogFile:       "run.log",
		Verbose:       true,
		NameFilter:    true,
		Workers:       3,
		CacheDir:      ".cache",
		CacheMaxAge:   24 * time.Hour,
		ReportPath:    "run.md",
		ReportPDFPath: "run.pdf",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	fc, err = LoadConfigFile(js)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	cfg = DefaultConfig()
	ApplyFileConfig(&cfg, fc)
	if !cfg.InPlace || !cfg.DryRun || cfg.Workers != defaultWorkers || cfg.LogFile != defaultLogFile {
		t.Fatalf("json config = %+v", cfg)
	}
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.conf")
	if err := os.WriteFile(p, []byte("input: [unterminated"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfigFile(p); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateConfig(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		mut  func(*Config)
		ok   bool
	}{
		{"output mode", func(c *Config) { c.OutputDir = filepath.Join(dir, "out") }, true},
		{"in place", func(c *Config) { c.InPlace = true }, true},
		{"dry run without output", func(c *Config) { c.DryRun = true }, true},
		{"missing input", func(c *Config) { c.InputDir = ""; c.InPlace = true }, false},
		{"no output and not in place", func(c *Config) {}, false},
		{"both output and in place", func(c *Config) { c.InPlace = true; c.OutputDir = "x" }, false},
		{"output equals input", func(c *Config) { c.OutputDir = dir + "/." }, false},
		{"zero workers", func(c *Config) { c.InPlace = true; c.Workers = 0 }, false},
		{"negative limit", func(c *Config) { c.InPlace = true; c.MaxEntryBytes = -1 }, false},
		{"clear without dir", func(c *Config) { c.InPlace = true; c.CacheClear = true }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.InputDir = dir
			tc.mut(&cfg)
			err := ValidateConfig(cfg)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestDeriveOutputPaths(t *testing.T) {
	cfg := Config{InputDir: "/in", OutputDir: "/out"}
	inputs := []string{"/in/a.epub", "/in/x/b.epub", "/in/y/b.epub"}
	got := deriveOutputPaths(cfg, inputs)
	want := []string{"/out/a.epub", filepath.Join("/out", "x", "b.epub"), filepath.Join("/out", "y", "b.epub")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}

	cfg.InPlace = true
	if diff := cmp.Diff(inputs, deriveOutputPaths(cfg, inputs)); diff != "" {
		t.Fatalf("in-place paths mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "book.epub")
	if err := writeFileAtomic(p, []byte("one"), 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writeFileAtomic(p, []byte("two"), 0o640); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "two" {
		t.Fatalf("content = %q err=%v", b, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(p))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}
