package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// deriveOutputPaths maps each input archive to the path it is written to.
// In place, an archive is its own output. Otherwise outputs are flattened to
// <OutputDir>/<basename>; archives whose basenames collide keep their path
// relative to the input root instead so that none overwrites another.
func deriveOutputPaths(cfg Config, inputs []string) []string {
	out := make([]string, len(inputs))
	if cfg.InPlace {
		copy(out, inputs)
		return out
	}
	seen := make(map[string]int, len(inputs))
	for _, p := range inputs {
		seen[filepath.Base(p)]++
	}
	for i, p := range inputs {
		base := filepath.Base(p)
		if seen[base] == 1 {
			out[i] = filepath.Join(cfg.OutputDir, base)
			continue
		}
		rel, err := filepath.Rel(cfg.InputDir, p)
		if err != nil {
			rel = base
		}
		out[i] = filepath.Join(cfg.OutputDir, rel)
	}
	return out
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place, so a failed write never leaves a truncated archive behind.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".footnotefix-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(name, perm); err != nil {
		return err
	}
	return os.Rename(name, path)
}
