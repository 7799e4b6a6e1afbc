package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config holds runtime configuration for a batch run.
type Config struct {
	// Input / output
	InputDir  string
	OutputDir string
	InPlace   bool

	// Logging
	LogFile string
	Verbose bool

	// Behavior
	DryRun        bool
	NameFilter    bool
	Workers       int
	MaxEntryBytes int64

	// Result cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	// Run report
	ReportPath    string
	ReportPDFPath string
}

const (
	defaultLogFile = "footnote_modification.log"
	defaultWorkers = 1
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		LogFile: defaultLogFile,
		Workers: defaultWorkers,
	}
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config")

// ValidateConfig checks that cfg describes a runnable batch.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.InputDir) == "" {
		return fmt.Errorf("%w: input directory is required", ErrInvalidConfig)
	}
	out := strings.TrimSpace(cfg.OutputDir)
	switch {
	case cfg.InPlace && out != "":
		return fmt.Errorf("%w: output directory and in-place mode are mutually exclusive", ErrInvalidConfig)
	case !cfg.InPlace && out == "" && !cfg.DryRun:
		return fmt.Errorf("%w: output directory is required unless running in place", ErrInvalidConfig)
	}
	if out != "" && samePath(cfg.InputDir, out) {
		return fmt.Errorf("%w: output directory must differ from input directory (use in-place mode)", ErrInvalidConfig)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	}
	if cfg.MaxEntryBytes < 0 || cfg.CacheMaxAge < 0 {
		return fmt.Errorf("%w: negative limits are not allowed", ErrInvalidConfig)
	}
	if cfg.CacheClear && strings.TrimSpace(cfg.CacheDir) == "" {
		return fmt.Errorf("%w: cache clear requires a cache directory", ErrInvalidConfig)
	}
	return nil
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}
