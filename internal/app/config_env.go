package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable the tool reads.
const EnvPrefix = "FOOTNOTEFIX_"

// envConfig mirrors Config for environment parsing. Pointer fields stay nil
// when the variable is unset so that an explicit "false" can override a
// config file.
type envConfig struct {
	InputDir  string `env:"INPUT_DIR"`
	OutputDir string `env:"OUTPUT_DIR"`
	InPlace   *bool  `env:"IN_PLACE"`

	LogFile string `env:"LOG_FILE"`
	Verbose *bool  `env:"VERBOSE"`

	DryRun        *bool `env:"DRY_RUN"`
	NameFilter    *bool `env:"NAME_FILTER"`
	Workers       int   `env:"WORKERS"`
	MaxEntryBytes int64 `env:"MAX_ENTRY_BYTES"`

	CacheDir         string        `env:"CACHE_DIR"`
	CacheMaxAge      time.Duration `env:"CACHE_MAX_AGE"`
	CacheClear       *bool         `env:"CACHE_CLEAR"`
	CacheStrictPerms *bool         `env:"CACHE_STRICT_PERMS"`

	ReportPath    string `env:"REPORT"`
	ReportPDFPath string `env:"REPORT_PDF"`
}

// ApplyEnvOverrides overrides cfg fields with FOOTNOTEFIX_* environment
// variables that are set. Env takes precedence over the config file; flags
// are applied afterwards and win over both.
func ApplyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	var ec envConfig
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: environment: %v", ErrInvalidConfig, err)
	}

	if ec.InputDir != "" {
		cfg.InputDir = ec.InputDir
	}
	if ec.OutputDir != "" {
		cfg.OutputDir = ec.OutputDir
	}
	if ec.LogFile != "" {
		cfg.LogFile = ec.LogFile
	}
	if ec.Workers > 0 {
		cfg.Workers = ec.Workers
	}
	if ec.MaxEntryBytes > 0 {
		cfg.MaxEntryBytes = ec.MaxEntryBytes
	}
	if ec.CacheDir != "" {
		cfg.CacheDir = ec.CacheDir
	}
	if ec.CacheMaxAge > 0 {
		cfg.CacheMaxAge = ec.CacheMaxAge
	}
	if ec.ReportPath != "" {
		cfg.ReportPath = ec.ReportPath
	}
	if ec.ReportPDFPath != "" {
		cfg.ReportPDFPath = ec.ReportPDFPath
	}

	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setBool(&cfg.InPlace, ec.InPlace)
	setBool(&cfg.Verbose, ec.Verbose)
	setBool(&cfg.DryRun, ec.DryRun)
	setBool(&cfg.NameFilter, ec.NameFilter)
	setBool(&cfg.CacheClear, ec.CacheClear)
	setBool(&cfg.CacheStrictPerms, ec.CacheStrictPerms)
	return nil
}
