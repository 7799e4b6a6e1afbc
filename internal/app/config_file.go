package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Input   string `yaml:"input" json:"input"`
	Output  string `yaml:"output" json:"output"`
	InPlace bool   `yaml:"inPlace" json:"inPlace"`

	Log struct {
		File    string `yaml:"file" json:"file"`
		Verbose bool   `yaml:"verbose" json:"verbose"`
	} `yaml:"log" json:"log"`

	DryRun        bool  `yaml:"dryRun" json:"dryRun"`
	NameFilter    bool  `yaml:"nameFilter" json:"nameFilter"`
	Workers       int   `yaml:"workers" json:"workers"`
	MaxEntryBytes int64 `yaml:"maxEntryBytes" json:"maxEntryBytes"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Report struct {
		Path string `yaml:"path" json:"path"`
		PDF  string `yaml:"pdf" json:"pdf"`
	} `yaml:"report" json:"report"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value set in fc onto cfg. It is applied to
// defaults, before environment and flags.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if fc.Input != "" {
		cfg.InputDir = fc.Input
	}
	if fc.Output != "" {
		cfg.OutputDir = fc.Output
	}
	if fc.InPlace {
		cfg.InPlace = true
	}

	if fc.Log.File != "" {
		cfg.LogFile = fc.Log.File
	}
	if fc.Log.Verbose {
		cfg.Verbose = true
	}

	if fc.DryRun {
		cfg.DryRun = true
	}
	if fc.NameFilter {
		cfg.NameFilter = true
	}
	if fc.Workers > 0 {
		cfg.Workers = fc.Workers
	}
	if fc.MaxEntryBytes > 0 {
		cfg.MaxEntryBytes = fc.MaxEntryBytes
	}

	if fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}

	if fc.Report.Path != "" {
		cfg.ReportPath = fc.Report.Path
	}
	if fc.Report.PDF != "" {
		cfg.ReportPDFPath = fc.Report.PDF
	}
}
