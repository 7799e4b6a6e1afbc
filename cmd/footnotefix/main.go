package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/footnotefix/internal/app"
	"github.com/hyperifyio/footnotefix/internal/report"
)

func main() {
	// Console logging until the configuration says otherwise.
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, showVersion, err := loadConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(2)
	}
	if showVersion {
		fmt.Printf("footnotefix %s (commit %s, built %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		return
	}

	closer, err := app.SetupLogging(cfg.Verbose, cfg.LogFile)
	if err != nil {
		log.Warn().Err(err).Str("file", cfg.LogFile).Msg("cannot open log file; logging to console only")
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := run(ctx, cfg)
	code := exitCode(s, err)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
	}
	if code != 0 {
		closer.Close()
		stop()
		os.Exit(code)
	}
}

// loadConfig resolves the run configuration. Precedence from lowest to
// highest: defaults, config file, FOOTNOTEFIX_* environment, flags that were
// set explicitly on the command line.
func loadConfig(args []string, stderr io.Writer) (app.Config, bool, error) {
	def := app.DefaultConfig()
	fs := flag.NewFlagSet("footnotefix", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath  string
		envFiles    string
		showVersion bool
	)
	flagCfg := def
	fs.StringVar(&configPath, "config", os.Getenv(app.EnvPrefix+"CONFIG"), "Path to YAML or JSON config file")
	fs.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files to load before reading the environment")
	fs.BoolVar(&showVersion, "version", false, "Print version information and exit")
	fs.StringVar(&flagCfg.InputDir, "input", def.InputDir, "Directory searched recursively for .epub files")
	fs.StringVar(&flagCfg.OutputDir, "output", def.OutputDir, "Directory to write processed EPUBs to")
	fs.BoolVar(&flagCfg.InPlace, "in-place", def.InPlace, "Overwrite modified EPUBs in the input directory")
	fs.StringVar(&flagCfg.LogFile, "log.file", def.LogFile, "Append JSON log lines to this file; empty disables")
	fs.BoolVar(&flagCfg.Verbose, "v", def.Verbose, "Verbose logging")
	fs.BoolVar(&flagCfg.DryRun, "dry-run", def.DryRun, "Analyze and log decisions without writing any archive")
	fs.BoolVar(&flagCfg.NameFilter, "name-filter", def.NameFilter, "Only open content documents whose name contains 'footnote' or 'fn'")
	fs.IntVar(&flagCfg.Workers, "workers", def.Workers, "Number of archives processed concurrently")
	fs.Int64Var(&flagCfg.MaxEntryBytes, "max.entryBytes", def.MaxEntryBytes, "Maximum decompressed size of one archive entry (0 uses the built-in limit)")
	fs.StringVar(&flagCfg.CacheDir, "cache.dir", def.CacheDir, "Result cache directory; empty disables the cache")
	fs.DurationVar(&flagCfg.CacheMaxAge, "cache.maxAge", def.CacheMaxAge, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	fs.BoolVar(&flagCfg.CacheClear, "cache.clear", def.CacheClear, "Clear cache directory before run")
	fs.BoolVar(&flagCfg.CacheStrictPerms, "cache.strictPerms", def.CacheStrictPerms, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.StringVar(&flagCfg.ReportPath, "report", def.ReportPath, "Write a Markdown run report (and manifest sidecar) to this path")
	fs.StringVar(&flagCfg.ReportPDFPath, "report.pdf", def.ReportPDFPath, "Also render the run report as PDF to this path")
	if err := fs.Parse(args); err != nil {
		return def, false, err
	}
	if showVersion {
		return def, true, nil
	}

	if err := app.LoadEnvFiles(splitList(envFiles)...); err != nil {
		return def, false, fmt.Errorf("%w: env file: %v", app.ErrInvalidConfig, err)
	}
	// The config path may come from a dotenv file.
	if configPath == "" {
		configPath = os.Getenv(app.EnvPrefix + "CONFIG")
	}

	cfg := def
	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return def, false, fmt.Errorf("%w: %s: %v", app.ErrInvalidConfig, configPath, err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	if err := app.ApplyEnvOverrides(&cfg); err != nil {
		return def, false, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputDir = flagCfg.InputDir
		case "output":
			cfg.OutputDir = flagCfg.OutputDir
		case "in-place":
			cfg.InPlace = flagCfg.InPlace
		case "log.file":
			cfg.LogFile = flagCfg.LogFile
		case "v":
			cfg.Verbose = flagCfg.Verbose
		case "dry-run":
			cfg.DryRun = flagCfg.DryRun
		case "name-filter":
			cfg.NameFilter = flagCfg.NameFilter
		case "workers":
			cfg.Workers = flagCfg.Workers
		case "max.entryBytes":
			cfg.MaxEntryBytes = flagCfg.MaxEntryBytes
		case "cache.dir":
			cfg.CacheDir = flagCfg.CacheDir
		case "cache.maxAge":
			cfg.CacheMaxAge = flagCfg.CacheMaxAge
		case "cache.clear":
			cfg.CacheClear = flagCfg.CacheClear
		case "cache.strictPerms":
			cfg.CacheStrictPerms = flagCfg.CacheStrictPerms
		case "report":
			cfg.ReportPath = flagCfg.ReportPath
		case "report.pdf":
			cfg.ReportPDFPath = flagCfg.ReportPDFPath
		}
	})
	if err := app.ValidateConfig(cfg); err != nil {
		return cfg, false, err
	}
	return cfg, false, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func run(ctx context.Context, cfg app.Config) (report.Summary, error) {
	a, err := app.New(cfg)
	if err != nil {
		return report.Summary{}, fmt.Errorf("init app: %w", err)
	}
	return a.Run(ctx)
}

// exitCode maps a run to the process exit status: 2 when the run could not
// start, 1 when any archive failed, 0 otherwise.
func exitCode(s report.Summary, err error) int {
	switch {
	case errors.Is(err, app.ErrInvalidConfig), errors.Is(err, app.ErrInputNotFound):
		return 2
	case err != nil:
		return 1
	case s.Totals().Failed > 0:
		return 1
	}
	return 0
}
