package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/footnotefix/internal/archive"
	"github.com/hyperifyio/footnotefix/internal/cache"
	"github.com/hyperifyio/footnotefix/internal/discover"
	"github.com/hyperifyio/footnotefix/internal/report"
)

// ErrInputNotFound is returned when the input directory does not exist. It
// is fatal for the whole run; nothing is processed.
var ErrInputNotFound = errors.New("input directory not found")

// App runs a batch of EPUB rewrites for one Config.
type App struct {
	cfg   Config
	cache *cache.ResultCache
}

// New validates cfg and prepares the result cache.
func New(cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg}
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Msg("cache purge failed")
			} else if n > 0 {
				log.Debug().Int("removed", n).Msg("purged expired cache entries")
			}
		}
		a.cache = &cache.ResultCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}
	return a, nil
}

// Run processes every EPUB under the input directory and returns the run
// summary. Failures of single archives are recorded in the summary and do
// not stop the batch; only configuration-level problems return an error.
func (a *App) Run(ctx context.Context) (report.Summary, error) {
	s := report.Summary{
		Started: time.Now(),
		DryRun:  a.cfg.DryRun,
		InPlace: a.cfg.InPlace,
		Version: BuildVersion,
	}

	log.Info().Str("dir", a.cfg.InputDir).Msg("starting processing")
	var exclude []string
	if !a.cfg.InPlace && a.cfg.OutputDir != "" {
		exclude = append(exclude, a.cfg.OutputDir)
	}
	inputs, err := discover.EPUBs(a.cfg.InputDir, func(p string) {
		log.Debug().Str("file", p).Msg("skipped file")
	}, exclude...)
	if err != nil {
		if errors.Is(err, discover.ErrRootNotFound) {
			return s, fmt.Errorf("%w: %s", ErrInputNotFound, a.cfg.InputDir)
		}
		return s, err
	}
	if !a.cfg.InPlace && !a.cfg.DryRun {
		if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
			return s, fmt.Errorf("create output dir: %w", err)
		}
	}
	outputs := deriveOutputPaths(a.cfg, inputs)

	results := make([]report.ArchiveResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i := range inputs {
		i := i
		g.Go(func() error {
			results[i] = a.processArchive(gctx, inputs[i], outputs[i])
			return nil
		})
	}
	_ = g.Wait()
	s.Archives = results
	s.Finished = time.Now()

	t := s.Totals()
	log.Info().
		Int("archives", t.Archives).
		Int("modified", t.Modified).
		Int("unchanged", t.Unchanged).
		Int("failed", t.Failed).
		Int("wraps", t.Wraps).
		Dur("elapsed", s.Finished.Sub(s.Started)).
		Msg("processing finished")

	if err := a.writeReports(s); err != nil {
		log.Warn().Err(err).Msg("writing run report failed")
	}
	return s, ctx.Err()
}

// processArchive runs one EPUB through the archive processor and writes the
// result according to the configured mode.
func (a *App) processArchive(ctx context.Context, path, outPath string) report.ArchiveResult {
	res := report.ArchiveResult{Path: path, Output: outPath}
	l := log.With().Str("epub", path).Logger()
	l.Info().Msg("processing EPUB file")

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	info, err := os.Stat(path)
	if err != nil {
		res.Err = err
		l.Error().Err(err).Msg("stat failed")
		return res
	}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		l.Error().Err(err).Msg("read failed")
		return res
	}
	res.InputSHA256 = report.SHA256Hex(data)

	key := cache.KeyFrom(data, a.settingsFingerprint())
	output := data
	if e, ok := a.cacheLookup(ctx, key); ok && !e.Modified {
		res.Cached = true
		res.Outcome.Candidates = e.Candidates
		l.Info().Msg("unchanged since last run (cached)")
	} else {
		var buf bytes.Buffer
		oc, err := archive.Process(ctx, bytes.NewReader(data), int64(len(data)), &buf, archive.Options{
			NameFilter:    a.cfg.NameFilter,
			MaxEntryBytes: a.cfg.MaxEntryBytes,
		})
		res.Outcome = oc
		for _, d := range oc.Documents {
			report.LogDocument(path, d)
		}
		if err != nil {
			res.Err = err
			l.Error().Err(err).Msg("archive failed; left unchanged")
			return res
		}
		if oc.Modified {
			output = buf.Bytes()
		}
		a.cacheSave(ctx, cache.Entry{
			Key:        key,
			Archive:    path,
			Modified:   oc.Modified,
			Candidates: oc.Candidates,
			Wraps:      oc.Wraps,
		})
	}

	switch {
	case a.cfg.DryRun:
		l.Info().Bool("modified", res.Outcome.Modified).Msg("dry run; nothing written")
		return res
	case a.cfg.InPlace && !res.Outcome.Modified:
		l.Info().Msg("no modifications needed")
		return res
	}
	if err := writeFileAtomic(outPath, output, info.Mode().Perm()); err != nil {
		res.Err = err
		l.Error().Err(err).Str("out", outPath).Msg("write failed")
		return res
	}
	res.Written = true
	res.OutputSHA256 = report.SHA256Hex(output)
	l.Info().Str("out", outPath).Bool("modified", res.Outcome.Modified).Msg("wrote EPUB")
	return res
}

func (a *App) settingsFingerprint() string {
	return fmt.Sprintf("footnotefix/v1 nameFilter=%t maxEntryBytes=%d", a.cfg.NameFilter, a.cfg.MaxEntryBytes)
}

func (a *App) cacheLookup(ctx context.Context, key string) (*cache.Entry, bool) {
	if a.cache == nil {
		return nil, false
	}
	e, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("cache read failed")
		return nil, false
	}
	return e, ok
}

func (a *App) cacheSave(ctx context.Context, e cache.Entry) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Save(ctx, e); err != nil {
		log.Warn().Err(err).Msg("cache write failed")
	}
}

// writeReports writes the Markdown summary, its manifest sidecar and the
// optional PDF rendering.
func (a *App) writeReports(s report.Summary) error {
	md := report.Markdown(s)
	if p := a.cfg.ReportPath; p != "" {
		if err := os.WriteFile(p, []byte(md), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		b, err := report.MarshalManifest(s)
		if err != nil {
			return fmt.Errorf("encode manifest: %w", err)
		}
		if err := os.WriteFile(report.ManifestSidecarPath(p), b, 0o644); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
		log.Info().Str("out", p).Msg("wrote run report")
	}
	if p := a.cfg.ReportPDFPath; p != "" {
		if err := report.WritePDF(md, p); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		log.Info().Str("out", p).Msg("wrote PDF report")
	}
	return nil
}
