package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// manifestEntry is a compact record of one processed archive.
type manifestEntry struct {
	Path         string `json:"path"`
	Output       string `json:"output,omitempty"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	InputSHA256  string `json:"input_sha256,omitempty"`
	OutputSHA256 string `json:"output_sha256,omitempty"`
	Documents    int    `json:"documents"`
	Candidates   int    `json:"candidates"`
	Wraps        int    `json:"wraps"`
}

// manifestMeta captures run details that aid reproducibility.
type manifestMeta struct {
	Version     string    `json:"version"`
	DryRun      bool      `json:"dry_run"`
	InPlace     bool      `json:"in_place"`
	GeneratedAt time.Time `json:"generated_at"`
	Totals      Totals    `json:"totals"`
}

// SHA256Hex returns the lowercase hex-encoded SHA-256 of b.
func SHA256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// MarshalManifest encodes a machine-readable sidecar manifest of the run.
func MarshalManifest(s Summary) ([]byte, error) {
	entries := make([]manifestEntry, 0, len(s.Archives))
	for _, a := range s.Archives {
		e := manifestEntry{
			Path:         a.Path,
			Status:       status(a),
			InputSHA256:  a.InputSHA256,
			OutputSHA256: a.OutputSHA256,
			Documents:    len(a.Outcome.Documents),
			Candidates:   a.Outcome.Candidates,
			Wraps:        a.Outcome.Wraps,
		}
		if a.Written {
			e.Output = a.Output
		}
		if a.Err != nil {
			e.Error = a.Err.Error()
		}
		entries = append(entries, e)
	}
	payload := struct {
		Meta     manifestMeta    `json:"meta"`
		Archives []manifestEntry `json:"archives"`
	}{
		Meta: manifestMeta{
			Version:     s.Version,
			DryRun:      s.DryRun,
			InPlace:     s.InPlace,
			GeneratedAt: s.Finished.UTC(),
			Totals:      s.Totals(),
		},
		Archives: entries,
	}
	return json.MarshalIndent(payload, "", "  ")
}

// ManifestSidecarPath returns the sidecar JSON path next to a report.
func ManifestSidecarPath(reportPath string) string {
	return reportPath + ".manifest.json"
}
