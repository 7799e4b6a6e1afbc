package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperifyio/footnotefix/internal/archive"
)

// ArchiveResult is the outcome of one EPUB in a run.
type ArchiveResult struct {
	Path         string
	Output       string
	Outcome      archive.Outcome
	Err          error
	Cached       bool
	Written      bool
	InputSHA256  string
	OutputSHA256 string
}

// Summary describes a whole run.
type Summary struct {
	Archives []ArchiveResult
	Started  time.Time
	Finished time.Time
	DryRun   bool
	InPlace  bool
	Version  string
}

// Totals aggregates counts over all archives of a run.
type Totals struct {
	Archives   int
	Modified   int
	Unchanged  int
	Failed     int
	Cached     int
	Documents  int
	Candidates int
	Wraps      int
	ParseFails int
}

// Totals computes the aggregate counts.
func (s Summary) Totals() Totals {
	var t Totals
	t.Archives = len(s.Archives)
	for _, a := range s.Archives {
		switch {
		case a.Err != nil:
			t.Failed++
		case a.Outcome.Modified:
			t.Modified++
		default:
			t.Unchanged++
		}
		if a.Cached {
			t.Cached++
		}
		t.Documents += len(a.Outcome.Documents)
		t.Candidates += a.Outcome.Candidates
		t.Wraps += a.Outcome.Wraps
		t.ParseFails += a.Outcome.Failed
	}
	return t
}

// Markdown renders the run summary.
func Markdown(s Summary) string {
	t := s.Totals()
	var b strings.Builder
	b.WriteString("# footnotefix run\n\n")
	fmt.Fprintf(&b, "- Version: %s\n", s.Version)
	fmt.Fprintf(&b, "- Started: %s\n", s.Started.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", s.Finished.Sub(s.Started).Round(time.Millisecond))
	mode := "output directory"
	if s.InPlace {
		mode = "in place"
	}
	if s.DryRun {
		mode += " (dry run)"
	}
	fmt.Fprintf(&b, "- Mode: %s\n", mode)
	fmt.Fprintf(&b, "- Archives: %d (modified %d, unchanged %d, failed %d, cached %d)\n",
		t.Archives, t.Modified, t.Unchanged, t.Failed, t.Cached)
	fmt.Fprintf(&b, "- Documents: %d (parse failures %d)\n", t.Documents, t.ParseFails)
	fmt.Fprintf(&b, "- Footnotes: %d candidates, %d wrapped\n", t.Candidates, t.Wraps)

	if len(s.Archives) > 0 {
		b.WriteString("\n## Archives\n\n")
		b.WriteString("| Archive | Status | Documents | Candidates | Wrapped |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, a := range s.Archives {
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d |\n",
				cell(a.Path), status(a), len(a.Outcome.Documents), a.Outcome.Candidates, a.Outcome.Wraps)
		}
	}

	var failures []string
	for _, a := range s.Archives {
		if a.Err != nil {
			failures = append(failures, fmt.Sprintf("- %s: %v", a.Path, a.Err))
		}
		for _, d := range a.Outcome.Documents {
			if d.Err != nil {
				failures = append(failures, fmt.Sprintf("- %s: %v", a.Path, d.Err))
			}
		}
	}
	if len(failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		b.WriteString(strings.Join(failures, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

func status(a ArchiveResult) string {
	switch {
	case a.Err != nil:
		return "failed"
	case a.Cached:
		return "cached"
	case a.Outcome.Modified:
		return "modified"
	}
	return "unchanged"
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
