package report

import (
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/footnotefix/internal/archive"
	"github.com/hyperifyio/footnotefix/internal/footnote"
)

// LogDocument renders the decisions taken for one content document.
func LogDocument(archivePath string, doc archive.Document) {
	l := log.With().Str("epub", archivePath).Str("doc", doc.Name).Logger()
	if doc.Err != nil {
		l.Warn().Err(doc.Err).Msg("parse failed; document left unchanged")
		return
	}
	res := doc.Result
	if res.Candidates == 0 {
		l.Debug().Msg("UNCONFIRMED: no footnote tags found")
		return
	}
	l.Info().Int("candidates", res.Candidates).Msg("CONFIRMED: footnote tags found")
	for _, d := range res.Decisions {
		LogDecision(archivePath, doc.Name, d)
	}
	if res.Modified {
		l.Info().Int("wraps", res.Wraps).Msg("footnotes modified")
	} else {
		l.Info().Msg("no modifications needed")
	}
}

// LogDecision renders one candidate decision.
func LogDecision(archivePath, docName string, d footnote.Decision) {
	ev := log.Debug()
	if d.Wrapped {
		ev = log.Info()
	}
	ev = ev.Str("epub", archivePath).
		Str("doc", docName).
		Int("candidate", d.Index).
		Str("tag", d.Tag).
		Strs("classes", d.Classes).
		Str("rule", d.Rule.String())
	switch d.Rule {
	case footnote.NoTarget:
		ev.Msg("no eligible wrap target")
	case footnote.AlreadyWrapped:
		ev.Msg("already inside an aside")
	default:
		ev.Str("target", d.TargetTag).Str("id", d.FootnoteID).Msg("footnote wrapped in aside")
	}
}
