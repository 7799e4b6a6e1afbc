package report

import (
	"bufio"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// WritePDF renders a minimal PDF from the Markdown summary: headings become
// bold lines, table rows are laid out as cells, everything else is wrapped
// text. It does not perform full Markdown layout.
func WritePDF(markdown string, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := cp1252
	pdf.SetFont("Helvetica", "", 10)
	pdf.AddPage()

	scanner := bufio.NewScanner(strings.NewReader(markdown))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		s := strings.TrimSpace(scanner.Text())
		switch {
		case s == "":
			pdf.Ln(4)
		case strings.HasPrefix(s, "#"):
			i := 0
			for i < len(s) && s[i] == '#' {
				i++
			}
			text := strings.TrimSpace(s[i:])
			if text == "" {
				continue
			}
			size := 14.0
			if i >= 2 {
				size = 12.0
			}
			pdf.SetFont("Helvetica", "B", size)
			pdf.CellFormat(0, 8, tr(text), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
		case strings.HasPrefix(s, "|---"):
			// table separator
		case strings.HasPrefix(s, "|"):
			writeRow(pdf, tr, tableCells(s))
		default:
			pdf.MultiCell(0, 5, tr(s), "", "L", false)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return pdf.OutputFileAndClose(outPath)
}

// cp1252 converts s to the encoding of the core PDF fonts. Paths from macOS
// file systems arrive decomposed, so s is composed first; runes that still
// have no cp1252 form become '?'.
func cp1252(s string) string {
	s = norm.NFC.String(s)
	b := make([]byte, 0, len(s))
	for _, r := range s {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b = append(b, c)
			continue
		}
		b = append(b, '?')
	}
	return string(b)
}

// tableCells splits a Markdown table row, honoring escaped pipes.
func tableCells(row string) []string {
	row = strings.TrimSuffix(strings.TrimPrefix(row, "|"), "|")
	row = strings.ReplaceAll(row, `\|`, "\x00")
	parts := strings.Split(row, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(strings.ReplaceAll(p, "\x00", "|"))
	}
	return parts
}

func writeRow(pdf *gofpdf.Fpdf, tr func(string) string, cells []string) {
	if len(cells) == 0 {
		return
	}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	avail := pageW - left - right
	// First column holds the archive path and gets half the width.
	first := avail / 2
	rest := avail - first
	if len(cells) > 1 {
		rest /= float64(len(cells) - 1)
	}
	for i, c := range cells {
		w := rest
		if i == 0 {
			w = first
			for pdf.GetStringWidth(tr(c)) > w-2 && len(c) > 4 {
				c = "..." + c[4:]
			}
		}
		pdf.CellFormat(w, 6, tr(c), "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}
