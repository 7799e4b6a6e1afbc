package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/hyperifyio/footnotefix/internal/footnote"
)

// Options control how an archive is processed.
type Options struct {
	// NameFilter only opens content documents whose name contains
	// "footnote" or "fn". It saves parsing time on large books at the risk
	// of missing footnotes kept in chapter files.
	NameFilter bool
	// MaxEntryBytes limits decompressed entry size; 0 means DefaultMaxEntryBytes.
	MaxEntryBytes int64
}

// Document is the outcome for one content document of an archive.
type Document struct {
	Name   string
	Result footnote.Result
	// Err is set when the document failed to parse; it was copied unchanged.
	Err error
}

// Outcome summarizes the processing of one archive.
type Outcome struct {
	Entries    int
	Documents  []Document
	Candidates int
	Wraps      int
	Failed     int
	Modified   bool
}

// IsContentDocument reports whether an entry name looks like an XHTML or
// HTML content document.
func IsContentDocument(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".xhtml", ".html", ".htm":
		return true
	}
	return false
}

// MatchesNameFilter reports whether name passes the optional footnote name
// prefilter.
func MatchesNameFilter(name string) bool {
	base := strings.ToLower(path.Base(name))
	return strings.Contains(base, "footnote") || strings.Contains(base, "fn")
}

// Process reads the EPUB in r, rewrites its content documents and writes the
// resulting archive to w. Entry names, order and headers are preserved;
// entries that were not rewritten are copied byte for byte. A document that
// fails to parse is recorded in the outcome and copied unchanged. Archive
// level failures return an error and leave w incomplete.
func Process(ctx context.Context, r io.ReaderAt, size int64, w io.Writer, opts Options) (Outcome, error) {
	var out Outcome
	limit := opts.MaxEntryBytes
	if limit <= 0 {
		limit = DefaultMaxEntryBytes
	}

	zr, err := zip.NewReader(r, size)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return out, fmt.Errorf("%w: %v", ErrNotZip, err)
	}
	for _, f := range zr.File {
		if !isSafePath(f.Name) {
			return out, fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}
	}
	if err := checkDRM(zr, limit); err != nil {
		return out, err
	}

	zw := zip.NewWriter(w)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Entries++

		if !IsContentDocument(f.Name) || (opts.NameFilter && !MatchesNameFilter(f.Name)) {
			if err := zw.Copy(f); err != nil {
				return out, fmt.Errorf("archive: copy %s: %w", f.Name, err)
			}
			continue
		}

		data, err := readZipFile(f, limit)
		if err != nil {
			return out, err
		}
		strict := strings.EqualFold(path.Ext(f.Name), ".xhtml")
		res, err := footnote.Rewrite(data, f.Name, footnote.Options{Strict: strict, MaxBytes: int(limit)})
		doc := Document{Name: f.Name, Result: res, Err: err}
		out.Documents = append(out.Documents, doc)
		out.Candidates += res.Candidates
		out.Wraps += res.Wraps
		if err != nil {
			out.Failed++
		}

		if err != nil || !res.Modified {
			if err := zw.Copy(f); err != nil {
				return out, fmt.Errorf("archive: copy %s: %w", f.Name, err)
			}
			continue
		}
		if err := writeEntry(zw, f, res.Output); err != nil {
			return out, err
		}
		out.Modified = true
	}

	if err := zw.SetComment(zr.Comment); err != nil {
		return out, fmt.Errorf("archive: set comment: %w", err)
	}
	if err := zw.Close(); err != nil {
		return out, fmt.Errorf("archive: close: %w", err)
	}
	return out, nil
}

// writeEntry stores data under a copy of f's header. Checksum and sizes are
// recomputed by the writer.
func writeEntry(zw *zip.Writer, f *zip.File, data []byte) error {
	header := f.FileHeader
	header.CRC32 = 0
	header.CompressedSize = 0
	header.CompressedSize64 = 0
	header.UncompressedSize = 0
	header.UncompressedSize64 = 0
	fw, err := zw.CreateHeader(&header)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", f.Name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("archive: write %s: %w", f.Name, err)
	}
	return nil
}
