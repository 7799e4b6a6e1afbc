package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type entry struct {
	name   string
	data   string
	method uint16
}

const chapter = `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops"><body>
<p id="fn1"><a class="footnote" id="ref1">1</a> A note.</p>
</body></html>`

const plainChapter = `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><body><p>No notes here.</p></body></html>`

func buildZip(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		fh := &zip.FileHeader{Name: e.name, Method: e.method, Modified: time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)}
		w, err := zw.CreateHeader(fh)
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := io.WriteString(w, e.data); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := zw.SetComment("test book"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func sampleBook(t *testing.T) []byte {
	return buildZip(t, []entry{
		{"mimetype", "application/epub+zip", zip.Store},
		{"META-INF/container.xml", `<container/>`, zip.Deflate},
		{"OEBPS/images/cover.png", "\x89PNG\r\n\x1a\nbinary-bytes", zip.Store},
		{"OEBPS/text/footnotes.xhtml", chapter, zip.Deflate},
		{"OEBPS/text/ch01.xhtml", plainChapter, zip.Deflate},
	})
}

func process(t *testing.T, in []byte, opts Options) (Outcome, *zip.Reader) {
	t.Helper()
	var out bytes.Buffer
	oc, err := Process(context.Background(), bytes.NewReader(in), int64(len(in)), &out, opts)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	if err != nil {
		t.Fatalf("reopen output: %v", err)
	}
	return oc, zr
}

func readEntry(t *testing.T, f *zip.File) string {
	t.Helper()
	rc, err := f.Open()
	if err != nil {
		t.Fatalf("open %s: %v", f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", f.Name, err)
	}
	return string(b)
}

func TestProcess_PreservesEntriesAndRewritesFootnotes(t *testing.T) {
	in := sampleBook(t)
	inZip, err := zip.NewReader(bytes.NewReader(in), int64(len(in)))
	if err != nil {
		t.Fatalf("open input: %v", err)
	}
	oc, outZip := process(t, in, Options{})

	if !oc.Modified || oc.Wraps != 1 || oc.Candidates != 1 {
		t.Fatalf("outcome = %+v", oc)
	}
	if oc.Entries != 5 || len(oc.Documents) != 2 {
		t.Fatalf("entries=%d documents=%d", oc.Entries, len(oc.Documents))
	}
	if len(outZip.File) != len(inZip.File) {
		t.Fatalf("entry count %d, want %d", len(outZip.File), len(inZip.File))
	}
	if outZip.Comment != "test book" {
		t.Fatalf("comment = %q", outZip.Comment)
	}
	for i, f := range outZip.File {
		orig := inZip.File[i]
		if f.Name != orig.Name {
			t.Fatalf("entry %d name %q, want %q", i, f.Name, orig.Name)
		}
		if f.Method != orig.Method {
			t.Fatalf("entry %s method %d, want %d", f.Name, f.Method, orig.Method)
		}
		if f.Name == "OEBPS/text/footnotes.xhtml" {
			continue
		}
		if f.CRC32 != orig.CRC32 || f.CompressedSize64 != orig.CompressedSize64 {
			t.Fatalf("entry %s not copied verbatim", f.Name)
		}
		if readEntry(t, f) != readEntry(t, orig) {
			t.Fatalf("entry %s content changed", f.Name)
		}
	}
	got := readEntry(t, outZip.File[3])
	if !strings.Contains(got, `<aside epub:type="footnote" id="fn1"><p id="fn1">`) {
		t.Fatalf("footnote not wrapped: %s", got)
	}
}

func TestProcess_ImageUntouchedWithoutCandidates(t *testing.T) {
	in := buildZip(t, []entry{
		{"mimetype", "application/epub+zip", zip.Store},
		{"OEBPS/ch01.xhtml", plainChapter, zip.Deflate},
		{"OEBPS/pic.jpg", "\xff\xd8\xff\xe0jpeg", zip.Deflate},
	})
	oc, outZip := process(t, in, Options{})
	if oc.Modified {
		t.Fatalf("expected unmodified outcome: %+v", oc)
	}
	if readEntry(t, outZip.File[1]) != plainChapter {
		t.Fatalf("content document changed without candidates")
	}
	if readEntry(t, outZip.File[2]) != "\xff\xd8\xff\xe0jpeg" {
		t.Fatalf("image changed")
	}
}

func TestProcess_NameFilterSkipsOtherDocuments(t *testing.T) {
	in := buildZip(t, []entry{
		{"mimetype", "application/epub+zip", zip.Store},
		{"OEBPS/chapter1.xhtml", chapter, zip.Deflate},
		{"OEBPS/fn.xhtml", chapter, zip.Deflate},
	})
	oc, outZip := process(t, in, Options{NameFilter: true})
	if len(oc.Documents) != 1 || oc.Documents[0].Name != "OEBPS/fn.xhtml" {
		t.Fatalf("documents = %+v", oc.Documents)
	}
	if readEntry(t, outZip.File[1]) != chapter {
		t.Fatalf("filtered document was rewritten")
	}
	if !strings.Contains(readEntry(t, outZip.File[2]), "<aside") {
		t.Fatalf("matching document was not rewritten")
	}
}

func TestProcess_ParseFailureKeepsDocument(t *testing.T) {
	broken := `<html><body><p id="a"><a class="note">1</a></div></body></html>`
	in := buildZip(t, []entry{
		{"mimetype", "application/epub+zip", zip.Store},
		{"OEBPS/broken.xhtml", broken, zip.Deflate},
		{"OEBPS/footnotes.xhtml", chapter, zip.Deflate},
	})
	oc, outZip := process(t, in, Options{})
	if oc.Failed != 1 || oc.Documents[0].Err == nil {
		t.Fatalf("expected one failed document: %+v", oc)
	}
	if readEntry(t, outZip.File[1]) != broken {
		t.Fatalf("broken document changed")
	}
	if !oc.Modified || oc.Wraps != 1 {
		t.Fatalf("healthy document should still be rewritten: %+v", oc)
	}
}

func TestProcess_LenientHTMLEntries(t *testing.T) {
	legacy := `<html><body><p id="a"><a class="note">1</a> one<p id="b">two</body></html>`
	in := buildZip(t, []entry{{"OEBPS/legacy.HTML", legacy, zip.Deflate}})
	oc, _ := process(t, in, Options{})
	if oc.Failed != 0 || oc.Wraps != 1 {
		t.Fatalf("outcome = %+v", oc)
	}
}

func TestProcess_ArchiveErrors(t *testing.T) {
	drmBook := buildZip(t, []entry{
		{"mimetype", "application/epub+zip", zip.Store},
		{"META-INF/encryption.xml", `<encryption xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
<EncryptedData xmlns="http://www.w3.org/2001/04/xmlenc#"><EncryptionMethod Algorithm="http://www.w3.org/2001/04/xmlenc#aes128-cbc"/></EncryptedData></encryption>`, zip.Deflate},
		{"OEBPS/footnotes.xhtml", chapter, zip.Deflate},
	})
	fairplay := buildZip(t, []entry{{"META-INF/sinf.xml", "<sinf/>", zip.Deflate}})
	unsafe := buildZip(t, []entry{{"../../etc/passwd.xhtml", chapter, zip.Deflate}})

	cases := []struct {
		name string
		in   []byte
		want error
	}{
		{"not a zip", []byte("definitely not a zip file"), ErrNotZip},
		{"adept", drmBook, ErrDRMProtected},
		{"fairplay", fairplay, ErrDRMProtected},
		{"unsafe path", unsafe, ErrUnsafePath},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Process(context.Background(), bytes.NewReader(tc.in), int64(len(tc.in)), io.Discard, Options{})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestProcess_FontObfuscationIsNotDRM(t *testing.T) {
	in := buildZip(t, []entry{
		{"mimetype", "application/epub+zip", zip.Store},
		{"META-INF/encryption.xml", `<encryption><EncryptedData><EncryptionMethod Algorithm="http://www.idpf.org/2008/embedding"/></EncryptedData></encryption>`, zip.Deflate},
		{"OEBPS/footnotes.xhtml", chapter, zip.Deflate},
	})
	oc, _ := process(t, in, Options{})
	if !oc.Modified {
		t.Fatalf("expected rewrite despite font obfuscation")
	}
}

func TestProcess_EntryLimit(t *testing.T) {
	in := sampleBook(t)
	_, err := Process(context.Background(), bytes.NewReader(in), int64(len(in)), io.Discard, Options{MaxEntryBytes: 32})
	if !errors.Is(err, ErrEntryTooLarge) {
		t.Fatalf("err = %v, want ErrEntryTooLarge", err)
	}
}

func TestProcess_Canceled(t *testing.T) {
	in := sampleBook(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Process(ctx, bytes.NewReader(in), int64(len(in)), io.Discard, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestContentDocumentAndNameFilter(t *testing.T) {
	for name, want := range map[string]bool{
		"a.xhtml": true, "A.XHTML": true, "b.html": true, "c.htm": true,
		"d.xml": false, "e.css": false, "xhtml": false,
	} {
		if got := IsContentDocument(name); got != want {
			t.Errorf("IsContentDocument(%q) = %v, want %v", name, got, want)
		}
	}
	for name, want := range map[string]bool{
		"OEBPS/Footnotes.xhtml": true, "text/ch01_fn.xhtml": true,
		"text/chapter1.xhtml": false, "fn/chapter1.xhtml": false,
	} {
		if got := MatchesNameFilter(name); got != want {
			t.Errorf("MatchesNameFilter(%q) = %v, want %v", name, got, want)
		}
	}
}
