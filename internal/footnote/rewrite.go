package footnote

import (
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// FootnoteClasses are the class tokens that mark an element as a footnote
// candidate. Matching is exact and case-sensitive.
var FootnoteClasses = []string{
	"footnotepara",
	"footnote",
	"Footnote-Reference",
	"footnote1",
	"note",
	"footnote-anchor",
	"footnotePara",
}

var footnoteClassSet = func() map[string]bool {
	m := make(map[string]bool, len(FootnoteClasses))
	for _, c := range FootnoteClasses {
		m[c] = true
	}
	return m
}()

// EPUBNamespace is the namespace of the epub:type attribute.
const EPUBNamespace = "http://www.idpf.org/2007/ops"

// DefaultMaxBytes bounds the size of a single document.
const DefaultMaxBytes = 64 << 20

// Options tune a Rewrite call.
type Options struct {
	// Strict requires well-formed markup, as for XHTML documents.
	Strict bool
	// MaxBytes rejects larger documents; 0 means DefaultMaxBytes.
	MaxBytes int
}

// Rule identifies which branch of the decision procedure applied to a
// candidate.
type Rule int

const (
	// NoTarget means no eligible wrap target was found.
	NoTarget Rule = iota
	// SpanAncestor wraps the p/h2 enclosing the span around the candidate's link.
	SpanAncestor
	// LinkID wraps the candidate's link, which carries an id.
	LinkID
	// AncestorID wraps the candidate's nearest p/h2 carrying an id.
	AncestorID
	// AlreadyWrapped means the candidate or its link sits inside an aside.
	AlreadyWrapped
)

func (r Rule) String() string {
	switch r {
	case NoTarget:
		return "no-target"
	case SpanAncestor:
		return "span-ancestor"
	case LinkID:
		return "link-id"
	case AncestorID:
		return "ancestor-id"
	case AlreadyWrapped:
		return "already-wrapped"
	}
	return fmt.Sprintf("rule(%d)", int(r))
}

// Decision records what happened to one candidate.
type Decision struct {
	Index      int
	Tag        string
	Classes    []string
	Rule       Rule
	TargetTag  string
	FootnoteID string
	Wrapped    bool
}

// Result is the outcome of rewriting one document.
type Result struct {
	Label      string
	Candidates int
	Wraps      int
	Decisions  []Decision
	// Modified is true when at least one wrap occurred; Output is nil otherwise.
	Modified bool
	Output   []byte
}

// Rewrite wraps footnote elements of src in <aside epub:type="footnote">
// containers. label names the document in errors. A parse failure returns an
// error and no result; the caller should keep the document unchanged.
func Rewrite(src []byte, label string, opts Options) (Result, error) {
	res := Result{Label: label}
	limit := opts.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if len(src) > limit {
		return res, fmt.Errorf("%s: %w (%d bytes, max %d)", label, ErrTooLarge, len(src), limit)
	}
	doc, err := Parse(src, opts.Strict)
	if err != nil {
		return res, fmt.Errorf("%s: %w", label, err)
	}

	candidates := Candidates(doc)
	res.Candidates = len(candidates)
	for i, c := range candidates {
		d := decide(c)
		d.Index = i
		if d.Rule != NoTarget && d.Rule != AlreadyWrapped {
			doc.Wrap(d.target, atom.Aside,
				html.Attribute{Key: "epub:type", Val: "footnote"},
				html.Attribute{Key: "id", Val: d.FootnoteID},
			)
			d.Wrapped = true
			res.Wraps++
		}
		res.Decisions = append(res.Decisions, d.Decision)
	}
	if res.Wraps > 0 {
		if opts.Strict {
			declareEPUBNamespace(doc)
		}
		res.Modified = true
		res.Output = doc.Render()
	}
	return res, nil
}

// declareEPUBNamespace binds the epub prefix on the root element when the
// document does not, so that inserted epub:type attributes stay namespace
// well-formed.
func declareEPUBNamespace(doc *Document) {
	root := doc.Root()
	if root == nil {
		return
	}
	if _, ok := root.AttrVal("xmlns:epub"); ok {
		return
	}
	doc.AddAttr(root, "xmlns:epub", EPUBNamespace)
}

// Candidates returns the elements of doc, in document order, whose class
// tokens include a footnote class.
func Candidates(doc *Document) []*Node {
	var out []*Node
	doc.Walk(func(n *Node) {
		for _, c := range n.Classes() {
			if footnoteClassSet[c] {
				out = append(out, n)
				return
			}
		}
	})
	return out
}

type decision struct {
	Decision
	target *Node
}

func decide(c *Node) decision {
	d := decision{Decision: Decision{Tag: c.Tag, Classes: c.Classes()}}
	link := c.FirstDescendant(atom.A)

	if c.InsideAside() || (link != nil && link.InsideAside()) {
		d.Rule = AlreadyWrapped
		return d
	}

	if link != nil {
		if span := link.ClosestAncestor(atom.Span); span != nil {
			if p := span.ClosestAncestor(atom.P, atom.H2); p != nil {
				if id, ok := p.AttrVal("id"); ok && !p.InsideAside() {
					return d.with(SpanAncestor, p, id)
				}
			}
		}
		if id, ok := link.AttrVal("id"); ok && !link.InsideAside() {
			return d.with(LinkID, link, id)
		}
	}

	if p := c.ClosestAncestor(atom.P, atom.H2); p != nil {
		if id, ok := p.AttrVal("id"); ok && !p.InsideAside() {
			return d.with(AncestorID, p, id)
		}
	}
	d.Rule = NoTarget
	return d
}

func (d decision) with(r Rule, target *Node, id string) decision {
	d.Rule = r
	d.target = target
	d.TargetTag = target.Tag
	d.FootnoteID = id
	return d
}
