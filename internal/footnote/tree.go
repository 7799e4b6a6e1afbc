package footnote

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeType distinguishes the kinds of nodes in a Document tree.
type NodeType int

const (
	// RawNode is any token that is not an element: text, comments,
	// doctypes, processing instructions and stray end tags.
	RawNode NodeType = iota
	// ElementNode is an element with an open tag and an optional close tag.
	ElementNode
	// rootNode is the document container.
	rootNode
)

// span is a half-open byte range into the source document.
type span struct {
	start, end int
}

// Node is one node of a parsed document. Source nodes remember the byte
// ranges of their tokens so that rendering reproduces the input exactly;
// synthetic nodes render from their tag and attributes.
type Node struct {
	Type     NodeType
	Tag      string
	Atom     atom.Atom
	Attr     []html.Attribute
	Parent   *Node
	Children []*Node

	open      span
	close     span
	synthetic bool
	added     []html.Attribute
}

// AttrVal returns the value of the named attribute.
func (n *Node) AttrVal(key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Classes returns the whitespace-separated tokens of the class attribute.
func (n *Node) Classes() []string {
	v, ok := n.AttrVal("class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

// ClosestAncestor returns the nearest proper ancestor element whose tag is
// one of tags, or nil.
func (n *Node) ClosestAncestor(tags ...atom.Atom) *Node {
	for p := n.Parent; p != nil && p.Type == ElementNode; p = p.Parent {
		for _, t := range tags {
			if p.Atom == t {
				return p
			}
		}
	}
	return nil
}

// FirstDescendant returns the first element below n, in document order,
// with the given tag. n itself is not considered.
func (n *Node) FirstDescendant(tag atom.Atom) *Node {
	for _, c := range n.Children {
		if c.Type != ElementNode {
			continue
		}
		if c.Atom == tag {
			return c
		}
		if d := c.FirstDescendant(tag); d != nil {
			return d
		}
	}
	return nil
}

// InsideAside reports whether any ancestor of n is an aside element.
func (n *Node) InsideAside() bool {
	return n.ClosestAncestor(atom.Aside) != nil
}

// Document is a parsed content document.
type Document struct {
	src  []byte
	root *Node
}

// ErrMalformed is returned by Parse when strict parsing finds markup that is
// not well formed.
var ErrMalformed = errors.New("footnote: malformed markup")

// ErrTooLarge is returned by Parse when the document exceeds the size limit.
var ErrTooLarge = errors.New("footnote: document too large")

// voidElements never have content or a close tag in HTML.
var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Param: true, atom.Source: true,
	atom.Track: true, atom.Wbr: true,
}

// Parse tokenizes src into a Document. In strict mode every close tag must
// match the innermost open element and no element may remain open at the end
// of input. In lenient mode mismatches are repaired the way browsers commonly
// do for sloppy HTML.
func Parse(src []byte, strict bool) (*Document, error) {
	root := &Node{Type: rootNode}
	doc := &Document{src: src, root: root}
	cur := root
	pos := 0

	z := html.NewTokenizer(bytes.NewReader(src))
	z.AllowCDATA(strict)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("tokenize at byte %d: %w", pos, err)
			}
			break
		}
		raw := span{pos, pos + len(z.Raw())}
		pos = raw.end

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			n := &Node{Type: ElementNode, Tag: string(name), Atom: atom.Lookup(name), open: raw}
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				n.Attr = append(n.Attr, html.Attribute{Key: string(k), Val: string(v)})
			}
			if !strict && n.Atom == atom.P && cur.Atom == atom.P && cur.Type == ElementNode {
				cur.close = span{raw.start, raw.start}
				cur = cur.Parent
			}
			n.Parent = cur
			cur.Children = append(cur.Children, n)
			// XHTML has raw text only inside script and style, and a
			// self-closed element has no body at all.
			if tt == html.SelfClosingTagToken || (strict && n.Atom != atom.Script && n.Atom != atom.Style) {
				z.NextIsNotRawText()
			}
			if tt == html.SelfClosingTagToken || (!strict && voidElements[n.Atom]) {
				n.close = span{raw.end, raw.end}
				continue
			}
			cur = n
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if strict {
				if cur.Type != ElementNode || cur.Tag != tag {
					return nil, fmt.Errorf("%w: unexpected </%s> at byte %d", ErrMalformed, tag, raw.start)
				}
				cur.close = raw
				cur = cur.Parent
				continue
			}
			match := cur
			for match != nil && match.Type == ElementNode && match.Tag != tag {
				match = match.Parent
			}
			if match == nil || match.Type != ElementNode {
				cur.Children = append(cur.Children, &Node{Type: RawNode, Parent: cur, open: raw})
				continue
			}
			for n := cur; n != match; n = n.Parent {
				n.close = span{raw.start, raw.start}
			}
			match.close = raw
			cur = match.Parent
		default:
			cur.Children = append(cur.Children, &Node{Type: RawNode, Parent: cur, open: raw})
		}
	}

	// The tokenizer drops an unterminated trailing tag; keep its bytes.
	if pos < len(src) {
		if strict {
			return nil, fmt.Errorf("%w: truncated markup at byte %d", ErrMalformed, pos)
		}
		cur.Children = append(cur.Children, &Node{Type: RawNode, Parent: cur, open: span{pos, len(src)}})
		pos = len(src)
	}
	if strict && cur != root {
		return nil, fmt.Errorf("%w: <%s> not closed", ErrMalformed, cur.Tag)
	}
	for n := cur; n != root; n = n.Parent {
		n.close = span{pos, pos}
	}
	return doc, nil
}

// Walk calls fn for every element in document order.
func (d *Document) Walk(fn func(*Node)) {
	var walk func(*Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			if c.Type != ElementNode {
				continue
			}
			fn(c)
			walk(c)
		}
	}
	walk(d.root)
}

// Wrap replaces target in its parent with a new element that has target as
// its only child, and returns the new element.
func (d *Document) Wrap(target *Node, tag atom.Atom, attr ...html.Attribute) *Node {
	parent := target.Parent
	w := &Node{
		Type:      ElementNode,
		Tag:       tag.String(),
		Atom:      tag,
		Attr:      attr,
		Parent:    parent,
		Children:  []*Node{target},
		synthetic: true,
	}
	for i, c := range parent.Children {
		if c == target {
			parent.Children[i] = w
			break
		}
	}
	target.Parent = w
	return w
}

// Root returns the top-level html element, or nil for a fragment.
func (d *Document) Root() *Node {
	for _, c := range d.root.Children {
		if c.Type == ElementNode && c.Atom == atom.Html {
			return c
		}
	}
	return nil
}

// AddAttr appends an attribute to the start tag of n. The existing bytes of
// the tag are kept; the attribute is written before the closing bracket.
func (d *Document) AddAttr(n *Node, key, val string) {
	a := html.Attribute{Key: key, Val: val}
	n.Attr = append(n.Attr, a)
	n.added = append(n.added, a)
}

// Render serializes the document. Source nodes are written from their
// original bytes; synthetic elements are written from their attributes.
func (d *Document) Render() []byte {
	var b bytes.Buffer
	b.Grow(len(d.src) + 256)
	d.render(&b, d.root)
	return b.Bytes()
}

func (d *Document) render(b *bytes.Buffer, n *Node) {
	switch {
	case n.Type == RawNode:
		b.Write(d.src[n.open.start:n.open.end])
		return
	case n.synthetic:
		b.WriteByte('<')
		b.WriteString(n.Tag)
		writeAttrs(b, n.Attr)
		b.WriteByte('>')
	case n.Type == ElementNode && len(n.added) > 0:
		tag := d.src[n.open.start:n.open.end]
		cut := len(tag) - 1
		if cut > 0 && tag[cut-1] == '/' {
			cut--
		}
		b.Write(tag[:cut])
		writeAttrs(b, n.added)
		b.Write(tag[cut:])
	case n.Type == ElementNode:
		b.Write(d.src[n.open.start:n.open.end])
	}
	for _, c := range n.Children {
		d.render(b, c)
	}
	switch {
	case n.synthetic:
		b.WriteString("</")
		b.WriteString(n.Tag)
		b.WriteByte('>')
	case n.Type == ElementNode:
		b.Write(d.src[n.close.start:n.close.end])
	}
}

func writeAttrs(b *bytes.Buffer, attrs []html.Attribute) {
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteByte('"')
	}
}
