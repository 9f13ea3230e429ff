package markup

import (
	"bytes"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
)

// Kind classifies a node for handler dispatch.
type Kind int

const (
	KindInvalid Kind = iota
	KindParagraph
	KindHeading
	KindCodeBlock
	KindTable
	KindImage
	KindThematicBreak
	KindBlockQuote
	KindList
	KindListItem
	KindHTMLBlock
	KindInlineHTML
	KindText
	KindFootnoteList
	KindOther
)

var kindNames = [...]string{
	KindInvalid:       "invalid",
	KindParagraph:     "paragraph",
	KindHeading:       "heading",
	KindCodeBlock:     "code_block",
	KindTable:         "table",
	KindImage:         "image",
	KindThematicBreak: "thematic_break",
	KindBlockQuote:    "block_quote",
	KindList:          "list",
	KindListItem:      "list_item",
	KindHTMLBlock:     "html_block",
	KindInlineHTML:    "inline_html",
	KindText:          "text",
	KindFootnoteList:  "footnote_list",
	KindOther:         "other",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Node is a read-only view of a goldmark AST node together with the
// source it was parsed from. The zero Node is invalid and has no children.
type Node struct {
	n   ast.Node
	src []byte
}

// Wrap pairs a goldmark node with its source.
func Wrap(n ast.Node, src []byte) Node {
	return Node{n: n, src: src}
}

// Valid reports whether the node wraps an AST node.
func (n Node) Valid() bool { return n.n != nil }

// AST returns the underlying goldmark node.
func (n Node) AST() ast.Node { return n.n }

// Source returns the document source the node indexes into.
func (n Node) Source() []byte { return n.src }

// Same reports whether both views wrap the same AST node.
func (n Node) Same(o Node) bool { return n.n == o.n }

// Kind classifies the node.
func (n Node) Kind() Kind {
	switch n.n.(type) {
	case nil:
		return KindInvalid
	case *ast.Paragraph, *ast.TextBlock:
		return KindParagraph
	case *ast.Heading:
		return KindHeading
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return KindCodeBlock
	case *east.Table:
		return KindTable
	case *ast.Image:
		return KindImage
	case *ast.ThematicBreak:
		return KindThematicBreak
	case *ast.Blockquote:
		return KindBlockQuote
	case *ast.List:
		return KindList
	case *ast.ListItem:
		return KindListItem
	case *ast.HTMLBlock:
		return KindHTMLBlock
	case *ast.RawHTML:
		return KindInlineHTML
	case *ast.Text, *ast.String:
		return KindText
	case *east.FootnoteList:
		return KindFootnoteList
	}
	return KindOther
}

// ChildCount returns the number of direct children.
func (n Node) ChildCount() int {
	if n.n == nil {
		return 0
	}
	return n.n.ChildCount()
}

// Child returns the i-th child, or the invalid Node when out of range.
func (n Node) Child(i int) Node {
	if n.n == nil || i < 0 {
		return Node{}
	}
	c := n.n.FirstChild()
	for ; c != nil && i > 0; i-- {
		c = c.NextSibling()
	}
	if c == nil {
		return Node{}
	}
	return Node{n: c, src: n.src}
}

// FirstChild is Child(0).
func (n Node) FirstChild() Node { return n.Child(0) }

// LastChild returns the last child or the invalid Node.
func (n Node) LastChild() Node {
	if n.n == nil || n.n.LastChild() == nil {
		return Node{}
	}
	return Node{n: n.n.LastChild(), src: n.src}
}

// Children returns all direct children in order.
func (n Node) Children() []Node {
	if n.n == nil {
		return nil
	}
	out := make([]Node, 0, n.n.ChildCount())
	for c := n.n.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, Node{n: c, src: n.src})
	}
	return out
}

// RawText returns the source text the node was parsed from. Block nodes
// return their lines verbatim; inline HTML returns its segments; other
// inline nodes return the concatenated text of their descendants.
func (n Node) RawText() string {
	if n.n == nil {
		return ""
	}
	switch v := n.n.(type) {
	case *ast.RawHTML:
		var buf bytes.Buffer
		for i := 0; i < v.Segments.Len(); i++ {
			seg := v.Segments.At(i)
			buf.Write(seg.Value(n.src))
		}
		return buf.String()
	case *ast.Text:
		return string(v.Segment.Value(n.src))
	case *ast.String:
		return string(v.Value)
	}
	if n.n.Type() == ast.TypeBlock {
		lines := n.n.Lines()
		if lines != nil && lines.Len() > 0 {
			var buf bytes.Buffer
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(n.src))
			}
			return string(bytes.TrimRight(buf.Bytes(), "\n"))
		}
	}
	var buf bytes.Buffer
	collectText(&buf, n.n, n.src)
	return buf.String()
}

func collectText(buf *bytes.Buffer, n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(v.Value)
		default:
			if c.Type() == ast.TypeBlock && c.Lines() != nil && c.Lines().Len() > 0 {
				lines := c.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(src))
				}
				continue
			}
			collectText(buf, c, src)
		}
	}
}

// Code returns the body of a code block.
func (n Node) Code() string {
	switch n.n.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return n.RawText()
	}
	return ""
}

// Language returns the info-string language of a fenced code block.
func (n Node) Language() string {
	if fc, ok := n.n.(*ast.FencedCodeBlock); ok {
		return string(fc.Language(n.src))
	}
	return ""
}

// Destination returns the URL of an image or link node.
func (n Node) Destination() string {
	switch v := n.n.(type) {
	case *ast.Image:
		return string(v.Destination)
	case *ast.Link:
		return string(v.Destination)
	case *ast.AutoLink:
		return string(v.URL(n.src))
	}
	return ""
}
