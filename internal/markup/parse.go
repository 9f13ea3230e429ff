package markup

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Document is a parsed markdown source and its top-level blocks.
type Document struct {
	Source []byte
	Root   ast.Node
	Blocks []Node
}

// Parser parses markdown with the GFM and footnote extensions.
type Parser struct {
	md        goldmark.Markdown
	rewriters []Rewriter
}

// Option configures a Parser.
type Option func(*Parser)

// WithRewriters replaces the source rewriters run before parsing.
// Passing none disables preprocessing.
func WithRewriters(rw ...Rewriter) Option {
	return func(p *Parser) { p.rewriters = rw }
}

// NewParser builds a Parser. The default rewriters wrap math, separate code
// fences and expand <img> tags.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
		),
		rewriters: DefaultRewriters(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse rewrites and parses src. It never fails; goldmark accepts any input.
func (p *Parser) Parse(src []byte) *Document {
	if len(p.rewriters) > 0 {
		src = []byte(Preprocess(string(src), p.rewriters...))
	}
	root := p.md.Parser().Parse(text.NewReader(src))
	doc := &Document{Source: src, Root: root}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		doc.Blocks = append(doc.Blocks, Wrap(n, src))
	}
	return doc
}

// ParseString is Parse for strings.
func (p *Parser) ParseString(src string) *Document {
	return p.Parse([]byte(src))
}
