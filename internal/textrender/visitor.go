package textrender

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/markchunk/internal/markup"
	"github.com/dgallion1/markchunk/internal/style"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
)

// Reference is a resolved citation marker.
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ReferenceResolver maps the marker inside <sup>..</sup> to a citation.
type ReferenceResolver interface {
	Resolve(marker string) (Reference, bool)
}

// ReferenceMap is a static ReferenceResolver.
type ReferenceMap map[string]Reference

func (m ReferenceMap) Resolve(marker string) (Reference, bool) {
	r, ok := m[strings.TrimSpace(marker)]
	return r, ok
}

// ImagePrefetcher is told about inline images as they are visited so their
// bytes can be fetched ahead of display.
type ImagePrefetcher interface {
	Prefetch(src string)
}

// Visitor converts markup nodes into attributed text. It holds no per-call
// state and is safe for concurrent use.
type Visitor struct {
	Style      *style.Style
	References ReferenceResolver
	Images     ImagePrefetcher
}

// Visit renders n. Block nodes followed by a sibling end with a line feed
// so consecutive visits can be concatenated.
func (v *Visitor) Visit(n markup.Node) AttributedText {
	return v.VisitWith(n, v.style().Fonts.Body)
}

// VisitWith renders n starting from base instead of the body font.
func (v *Visitor) VisitWith(n markup.Node, base style.Font) AttributedText {
	if !n.Valid() {
		return AttributedText{}
	}
	st := v.style()
	w := &walker{
		v:   v,
		st:  st,
		src: n.Source(),
		cur: attrs{font: base, color: st.Colors.Text},
	}
	if n.AST().Type() == ast.TypeBlock {
		w.block(n.AST())
	} else {
		w.inline(n.AST())
	}
	return w.out
}

func (v *Visitor) style() *style.Style {
	if v.Style == nil {
		return style.Default()
	}
	return v.Style
}

type attrs struct {
	font   style.Font
	color  style.Color
	bg     *style.Color
	link   string
	strike bool
	sup    bool
}

type walker struct {
	v     *Visitor
	st    *style.Style
	src   []byte
	out   AttributedText
	cur   attrs
	depth int
}

func (w *walker) emit(s string) {
	w.out.AppendRun(Run{
		Text:        s,
		Font:        w.cur.font,
		Color:       w.cur.color,
		Background:  w.cur.bg,
		Link:        w.cur.link,
		Strike:      w.cur.strike,
		Superscript: w.cur.sup,
	})
}

func (w *walker) newline() {
	if !w.out.IsEmpty() && !w.out.EndsWithNewline() {
		w.emit("\n")
	}
}

// with runs f with attributes changed by set, then restores them.
func (w *walker) with(set func(*attrs), f func()) {
	saved := w.cur
	set(&w.cur)
	f()
	w.cur = saved
}

func (w *walker) breakAfter(n ast.Node) {
	if n.NextSibling() != nil {
		w.newline()
	}
}

func (w *walker) blocks(parent ast.Node) {
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c)
	}
}

func (w *walker) block(n ast.Node) {
	switch node := n.(type) {
	case *ast.Document:
		w.blocks(node)
	case *ast.Paragraph, *ast.TextBlock:
		w.inlines(node)
		w.breakAfter(node)
	case *ast.Heading:
		w.with(func(a *attrs) {
			a.font = w.st.Fonts.Heading(node.Level)
			a.color = w.st.Colors.Heading
		}, func() { w.inlines(node) })
		w.breakAfter(node)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		w.with(func(a *attrs) {
			a.font = w.st.CodeBlock.Font
			a.color = w.st.Colors.CodeBlockText
		}, func() { w.emit(markup.Wrap(node, w.src).Code()) })
		w.breakAfter(node)
	case *ast.Blockquote:
		w.with(func(a *attrs) {
			a.font = w.st.Fonts.Quote
			a.color = w.st.Colors.Quote
		}, func() { w.blocks(node) })
		w.breakAfter(node)
	case *ast.List:
		w.list(node)
		w.breakAfter(node)
	case *ast.ThematicBreak:
		w.with(func(a *attrs) { a.color = w.st.Colors.ThematicBreak }, func() { w.emit("———") })
		w.breakAfter(node)
	case *ast.HTMLBlock:
		w.emit(htmlBlockText(node, w.src))
		w.breakAfter(node)
	case *east.Table:
		w.table(node)
		w.breakAfter(node)
	case *east.TableCell:
		w.inlines(node)
	case *east.FootnoteList:
		w.footnotes(node)
		w.breakAfter(node)
	default:
		if n.Type() == ast.TypeBlock {
			w.blocks(n)
			w.breakAfter(n)
			return
		}
		w.inline(n)
	}
}

func (w *walker) list(l *ast.List) {
	num := l.Start
	if num == 0 {
		num = 1
	}
	indent := strings.Repeat("  ", w.depth)
	w.depth++
	defer func() { w.depth-- }()
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if l.IsOrdered() {
			marker = strconv.Itoa(num) + ". "
			num++
		}
		w.emit(indent + marker)
		w.blocks(item)
		if item.NextSibling() != nil {
			w.newline()
		}
	}
}

func (w *walker) table(t *east.Table) {
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		header := row.Kind() == east.KindTableHeader
		var cells []ast.Node
		for c := row.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, c)
		}
		for i, c := range cells {
			if i > 0 {
				w.emit(" | ")
			}
			if header {
				w.with(func(a *attrs) { a.font = a.font.WithBold() }, func() { w.inlines(c) })
			} else {
				w.inlines(c)
			}
		}
		if row.NextSibling() != nil {
			w.newline()
		}
	}
}

func (w *walker) footnotes(list *east.FootnoteList) {
	w.with(func(a *attrs) { a.font = w.st.Fonts.Footnote }, func() {
		for fn := list.FirstChild(); fn != nil; fn = fn.NextSibling() {
			if f, ok := fn.(*east.Footnote); ok {
				w.emit(fmt.Sprintf("[%d] ", f.Index))
			}
			w.blocks(fn)
			if fn.NextSibling() != nil {
				w.newline()
			}
		}
	})
}

// inlines visits the children of parent, pairing math and reference
// markers so the text between them is taken verbatim from the source.
func (w *walker) inlines(parent ast.Node) {
	for c := parent.FirstChild(); c != nil; {
		if raw, ok := c.(*ast.RawHTML); ok {
			if end, closeTag := w.pairedTag(raw); end != nil {
				inner := w.between(raw, end)
				switch closeTag {
				case markup.MathClose:
					w.math(inner)
				case "</sup>":
					w.reference(inner)
				}
				c = end.NextSibling()
				continue
			}
		}
		w.inline(c)
		c = c.NextSibling()
	}
}

func (w *walker) inline(n ast.Node) {
	switch node := n.(type) {
	case *ast.Text:
		w.emit(string(node.Segment.Value(w.src)))
		switch {
		case node.HardLineBreak():
			w.emit("\n")
		case node.SoftLineBreak():
			w.emit(" ")
		}
	case *ast.String:
		w.emit(string(node.Value))
	case *ast.Emphasis:
		w.with(func(a *attrs) {
			if node.Level >= 2 {
				a.font = a.font.WithBold()
			} else {
				a.font = a.font.WithItalic()
			}
		}, func() { w.inlines(node) })
	case *east.Strikethrough:
		w.with(func(a *attrs) { a.strike = true }, func() { w.inlines(node) })
	case *ast.CodeSpan:
		bg := w.st.Colors.InlineCodeBG
		w.with(func(a *attrs) {
			a.font = w.st.Fonts.InlineCode
			a.color = w.st.Colors.InlineCode
			a.bg = &bg
		}, func() { w.inlines(node) })
	case *ast.Link:
		w.with(func(a *attrs) {
			a.color = w.st.Colors.Link
			a.link = string(node.Destination)
		}, func() { w.inlines(node) })
	case *ast.AutoLink:
		w.with(func(a *attrs) {
			a.color = w.st.Colors.Link
			a.link = string(node.URL(w.src))
		}, func() { w.emit(string(node.Label(w.src))) })
	case *ast.Image:
		dest := string(node.Destination)
		if w.v.Images != nil && dest != "" {
			w.v.Images.Prefetch(dest)
		}
		alt := strings.TrimSpace(markup.Wrap(node, w.src).RawText())
		if alt == "" {
			alt = "image"
		}
		w.with(func(a *attrs) {
			a.color = w.st.Colors.Link
			a.link = dest
		}, func() { w.emit("[" + alt + "]") })
	case *ast.RawHTML:
		switch strings.ToLower(strings.ReplaceAll(markup.Wrap(node, w.src).RawText(), " ", "")) {
		case "<br>", "<br/>":
			w.emit("\n")
		}
	case *east.TaskCheckBox:
		if node.IsChecked {
			w.emit("☑ ")
		} else {
			w.emit("☐ ")
		}
	case *east.FootnoteLink:
		w.with(func(a *attrs) {
			a.font = w.st.Fonts.Footnote
			a.color = w.st.Colors.ReferenceMarker
			a.sup = true
		}, func() { w.emit(fmt.Sprintf("[%d]", node.Index)) })
	case *east.FootnoteBacklink:
	default:
		w.inlines(n)
	}
}

// pairedTag finds the sibling closing an opening math or <sup> tag.
func (w *walker) pairedTag(open *ast.RawHTML) (*ast.RawHTML, string) {
	tag := strings.ToLower(markup.Wrap(open, w.src).RawText())
	var closeTag string
	switch tag {
	case strings.ToLower(markup.MathOpen):
		closeTag = markup.MathClose
	case "<sup>":
		closeTag = "</sup>"
	default:
		return nil, ""
	}
	for s := open.NextSibling(); s != nil; s = s.NextSibling() {
		if raw, ok := s.(*ast.RawHTML); ok && strings.EqualFold(markup.Wrap(raw, w.src).RawText(), closeTag) {
			return raw, closeTag
		}
	}
	return nil, ""
}

// between returns the source text separating two inline HTML tags.
func (w *walker) between(open, end *ast.RawHTML) string {
	if open.Segments.Len() == 0 || end.Segments.Len() == 0 {
		return ""
	}
	from := open.Segments.At(open.Segments.Len() - 1).Stop
	to := end.Segments.At(0).Start
	if from >= to || to > len(w.src) {
		return ""
	}
	return string(w.src[from:to])
}

func (w *walker) math(src string) {
	formula := markup.NormalizeMath(src)
	if formula == "" {
		return
	}
	w.with(func(a *attrs) {
		a.font = w.st.Fonts.InlineCode
		a.color = w.st.Colors.MathText
	}, func() { w.emit(formula) })
}

func (w *walker) reference(marker string) {
	marker = strings.TrimSpace(marker)
	if marker == "" {
		return
	}
	label := marker
	var link string
	if w.v.References != nil {
		if ref, ok := w.v.References.Resolve(marker); ok {
			if ref.Title != "" {
				label = ref.Title
			}
			link = ref.URL
		}
	}
	w.with(func(a *attrs) {
		a.font = w.st.Fonts.Footnote
		a.color = w.st.Colors.ReferenceMarker
		a.link = link
		a.sup = true
	}, func() { w.emit("[" + label + "]") })
}

func htmlBlockText(n *ast.HTMLBlock, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	if n.HasClosure() {
		b.Write(n.ClosureLine.Value(src))
	}
	return strings.TrimRight(b.String(), "\n")
}
