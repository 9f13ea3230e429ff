package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgallion1/markchunk/internal/cache"
	"github.com/dgallion1/markchunk/internal/highlight"
	"github.com/dgallion1/markchunk/internal/latex"
	"github.com/dgallion1/markchunk/internal/markup"
	"github.com/dgallion1/markchunk/internal/style"
	"github.com/dgallion1/markchunk/internal/tablelayout"
	"github.com/dgallion1/markchunk/internal/textrender"
	east "github.com/yuin/goldmark/extension/ast"
)

// Handler recognizes one structural pattern and builds its chunk.
// CanHandle must be free of side effects. Handle builds exactly one chunk
// from exactly one node and may only touch shared render caches.
type Handler interface {
	CanHandle(n markup.Node) bool
	Handle(n markup.Node, st *style.Style) Chunk
}

// ThematicBreakHandler emits a fixed-height separator.
type ThematicBreakHandler struct{}

func (ThematicBreakHandler) CanHandle(n markup.Node) bool {
	return n.Kind() == markup.KindThematicBreak
}

func (ThematicBreakHandler) Handle(n markup.Node, st *style.Style) Chunk {
	return Chunk{
		Type:     TypeThematic,
		Children: []markup.Node{n},
		ItemSize: style.Size{Width: st.ContainerWidth, Height: st.ThematicBreak.Height},
	}
}

// ImageHandler emits a placeholder-sized image chunk. The real size is
// known only once the image loads.
type ImageHandler struct{}

func (ImageHandler) image(n markup.Node) (markup.Node, bool) {
	switch n.Kind() {
	case markup.KindImage:
		return n, true
	case markup.KindParagraph:
		if first := n.FirstChild(); first.Kind() == markup.KindImage {
			return first, true
		}
	}
	return markup.Node{}, false
}

func (h ImageHandler) CanHandle(n markup.Node) bool {
	_, ok := h.image(n)
	return ok
}

func (h ImageHandler) Handle(n markup.Node, st *style.Style) Chunk {
	img, _ := h.image(n)
	return Chunk{
		Type:     TypeImage,
		Children: []markup.Node{n},
		Source:   img.Destination(),
		ItemSize: style.Size{Width: st.ContainerWidth, Height: st.Image.PlaceholderHeight},
	}
}

// BlockQuoteHandler never matches; block quotes render as generic text.
type BlockQuoteHandler struct{}

func (BlockQuoteHandler) CanHandle(markup.Node) bool { return false }

func (BlockQuoteHandler) Handle(n markup.Node, st *style.Style) Chunk {
	return Chunk{Type: TypeBlockQuote, Children: []markup.Node{n}}
}

// CodeBlockHandler highlights and measures code blocks. Highlighted text
// is cached by theme, font size, language and code.
type CodeBlockHandler struct {
	Highlighter highlight.Highlighter
	Measurer    textrender.Measurer
	Cache       *cache.Manager
}

func (h *CodeBlockHandler) CanHandle(n markup.Node) bool {
	return n.Kind() == markup.KindCodeBlock
}

func (h *CodeBlockHandler) Handle(n markup.Node, st *style.Style) Chunk {
	code, lang := n.Code(), n.Language()
	key := fmt.Sprintf("%s\x00%g\x00%s\x00%s", st.CodeBlock.Theme, st.CodeBlock.Font.Size, lang, code)

	var entry *cache.TextEntry
	if h.Cache != nil {
		entry, _ = h.Cache.Text(key)
	}
	if entry == nil {
		text, _ := highlight.Fallback{Highlighter: h.Highlighter}.Highlight(code, lang, st)
		entry = &cache.TextEntry{Text: text, Layout: h.Measurer.Measure(text, st.CodeMeasureWidth())}
		if h.Cache != nil {
			h.Cache.SetText(key, entry)
		}
	}

	layout := entry.Layout
	cb := st.CodeBlock
	height := cb.Padding.Top + cb.HeaderHeight + cb.ContentInset + layout.Size.Height + cb.ContentInset + cb.Padding.Bottom
	return Chunk{
		Type:       TypeCode,
		Children:   []markup.Node{n},
		Text:       entry.Text,
		TextLayout: &layout,
		Code:       code,
		Language:   lang,
		CodeSize:   layout.Size,
		ItemSize:   style.Size{Width: st.ContainerWidth, Height: height},
	}
}

// TableHandler builds a table model from the cell nodes, measures every
// cell at the maximum cell width and lays the grid out.
type TableHandler struct {
	Visitor  *textrender.Visitor
	Measurer textrender.Measurer
}

func (h *TableHandler) CanHandle(n markup.Node) bool {
	return n.Kind() == markup.KindTable
}

func (h *TableHandler) Handle(n markup.Node, st *style.Style) Chunk {
	c := Chunk{Type: TypeTable, Children: []markup.Node{n}}
	model := h.model(n, st)
	c.Table = model
	if model.Empty() {
		return c
	}

	var grid tablelayout.Grid
	if model.Header != nil {
		grid.Header = cellSizes(model.Header)
	}
	for _, row := range model.Rows {
		grid.Rows = append(grid.Rows, cellSizes(row))
	}
	layout := tablelayout.Compute(grid, tablelayout.ConfigFromStyle(st))
	c.TableLayout = &layout
	c.ItemSize = style.Size{Width: st.ContainerWidth, Height: layout.Height}
	return c
}

func cellSizes(cells []Cell) []style.Size {
	out := make([]style.Size, len(cells))
	for i, c := range cells {
		out[i] = c.Layout.Size
	}
	return out
}

func (h *TableHandler) model(n markup.Node, st *style.Style) *TableModel {
	m := &TableModel{}
	t, ok := n.AST().(*east.Table)
	if !ok {
		return m
	}
	for _, a := range t.Alignments {
		m.Alignments = append(m.Alignments, a.String())
	}
	var contents strings.Builder
	for _, row := range n.Children() {
		header := row.AST().Kind() == east.KindTableHeader
		font := st.Table.Font
		if header {
			font = st.Table.HeaderFont
		}
		var cells []Cell
		for i, cell := range row.Children() {
			text := h.Visitor.VisitWith(cell, font)
			cells = append(cells, Cell{Text: text, Layout: h.Measurer.Measure(text, st.Table.CellMaxWidth)})
			if i > 0 {
				contents.WriteByte('\t')
			}
			contents.WriteString(text.String())
		}
		contents.WriteByte('\n')
		if header {
			m.Header = cells
		} else {
			m.Rows = append(m.Rows, cells)
		}
	}
	m.Contents = contents.String()
	return m
}

// LatexHandler renders paragraphs bracketed by math markers. Rendering
// runs as a cancellable task bounded by Style.Math.Timeout.
type LatexHandler struct {
	Renderer *latex.Renderer
}

func (h *LatexHandler) CanHandle(n markup.Node) bool {
	if n.Kind() != markup.KindParagraph || n.ChildCount() < 2 {
		return false
	}
	first, last := n.FirstChild(), n.LastChild()
	if !isMathMarker(first, markup.MathOpen) || !isMathMarker(last, markup.MathClose) {
		return false
	}
	// Several formulas in one paragraph are inline math inside text.
	for i := 1; i < n.ChildCount()-1; i++ {
		c := n.Child(i)
		if isMathMarker(c, markup.MathOpen) || isMathMarker(c, markup.MathClose) {
			return false
		}
	}
	return true
}

func isMathMarker(n markup.Node, marker string) bool {
	return n.Kind() == markup.KindInlineHTML && strings.TrimSpace(n.RawText()) == marker
}

func (h *LatexHandler) Handle(n markup.Node, st *style.Style) Chunk {
	ctx := context.Background()
	if st.Math.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.Math.Timeout)
		defer cancel()
	}
	res := h.Renderer.Start(ctx, n.RawText(), st).Wait(ctx)

	c := Chunk{Type: TypeLatex, Children: []markup.Node{n}, Math: &res}
	if res.Kind == latex.KindText {
		c.Text = res.Text
		c.TextLayout = res.Layout
		c.ItemSize = style.Size{Width: st.ContainerWidth, Height: res.Size.Height}
		return c
	}
	pad := st.CodeBlock.Padding
	c.ItemSize = style.Size{Width: st.ContainerWidth, Height: res.Size.Height + pad.Top + pad.Bottom}
	return c
}
