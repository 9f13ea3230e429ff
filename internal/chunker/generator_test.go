package chunker

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/markchunk/internal/cache"
	"github.com/dgallion1/markchunk/internal/ident"
	"github.com/dgallion1/markchunk/internal/latex"
	"github.com/dgallion1/markchunk/internal/markup"
	"github.com/dgallion1/markchunk/internal/style"
	"github.com/dgallion1/markchunk/internal/textrender"
)

// fixedMeasurer is 10pt per rune and 20pt per line, with no wrapping.
type fixedMeasurer struct{}

func (fixedMeasurer) Measure(t textrender.AttributedText, _ float64) textrender.Layout {
	if t.IsEmpty() {
		return textrender.Layout{}
	}
	lines := strings.Split(t.String(), "\n")
	var l textrender.Layout
	for _, s := range lines {
		w := 10 * float64(utf8.RuneCountInString(s))
		l.Lines = append(l.Lines, textrender.Line{Text: s, Width: w, Height: 20})
		l.Size.Width = max(l.Size.Width, w)
		l.Size.Height += 20
	}
	return l
}

type countingRasterizer struct {
	calls atomic.Int32
	err   error
}

func (c *countingRasterizer) Rasterize(context.Context, string, *style.Style) (image.Image, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return image.NewRGBA(image.Rect(0, 0, 80, 40)), nil
}

func newTestGenerator(opts ...Option) *Generator {
	base := []Option{WithMeasurer(fixedMeasurer{})}
	return New(append(base, opts...)...)
}

func parse(src string) *markup.Document {
	return markup.NewParser().ParseString(src)
}

func TestGenerate_EndToEnd(t *testing.T) {
	g := newTestGenerator(WithMaxTextLength(1 << 20))
	chunks := g.GenerateDocument(parse("hello\n\n```python\nprint(1)\n```\n\nworld"))

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	want := []struct {
		typ  Type
		text string
	}{
		{TypeText, "hello"},
		{TypeCode, "print(1)"},
		{TypeText, "world"},
	}
	for i, w := range want {
		c := chunks[i]
		if c.Index != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, c.Index)
		}
		if c.Type != w.typ {
			t.Errorf("chunk %d: expected type %s, got %s", i, w.typ, c.Type)
		}
		if c.Text.String() != w.text {
			t.Errorf("chunk %d: expected text %q, got %q", i, w.text, c.Text.String())
		}
	}
	if chunks[1].Language != "python" {
		t.Errorf("expected language python, got %q", chunks[1].Language)
	}

	id := chunks[0].Identifier
	if !ident.Valid(id) {
		t.Errorf("expected a ULID identifier, got %q", id)
	}
	for _, c := range chunks {
		if c.Identifier != id {
			t.Errorf("expected shared identifier %q, got %q", id, c.Identifier)
		}
		if c.ItemSize.Width != g.Style().ContainerWidth {
			t.Errorf("expected container width, got %v", c.ItemSize.Width)
		}
	}
}

const mixedDoc = `# Title

Intro paragraph with *emphasis*.

- one
- two

| a | b |
|---|---|
| 1 | 2 |

---

> quoted text

$$\frac{a}{b}$$

![logo](http://example.com/logo.png)

` + "```go\nfmt.Println(1)\n```" + `

Closing words[^1].

[^1]: a footnote`

func TestGenerate_CompletenessAndOrder(t *testing.T) {
	doc := parse(mixedDoc)
	r := latex.NewRenderer(nil, latex.WithRasterizer(&countingRasterizer{}))
	for _, max := range []int{1, 10, 50, 2000} {
		g := newTestGenerator(WithMaxTextLength(max), WithLatexRenderer(r))
		chunks := g.GenerateDocument(doc)

		var got []markup.Node
		for i, c := range chunks {
			if c.Index != i {
				t.Fatalf("max=%d: chunk %d has index %d", max, i, c.Index)
			}
			if len(c.Children) == 0 {
				t.Fatalf("max=%d: chunk %d has no children", max, i)
			}
			got = append(got, c.Children...)
		}
		if len(got) != len(doc.Blocks) {
			t.Fatalf("max=%d: expected %d nodes, got %d", max, len(doc.Blocks), len(got))
		}
		for i := range got {
			if !got[i].Same(doc.Blocks[i]) {
				t.Errorf("max=%d: node %d out of order (%s vs %s)", max, i, got[i].Kind(), doc.Blocks[i].Kind())
			}
		}
	}
}

func TestGenerate_HandlerTypes(t *testing.T) {
	r := latex.NewRenderer(nil, latex.WithRasterizer(&countingRasterizer{}))
	g := newTestGenerator(WithLatexRenderer(r), WithMaxTextLength(1))
	chunks := g.GenerateDocument(parse(mixedDoc))

	seen := map[Type]int{}
	for _, c := range chunks {
		seen[c.Type]++
	}
	for _, typ := range []Type{TypeText, TypeCode, TypeTable, TypeLatex, TypeImage, TypeThematic} {
		if seen[typ] == 0 {
			t.Errorf("expected a %s chunk", typ)
		}
	}
	if seen[TypeBlockQuote] != 0 {
		t.Error("block quotes must fall through to text")
	}
}

func TestGenerate_ThresholdContract(t *testing.T) {
	const max = 30
	src := strings.Repeat("tiny\n\n", 12) + strings.Repeat("x", 80) + "\n\ntail"
	g := newTestGenerator(WithMaxTextLength(max))
	chunks := g.GenerateDocument(parse(src))

	if len(chunks) < 3 {
		t.Fatalf("expected the text to be split, got %d chunks", len(chunks))
	}
	for i, c := range chunks[:len(chunks)-1] {
		if c.Type != TypeText {
			continue
		}
		if c.Text.Len() > max && len(c.Children) > 1 {
			t.Errorf("chunk %d: %d runes from %d nodes exceeds %d", i, c.Text.Len(), len(c.Children), max)
		}
	}
}

func TestGenerate_TextLayoutRecomputed(t *testing.T) {
	g := newTestGenerator()
	chunks := g.GenerateDocument(parse("ab\n\ncde"))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Text.String() != "ab\ncde" {
		t.Errorf("unexpected text %q", c.Text.String())
	}
	if c.ItemSize.Height != 40 {
		t.Errorf("expected two measured lines (40), got %v", c.ItemSize.Height)
	}
	if c.TextLayout == nil || c.TextLayout.Size.Width != 30 {
		t.Errorf("expected layout width 30, got %+v", c.TextLayout)
	}
}

type recordingHandler struct {
	name  string
	calls *[]string
}

func (h recordingHandler) CanHandle(n markup.Node) bool { return n.Kind() == markup.KindParagraph }

func (h recordingHandler) Handle(n markup.Node, st *style.Style) Chunk {
	*h.calls = append(*h.calls, h.name)
	return Chunk{Type: TypeBlockQuote}
}

func TestGenerate_FirstMatchWins(t *testing.T) {
	var calls []string
	g := newTestGenerator(WithHandlers(
		recordingHandler{name: "first", calls: &calls},
		recordingHandler{name: "second", calls: &calls},
	))
	chunks := g.GenerateDocument(parse("p1\n\np2\n\n# heading"))

	if strings.Join(calls, ",") != "first,first" {
		t.Errorf("expected only the first handler to run, got %v", calls)
	}
	if len(chunks) != 3 || chunks[2].Type != TypeText {
		t.Fatalf("expected heading to fall through to text, got %d chunks", len(chunks))
	}
	if len(chunks[0].Children) != 1 {
		t.Error("generator must attach the handled node when a handler leaves children empty")
	}
}

func TestGenerate_EmptyInput(t *testing.T) {
	if got := newTestGenerator().Generate(nil); len(got) != 0 {
		t.Errorf("expected no chunks, got %d", len(got))
	}
}

func TestGenerate_FixedIdentifier(t *testing.T) {
	g := newTestGenerator(WithIdentifier("doc-1"))
	for _, c := range g.GenerateDocument(parse("a\n\n---\n\nb")) {
		if c.Identifier != "doc-1" {
			t.Errorf("expected fixed identifier, got %q", c.Identifier)
		}
	}
}

func TestCodeBlockHandler_Height(t *testing.T) {
	mgr := cache.NewManager(cache.DefaultOptions())
	g := newTestGenerator(WithCache(mgr))
	st := g.Style()

	for range 2 {
		chunks := g.GenerateDocument(parse("```python\nprint(1)\n```"))
		if len(chunks) != 1 || chunks[0].Type != TypeCode {
			t.Fatalf("expected one code chunk, got %+v", chunks)
		}
		c := chunks[0]
		pad := st.CodeBlock.Padding
		want := pad.Top + 32 + 8 + 20 + 8 + pad.Bottom
		if c.ItemSize.Height != want {
			t.Errorf("expected height %v, got %v", want, c.ItemSize.Height)
		}
		if c.CodeSize.Width != 80 {
			t.Errorf("expected code width 80, got %v", c.CodeSize.Width)
		}
	}
	if n := mgr.Stats().Text.Entries; n != 1 {
		t.Errorf("expected highlighted code to be cached once, got %d entries", n)
	}
}

func TestThematicAndImageHandlers(t *testing.T) {
	g := newTestGenerator()
	st := g.Style()
	chunks := g.GenerateDocument(parse("---\n\n![alt](http://x/y.png)"))
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Type != TypeThematic || chunks[0].ItemSize.Height != 30 {
		t.Errorf("unexpected thematic chunk %+v", chunks[0].ItemSize)
	}
	img := chunks[1]
	if img.Type != TypeImage || img.Source != "http://x/y.png" {
		t.Errorf("unexpected image chunk type=%s source=%q", img.Type, img.Source)
	}
	if img.ItemSize != (style.Size{Width: st.ContainerWidth, Height: 100}) {
		t.Errorf("expected placeholder size, got %+v", img.ItemSize)
	}
}

func TestTableHandler_Layout(t *testing.T) {
	st := style.Default()
	st.Table.CellMinWidth = 0
	st.Table.CellMinHeight = 0
	st.Table.RowGap = 0
	g := newTestGenerator(WithStyle(st))

	chunks := g.GenerateDocument(parse("| a | bb |\n|---|:---:|\n| ccc | d |"))
	if len(chunks) != 1 || chunks[0].Type != TypeTable {
		t.Fatalf("expected one table chunk, got %d", len(chunks))
	}
	c := chunks[0]
	l := c.TableLayout
	if l == nil {
		t.Fatal("expected table layout")
	}
	// Column width is the widest cell plus 16+16 padding; row height is 20 plus 6+6.
	if l.ColumnWidths[0] != 30+32 || l.ColumnWidths[1] != 20+32 {
		t.Errorf("unexpected column widths %v", l.ColumnWidths)
	}
	if len(l.RowHeights) != 2 || l.RowHeights[0] != 32 || l.RowHeights[1] != 32 {
		t.Errorf("unexpected row heights %v", l.RowHeights)
	}
	if c.ItemSize.Height != 64 {
		t.Errorf("expected table height 64, got %v", c.ItemSize.Height)
	}
	if c.Table.Alignments[1] != "center" {
		t.Errorf("expected center alignment, got %v", c.Table.Alignments)
	}
	if !c.Table.Header[0].Text.Runs()[0].Font.Bold {
		t.Error("expected header cells in the header font")
	}
	if c.Table.Contents != "a\tbb\nccc\td\n" {
		t.Errorf("unexpected contents %q", c.Table.Contents)
	}
}

func TestTableHandler_EmptyModelLeavesSizeZero(t *testing.T) {
	h := &TableHandler{Visitor: &textrender.Visitor{}, Measurer: fixedMeasurer{}}
	doc := parse("not a table")
	c := h.Handle(doc.Blocks[0], style.Default())
	if !c.Table.Empty() {
		t.Error("expected empty model")
	}
	if !c.ItemSize.IsZero() || c.TableLayout != nil {
		t.Errorf("expected zero size, got %+v", c.ItemSize)
	}
}

func TestLatexHandler_CacheIdempotence(t *testing.T) {
	fast := &countingRasterizer{}
	mgr := cache.NewManager(cache.DefaultOptions())
	r := latex.NewRenderer(mgr, latex.WithRasterizer(fast))
	g := newTestGenerator(WithCache(mgr), WithLatexRenderer(r))
	doc := parse(`$$\frac{a}{b}$$`)

	first := g.GenerateDocument(doc)
	second := g.GenerateDocument(doc)

	if fast.calls.Load() != 1 {
		t.Errorf("expected one expensive render, got %d", fast.calls.Load())
	}
	for _, chunks := range [][]Chunk{first, second} {
		if len(chunks) != 1 || chunks[0].Type != TypeLatex {
			t.Fatalf("expected one latex chunk, got %d", len(chunks))
		}
		c := chunks[0]
		pad := g.Style().CodeBlock.Padding
		if want := 20 + pad.Top + pad.Bottom; c.ItemSize.Height != want {
			t.Errorf("expected height %v, got %v", want, c.ItemSize.Height)
		}
	}
	if !second[0].Math.Cached {
		t.Error("expected second render to come from cache")
	}
	if first[0].HashKey != second[0].HashKey {
		t.Error("identical content should hash identically")
	}
}

func TestLatexHandler_SeveralInlineFormulasStayText(t *testing.T) {
	fast := &countingRasterizer{}
	r := latex.NewRenderer(nil, latex.WithRasterizer(fast))
	g := newTestGenerator(WithLatexRenderer(r))

	chunks := g.GenerateDocument(parse("$x$ and $y$"))
	if len(chunks) != 1 || chunks[0].Type != TypeText {
		t.Fatalf("expected one text chunk, got %+v", chunks)
	}
	if got := chunks[0].Text.String(); got != "x and y" {
		t.Errorf("expected formulas kept inline, got %q", got)
	}
	if fast.calls.Load() != 0 {
		t.Errorf("expected no math render, got %d", fast.calls.Load())
	}
	if (&LatexHandler{}).CanHandle(parse("$x$").Blocks[0]) == false {
		t.Error("expected a lone formula to still be handled as math")
	}
}

func TestLatexHandler_TextFallback(t *testing.T) {
	st := style.Default()
	st.Math.Advanced = false
	r := latex.NewRenderer(nil, latex.WithRasterizer(&countingRasterizer{err: errors.New("no glyphs")}), latex.WithMeasurer(fixedMeasurer{}))
	g := newTestGenerator(WithStyle(st), WithLatexRenderer(r))

	chunks := g.GenerateDocument(parse("$x$"))
	if len(chunks) != 1 || chunks[0].Type != TypeLatex {
		t.Fatalf("expected one latex chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Text.String() != "$x$" {
		t.Errorf("expected literal source, got %q", c.Text.String())
	}
	if c.ItemSize.Height != 20 {
		t.Errorf("expected measured text height, got %v", c.ItemSize.Height)
	}
	if !errors.Is(c.Math.Err, latex.ErrNoImage) {
		t.Errorf("expected ErrNoImage, got %v", c.Math.Err)
	}
}

func TestComputeHashKey(t *testing.T) {
	a := Chunk{Type: TypeCode, Code: "x", Language: "go", ItemSize: style.Size{Height: 10.2}}
	b := a
	a.ComputeHashKey()
	b.ComputeHashKey()
	if a.HashKey != b.HashKey {
		t.Error("expected equal keys for equal content")
	}
	if !strings.HasPrefix(a.HashKey, "1-") || !strings.HasSuffix(a.HashKey, "-11") {
		t.Errorf("unexpected key layout %q", a.HashKey)
	}
	b.Language = "python"
	b.ComputeHashKey()
	if a.HashKey == b.HashKey {
		t.Error("expected language to change the key")
	}

	e1, e2 := Chunk{Type: TypeThematic}, Chunk{Type: TypeThematic}
	e1.ComputeHashKey()
	e2.ComputeHashKey()
	if e1.HashKey == e2.HashKey {
		t.Error("chunks without content must not collide")
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one", 1},
		{"   \n", 0},
		{strings.Repeat("word ", 100), 133},
		{"你好世界", 4},
		{"hi 你好", 3},
		{"x你y", 3},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestGenerator_WithSharesCollaborators(t *testing.T) {
	base := newTestGenerator()
	st := base.Style().Clone()
	st.ContainerWidth = 500
	derived := base.With(WithStyle(st), WithMaxTextLength(10))

	if derived.Cache() != base.Cache() || derived.Renderer() != base.Renderer() {
		t.Error("expected derived generator to share cache and renderer")
	}
	if base.Style().ContainerWidth == 500 {
		t.Error("expected base style untouched")
	}
	chunks := derived.GenerateDocument(parse("---"))
	if len(chunks) != 1 || chunks[0].ItemSize.Width != 500 {
		t.Fatalf("expected thematic break sized to the new width, got %+v", chunks)
	}
}
