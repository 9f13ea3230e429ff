package chunker

import (
	"log/slog"
	"time"

	"github.com/dgallion1/markchunk/internal/cache"
	"github.com/dgallion1/markchunk/internal/highlight"
	"github.com/dgallion1/markchunk/internal/ident"
	"github.com/dgallion1/markchunk/internal/latex"
	"github.com/dgallion1/markchunk/internal/markup"
	"github.com/dgallion1/markchunk/internal/style"
	"github.com/dgallion1/markchunk/internal/textrender"
)

// DefaultMaxTextLength is the rune count at which a text chunk is closed.
const DefaultMaxTextLength = 2000

// Generator turns markup blocks into chunks in a single synchronous pass.
// It keeps no state between calls apart from the shared render caches.
type Generator struct {
	handlers    []Handler
	custom      bool
	style       *style.Style
	maxText     int
	measurer    textrender.Measurer
	refs        textrender.ReferenceResolver
	images      textrender.ImagePrefetcher
	identifier  string
	cache       *cache.Manager
	highlighter highlight.Highlighter
	renderer    *latex.Renderer
	log         *slog.Logger
}

type Option func(*Generator)

// WithHandlers replaces the default handler list. Order is priority.
func WithHandlers(h ...Handler) Option {
	return func(g *Generator) {
		g.handlers = h
		g.custom = true
	}
}

func WithStyle(st *style.Style) Option { return func(g *Generator) { g.style = st } }

// WithMaxTextLength sets the text chunk threshold in runes.
func WithMaxTextLength(n int) Option { return func(g *Generator) { g.maxText = n } }

func WithMeasurer(m textrender.Measurer) Option { return func(g *Generator) { g.measurer = m } }

func WithReferences(r textrender.ReferenceResolver) Option { return func(g *Generator) { g.refs = r } }

func WithImages(p textrender.ImagePrefetcher) Option { return func(g *Generator) { g.images = p } }

// WithIdentifier fixes the identifier instead of issuing a ULID per call.
func WithIdentifier(id string) Option { return func(g *Generator) { g.identifier = id } }

func WithCache(m *cache.Manager) Option { return func(g *Generator) { g.cache = m } }

func WithHighlighter(h highlight.Highlighter) Option { return func(g *Generator) { g.highlighter = h } }

func WithLatexRenderer(r *latex.Renderer) Option { return func(g *Generator) { g.renderer = r } }

func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.log = l } }

// New builds a generator. Unset collaborators get defaults: the stock
// style, a grid measurer, chroma highlighting, a private cache manager and
// the canvas math renderer.
func New(opts ...Option) *Generator {
	g := &Generator{}
	for _, o := range opts {
		o(g)
	}
	if g.style == nil {
		g.style = style.Default()
	}
	if g.maxText <= 0 {
		g.maxText = DefaultMaxTextLength
	}
	if g.measurer == nil {
		g.measurer = textrender.NewGridMeasurer()
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	if g.cache == nil {
		g.cache = cache.NewManager(cache.DefaultOptions())
	}
	if g.highlighter == nil {
		g.highlighter = highlight.Chroma{}
	}
	if g.renderer == nil {
		g.renderer = latex.NewRenderer(g.cache, latex.WithMeasurer(g.measurer), latex.WithLogger(g.log))
	}
	if !g.custom {
		g.handlers = g.DefaultHandlers()
	}
	return g
}

// DefaultHandlers returns the stock handlers wired to the generator's
// collaborators, in priority order.
func (g *Generator) DefaultHandlers() []Handler {
	return []Handler{
		&TableHandler{Visitor: g.visitor(), Measurer: g.measurer},
		&CodeBlockHandler{Highlighter: g.highlighter, Measurer: g.measurer, Cache: g.cache},
		ThematicBreakHandler{},
		ImageHandler{},
		&LatexHandler{Renderer: g.renderer},
		BlockQuoteHandler{},
	}
}

// With returns a copy of g with opts applied. The copy shares the caches,
// measurer and math renderer of g; default handlers are rebuilt so they
// see the new settings.
func (g *Generator) With(opts ...Option) *Generator {
	c := *g
	c.handlers = append([]Handler(nil), g.handlers...)
	for _, o := range opts {
		o(&c)
	}
	if c.style == nil {
		c.style = g.style
	}
	if c.maxText <= 0 {
		c.maxText = DefaultMaxTextLength
	}
	if !c.custom {
		c.handlers = c.DefaultHandlers()
	}
	return &c
}

// Cache returns the render cache manager.
func (g *Generator) Cache() *cache.Manager { return g.cache }

// Style returns the style applied to every chunk.
func (g *Generator) Style() *style.Style { return g.style }

// Renderer returns the math renderer.
func (g *Generator) Renderer() *latex.Renderer { return g.renderer }

func (g *Generator) visitor() *textrender.Visitor {
	return &textrender.Visitor{Style: g.style, References: g.refs, Images: g.images}
}

func (g *Generator) match(n markup.Node) Handler {
	for _, h := range g.handlers {
		if h.CanHandle(n) {
			return h
		}
	}
	return nil
}

// GenerateDocument generates chunks for the top-level blocks of doc.
func (g *Generator) GenerateDocument(doc *markup.Document) []Chunk {
	if doc == nil {
		return nil
	}
	return g.Generate(doc.Blocks)
}

// Generate walks nodes in order. Nodes claimed by a handler become their
// own chunk; the rest accumulate into text chunks closed at the length
// threshold. Every node lands in exactly one chunk, in input order.
func (g *Generator) Generate(nodes []markup.Node) []Chunk {
	start := time.Now()
	id := g.identifier
	if id == "" {
		id = ident.New()
	}
	visitor := g.visitor()

	var out []Chunk
	acc := g.newText(id)
	flush := func() {
		if acc.HasContent() {
			acc.Text = acc.Text.TrimTrailingNewlines()
			out = append(out, acc)
		}
		acc = g.newText(id)
	}

	for _, n := range nodes {
		if h := g.match(n); h != nil {
			flush()
			c := h.Handle(n, g.style)
			if !c.HasContent() {
				c.Children = []markup.Node{n}
			}
			c.Identifier = id
			c.Style = g.style
			c.ComputeHashKey()
			out = append(out, c)
			continue
		}

		text := visitor.Visit(n)
		if acc.HasContent() && acc.Text.Len()+text.Len() > g.maxText {
			flush()
		}
		acc.Children = append(acc.Children, n)
		acc.Text.Append(text)
		layout := g.measurer.Measure(acc.Text.TrimTrailingNewlines(), g.style.ContainerWidth)
		acc.TextLayout = &layout
		acc.ItemSize = style.Size{Width: g.style.ContainerWidth, Height: layout.Size.Height}
	}
	flush()

	for i := range out {
		out[i].Index = i
		out[i].ComputeHashKey()
	}
	g.log.Debug("generated chunks", "identifier", id, "nodes", len(nodes), "chunks", len(out), "duration", time.Since(start))
	return out
}

func (g *Generator) newText(id string) Chunk {
	return Chunk{Identifier: id, Type: TypeText, Style: g.style}
}
