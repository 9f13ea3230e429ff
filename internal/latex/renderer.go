package latex

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/dgallion1/markchunk/internal/cache"
	"github.com/dgallion1/markchunk/internal/style"
	"github.com/dgallion1/markchunk/internal/textrender"
	"golang.org/x/sync/singleflight"
)

// Renderer runs the math render chain. The bitmap cache is shared through
// the injected cache.Manager; a nil manager disables caching.
type Renderer struct {
	cache     *cache.Manager
	fast      Rasterizer
	converter VectorConverter
	vecRaster VectorRasterizer
	parser    SVGParser
	measurer  textrender.Measurer
	stats     *Stats
	log       *slog.Logger

	group singleflight.Group
}

type Option func(*Renderer)

// WithRasterizer sets the fast path. nil disables it.
func WithRasterizer(r Rasterizer) Option { return func(rr *Renderer) { rr.fast = r } }

// WithVectorConverter sets the LaTeX to SVG converter. nil disables the
// slow path.
func WithVectorConverter(c VectorConverter) Option { return func(r *Renderer) { r.converter = c } }

// WithVectorRasterizer sets the SVG rasterizer. nil makes the slow path
// return vector nodes.
func WithVectorRasterizer(v VectorRasterizer) Option { return func(r *Renderer) { r.vecRaster = v } }

func WithSVGParser(p SVGParser) Option { return func(r *Renderer) { r.parser = p } }

// WithMeasurer sets the measurer used for text fallbacks.
func WithMeasurer(m textrender.Measurer) Option { return func(r *Renderer) { r.measurer = m } }

func WithStats(s *Stats) Option { return func(r *Renderer) { r.stats = s } }

func WithLogger(l *slog.Logger) Option { return func(r *Renderer) { r.log = l } }

// NewRenderer builds a renderer with the canvas backends.
func NewRenderer(c *cache.Manager, opts ...Option) *Renderer {
	r := &Renderer{
		cache:     c,
		fast:      CanvasRasterizer{},
		converter: CanvasSVGConverter{},
		vecRaster: CanvasSVGRasterizer{},
		parser:    HTMLSVGParser{},
		measurer:  textrender.NewGridMeasurer(),
		stats:     NewStats(time.Hour),
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Stats returns the latency tracker.
func (r *Renderer) Stats() *Stats { return r.stats }

// Render runs the chain synchronously. It never fails: every error
// degrades to a text result with Err set.
func (r *Renderer) Render(ctx context.Context, src string, st *style.Style) Result {
	if st == nil {
		st = style.Default()
	}
	start := time.Now()
	formula := Normalize(src)
	if formula == "" {
		res := r.textFallback(src, st, ErrNoImage)
		r.record(res, start)
		return res
	}

	if r.cache != nil {
		if e, ok := r.cache.Math(cacheKey(formula, st)); ok {
			res := Result{Kind: KindBitmap, Source: formula, Bitmap: e.Image, Size: e.Size, Cached: true}
			r.record(res, start)
			return res
		}
	}

	v, _, shared := r.group.Do(cache.Key(cacheKey(formula, st))+fmt.Sprintf("|%v", st.Math.Advanced), func() (any, error) {
		return r.render(ctx, src, formula, st), nil
	})
	res := v.(Result)
	if shared {
		r.log.Debug("latex render shared", "formula_len", len(formula))
	}
	r.record(res, start)
	return res
}

func (r *Renderer) render(ctx context.Context, src, formula string, st *style.Style) Result {
	var errs []error
	fail := func(err error) Result {
		errs = append(errs, err)
		return r.textFallback(src, st, errors.Join(errs...))
	}

	if !(st.Math.Advanced && Complex(formula)) {
		img, err := r.rasterize(ctx, formula, st)
		if err == nil {
			return r.bitmap(formula, img, st)
		}
		errs = append(errs, err)
		r.log.Debug("latex fast path failed", "error", err)
		if !st.Math.Advanced {
			return r.textFallback(src, st, errors.Join(errs...))
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if r.converter == nil {
		return fail(ErrRendererUnavailable)
	}
	svg, err := r.converter.ConvertSVG(ctx, formula, st)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrVectorConvert, err))
	}
	if len(svg) == 0 {
		return fail(ErrVectorConvert)
	}

	if r.vecRaster != nil {
		img, err := r.vecRaster.RasterizeSVG(ctx, svg, st)
		if err == nil && img != nil && !img.Bounds().Empty() {
			return r.bitmap(formula, img, st)
		}
		if err == nil {
			err = ErrNoImage
		}
		errs = append(errs, err)
		r.log.Debug("latex vector raster failed", "error", err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if r.parser == nil {
		return fail(ErrRendererUnavailable)
	}
	node, err := r.parser.ParseSVG(svg)
	if err != nil {
		if !errors.Is(err, ErrVectorParse) {
			err = fmt.Errorf("%w: %v", ErrVectorParse, err)
		}
		return fail(err)
	}
	s := vectorScale(st)
	node.Size = style.Size{Width: node.ViewBox.Width * s, Height: node.ViewBox.Height * s}
	return Result{Kind: KindVector, Source: formula, Vector: node, Size: node.Size, Err: errors.Join(errs...)}
}

func (r *Renderer) rasterize(ctx context.Context, formula string, st *style.Style) (image.Image, error) {
	if r.fast == nil {
		return nil, ErrRendererUnavailable
	}
	img, err := r.fast.Rasterize(ctx, formula, st)
	if err != nil {
		if errors.Is(err, ErrNoImage) || errors.Is(err, ErrRendererUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, ErrNoImage
	}
	return img, nil
}

// cacheKey scopes a formula to the style inputs that change its bitmap.
func cacheKey(formula string, st *style.Style) string {
	return fmt.Sprintf("%g\x00%g\x00%s\x00%s", st.Math.FontSize, pixelRatio(st), st.Colors.MathText.Hex(), formula)
}

// bitmap caches img under formula. Its display size is the pixel size
// divided by the style pixel ratio.
func (r *Renderer) bitmap(formula string, img image.Image, st *style.Style) Result {
	ratio := pixelRatio(st)
	b := img.Bounds()
	size := style.Size{Width: float64(b.Dx()) / ratio, Height: float64(b.Dy()) / ratio}
	if r.cache != nil {
		r.cache.SetMath(cacheKey(formula, st), &cache.MathEntry{Image: img, Size: size})
	}
	return Result{Kind: KindBitmap, Source: formula, Bitmap: img, Size: size}
}

func (r *Renderer) textFallback(src string, st *style.Style, err error) Result {
	lit := Literal(src)
	text := textrender.Plain(lit, st.Fonts.InlineCode, st.Colors.MathText)
	m := r.measurer
	if m == nil {
		m = textrender.NewGridMeasurer()
	}
	layout := m.Measure(text, st.ContainerWidth)
	res := Result{Kind: KindText, Source: Normalize(src), Text: text, Layout: &layout, Size: layout.Size, Err: err}
	if err != nil {
		res.Message = err.Error()
	}
	return res
}

func (r *Renderer) record(res Result, start time.Time) {
	if r.stats != nil {
		r.stats.Record(res.Kind, res.Cached, time.Since(start))
	}
}
