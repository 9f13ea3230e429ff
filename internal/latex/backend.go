package latex

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/dgallion1/markchunk/internal/style"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
)

// Rasterizer renders a formula straight to a bitmap.
type Rasterizer interface {
	Rasterize(ctx context.Context, formula string, st *style.Style) (image.Image, error)
}

// VectorConverter turns a formula into an SVG document.
type VectorConverter interface {
	ConvertSVG(ctx context.Context, formula string, st *style.Style) ([]byte, error)
}

// VectorRasterizer draws an SVG document to a bitmap.
type VectorRasterizer interface {
	RasterizeSVG(ctx context.Context, svg []byte, st *style.Style) (image.Image, error)
}

// SVGParser reads an SVG document into a displayable vector node.
type SVGParser interface {
	ParseSVG(svg []byte) (*VectorNode, error)
}

const (
	mmToPt          = 72 / 25.4
	latexBaseSize   = 10.0
	defaultFontSize = 20.0
)

// parseFormula returns the glyph outline of formula with its bounding box
// moved to the origin. Units are those of canvas.ParseLaTeX.
func parseFormula(formula string) (p *canvas.Path, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("parse latex: %v", r)
		}
	}()
	p, err = canvas.ParseLaTeX(formula)
	if err != nil {
		return nil, fmt.Errorf("parse latex: %w", err)
	}
	if p == nil || p.Empty() {
		return nil, ErrNoImage
	}
	b := p.Bounds()
	return p.Translate(-b.X0, -b.Y0), nil
}

func pixelRatio(st *style.Style) float64 {
	if st.Math.PixelRatio > 0 {
		return st.Math.PixelRatio
	}
	return 1
}

func vectorScale(st *style.Style) float64 {
	if st.Math.VectorScale > 0 {
		return st.Math.VectorScale
	}
	return 1
}

// draw rasterizes p (already in display points) at the style pixel ratio.
func draw(p *canvas.Path, fill color.Color, ratio float64, topLeft bool) (image.Image, error) {
	b := p.Bounds()
	if b.W() <= 0 || b.H() <= 0 {
		return nil, ErrNoImage
	}
	c := canvas.New(b.X1, b.Y1)
	ctx := canvas.NewContext(c)
	if topLeft {
		ctx.SetCoordSystem(canvas.CartesianIV)
	}
	ctx.SetFillColor(fill)
	ctx.SetStrokeColor(canvas.Transparent)
	ctx.DrawPath(0, 0, p)
	img := rasterizer.Draw(c, canvas.DPMM(ratio), canvas.DefaultColorSpace)
	if img == nil || img.Bounds().Empty() {
		return nil, ErrNoImage
	}
	return img, nil
}

// CanvasRasterizer typesets with canvas.ParseLaTeX and rasterizes the
// outline at Style.Math.FontSize.
type CanvasRasterizer struct{}

func (CanvasRasterizer) Rasterize(ctx context.Context, formula string, st *style.Style) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := parseFormula(formula)
	if err != nil {
		return nil, err
	}
	size := st.Math.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	s := mmToPt * size / latexBaseSize
	return draw(p.Transform(canvas.Identity.Scale(s, s)), st.Colors.MathText, pixelRatio(st), false)
}

// CanvasSVGConverter emits the canvas.ParseLaTeX outline as a single-path
// SVG document with a top-left origin.
type CanvasSVGConverter struct{}

func (CanvasSVGConverter) ConvertSVG(ctx context.Context, formula string, st *style.Style) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := parseFormula(formula)
	if err != nil {
		return nil, err
	}
	b := p.Bounds()
	p = p.Transform(canvas.Identity.Translate(0, b.H()).Scale(1, -1))

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`,
		b.W(), b.H(), b.W(), b.H())
	fmt.Fprintf(&sb, `<path d="%s" fill="%s"/>`, p.ToSVG(), st.Colors.MathText.Hex())
	sb.WriteString(`</svg>`)
	return []byte(sb.String()), nil
}

// CanvasSVGRasterizer parses an SVG document and draws its paths scaled
// by Style.Math.VectorScale.
type CanvasSVGRasterizer struct {
	Parser SVGParser
}

func (r CanvasSVGRasterizer) RasterizeSVG(ctx context.Context, svg []byte, st *style.Style) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parser := r.Parser
	if parser == nil {
		parser = HTMLSVGParser{}
	}
	node, err := parser.ParseSVG(svg)
	if err != nil {
		return nil, err
	}
	s := vectorScale(st)
	all := &canvas.Path{}
	for _, vp := range node.Paths {
		p, err := canvas.ParseSVGPath(vp.D)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVectorParse, err)
		}
		all = all.Append(p.Translate(-node.ViewBox.X, -node.ViewBox.Y))
	}
	if all.Empty() {
		return nil, ErrNoImage
	}
	return draw(all.Transform(canvas.Identity.Scale(s, s)), st.Colors.MathText, pixelRatio(st), true)
}
