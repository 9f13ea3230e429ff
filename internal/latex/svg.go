package latex

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/markchunk/internal/style"
	"github.com/tdewolff/canvas"
	"golang.org/x/net/html"
)

// ViewBox is an SVG user-space rectangle.
type ViewBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// VectorPath is one filled outline in SVG path syntax.
type VectorPath struct {
	D    string      `json:"d"`
	Fill style.Color `json:"fill"`
}

// VectorNode is a parsed SVG formula ready for a vector-capable display.
// Size is filled in by the renderer.
type VectorNode struct {
	ViewBox ViewBox      `json:"view_box"`
	Paths   []VectorPath `json:"paths"`
	Size    style.Size   `json:"size"`
}

// HTMLSVGParser reads the svg root and its path elements with the
// golang.org/x/net/html tokenizer. Groups and transforms are flattened
// away; only path data and fill colours are kept.
type HTMLSVGParser struct{}

func (HTMLSVGParser) ParseSVG(svg []byte) (*VectorNode, error) {
	z := html.NewTokenizer(bytes.NewReader(svg))
	node := &VectorNode{}
	var sawRoot, haveViewBox bool
	var width, height float64
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrVectorParse, z.Err())
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		attrs := map[string]string{}
		for hasAttr {
			var k, v []byte
			k, v, hasAttr = z.TagAttr()
			attrs[strings.ToLower(string(k))] = string(v)
		}
		switch string(name) {
		case "svg":
			if sawRoot {
				continue
			}
			sawRoot = true
			if vb, ok := parseViewBox(attrs["viewbox"]); ok {
				node.ViewBox = vb
				haveViewBox = true
			}
			width = parseLength(attrs["width"])
			height = parseLength(attrs["height"])
		case "path":
			d := strings.TrimSpace(attrs["d"])
			if d == "" {
				continue
			}
			fill := style.Color{A: 0xff}
			if c, err := style.ParseHex(attrs["fill"]); err == nil {
				fill = c
			}
			node.Paths = append(node.Paths, VectorPath{D: d, Fill: fill})
		}
	}
	if !sawRoot {
		return nil, fmt.Errorf("%w: no svg element", ErrVectorParse)
	}
	if len(node.Paths) == 0 {
		return nil, fmt.Errorf("%w: no paths", ErrVectorParse)
	}
	if !haveViewBox {
		if width > 0 && height > 0 {
			node.ViewBox = ViewBox{Width: width, Height: height}
		} else {
			vb, err := pathBounds(node.Paths)
			if err != nil {
				return nil, err
			}
			node.ViewBox = vb
		}
	}
	if node.ViewBox.Width <= 0 || node.ViewBox.Height <= 0 {
		return nil, fmt.Errorf("%w: empty bounds", ErrVectorParse)
	}
	return node, nil
}

func pathBounds(paths []VectorPath) (ViewBox, error) {
	all := &canvas.Path{}
	for _, vp := range paths {
		p, err := canvas.ParseSVGPath(vp.D)
		if err != nil {
			return ViewBox{}, fmt.Errorf("%w: %v", ErrVectorParse, err)
		}
		all = all.Append(p)
	}
	b := all.Bounds()
	return ViewBox{X: b.X0, Y: b.Y0, Width: b.W(), Height: b.H()}, nil
}

func parseViewBox(s string) (ViewBox, bool) {
	f := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	if len(f) != 4 {
		return ViewBox{}, false
	}
	var v [4]float64
	for i, p := range f {
		n, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return ViewBox{}, false
		}
		v[i] = n
	}
	return ViewBox{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, true
}

// parseLength reads a plain or px/pt/ex suffixed number; other units yield 0.
func parseLength(s string) float64 {
	s = strings.TrimSpace(s)
	for _, unit := range []string{"px", "pt", "ex"} {
		s = strings.TrimSuffix(s, unit)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
