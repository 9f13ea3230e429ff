package textrender

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/dgallion1/markchunk/internal/style"
	"github.com/tdewolff/canvas"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
)

const mmToPt = 72 / 25.4

// CanvasMeasurer measures text with real glyph advances from the Go font
// family, wrapping greedily at whitespace and splitting words that do not
// fit on a line of their own.
type CanvasMeasurer struct {
	LineSpacing float64

	loadOnce sync.Once
	loadErr  error
	sans     *canvas.FontFamily
	mono     *canvas.FontFamily

	mu    sync.Mutex
	faces map[faceKey]*canvas.FontFace
}

type faceKey struct {
	mono  bool
	style canvas.FontStyle
	size  float64
}

// NewCanvasMeasurer loads the embedded fonts.
func NewCanvasMeasurer() (*CanvasMeasurer, error) {
	m := &CanvasMeasurer{LineSpacing: DefaultLineSpacing, faces: make(map[faceKey]*canvas.FontFace)}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CanvasMeasurer) load() error {
	m.loadOnce.Do(func() {
		m.sans, m.loadErr = loadFamily("Go", map[canvas.FontStyle][]byte{
			canvas.FontRegular:                  goregular.TTF,
			canvas.FontBold:                     gobold.TTF,
			canvas.FontItalic:                   goitalic.TTF,
			canvas.FontBold | canvas.FontItalic: gobolditalic.TTF,
		})
		if m.loadErr != nil {
			return
		}
		m.mono, m.loadErr = loadFamily("Go Mono", map[canvas.FontStyle][]byte{
			canvas.FontRegular:                  gomono.TTF,
			canvas.FontBold:                     gomonobold.TTF,
			canvas.FontItalic:                   gomonoitalic.TTF,
			canvas.FontBold | canvas.FontItalic: gomonobolditalic.TTF,
		})
	})
	return m.loadErr
}

func loadFamily(name string, styles map[canvas.FontStyle][]byte) (*canvas.FontFamily, error) {
	family := canvas.NewFontFamily(name)
	for st, data := range styles {
		if err := family.LoadFont(data, 0, st); err != nil {
			return nil, fmt.Errorf("load font %s (%d): %w", name, st, err)
		}
	}
	return family, nil
}

func (m *CanvasMeasurer) face(f style.Font) *canvas.FontFace {
	st := canvas.FontRegular
	if f.Bold {
		st = canvas.FontBold
	}
	if f.Italic {
		st |= canvas.FontItalic
	}
	size := f.Size
	if size <= 0 {
		size = fallbackFontSize
	}
	key := faceKey{mono: f.Monospace, style: st, size: size}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.faces == nil {
		m.faces = make(map[faceKey]*canvas.FontFace)
	}
	if face, ok := m.faces[key]; ok {
		return face
	}
	family := m.sans
	if f.Monospace {
		family = m.mono
	}
	face := family.Face(size, canvas.Black, st, canvas.FontNormal)
	m.faces[key] = face
	return face
}

// token is a word or whitespace run measured with a single face.
type token struct {
	text  string
	face  *canvas.FontFace
	width float64
	space bool
}

func (m *CanvasMeasurer) Measure(t AttributedText, maxWidth float64) Layout {
	if t.IsEmpty() {
		return Layout{}
	}
	if err := m.load(); err != nil {
		return (&GridMeasurer{LineSpacing: m.LineSpacing}).Measure(t, maxWidth)
	}
	spacing := m.LineSpacing
	if spacing <= 0 {
		spacing = DefaultLineSpacing
	}
	limit := maxWidth
	if limit <= 0 {
		limit = math.MaxFloat64
	}

	var out Layout
	for _, hl := range splitHardLines(t.runs) {
		height := hl.fontSize * spacing
		var toks []token
		for _, sp := range hl.spans {
			face := m.face(t.runs[sp.run].Font)
			for _, s := range tokenize(sp.text) {
				toks = append(toks, token{
					text:  s,
					face:  face,
					width: face.TextWidth(s) * mmToPt,
					space: strings.TrimSpace(s) == "",
				})
			}
		}
		for _, l := range greedyWrap(toks, limit) {
			out.Lines = append(out.Lines, Line{Text: l.Text, Width: l.Width, Height: height})
			out.Size.Width = math.Max(out.Size.Width, l.Width)
			out.Size.Height += height
		}
	}
	return out
}

func greedyWrap(toks []token, limit float64) []Line {
	var lines []Line
	var b strings.Builder
	width := 0.0
	emit := func() {
		lines = append(lines, Line{Text: strings.TrimRight(b.String(), " "), Width: width})
		b.Reset()
		width = 0
	}
	for _, tk := range toks {
		if width > 0 && width+tk.width > limit {
			emit()
			if tk.space {
				continue
			}
		}
		if tk.width <= limit {
			b.WriteString(tk.text)
			width += tk.width
			continue
		}
		for _, part := range splitByWidth(tk, limit) {
			pw := part.face.TextWidth(part.text) * mmToPt
			if width > 0 && width+pw > limit {
				emit()
			}
			b.WriteString(part.text)
			width += pw
		}
	}
	if b.Len() > 0 || len(lines) == 0 {
		emit()
	}
	return lines
}

func splitByWidth(tk token, limit float64) []token {
	var parts []token
	var b strings.Builder
	for _, r := range tk.text {
		b.WriteRune(r)
		if tk.face.TextWidth(b.String())*mmToPt > limit && b.Len() > len(string(r)) {
			s := b.String()
			parts = append(parts, token{text: s[:len(s)-len(string(r))], face: tk.face})
			b.Reset()
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		parts = append(parts, token{text: b.String(), face: tk.face})
	}
	return parts
}

// tokenize splits s into alternating word and whitespace tokens.
func tokenize(s string) []string {
	var toks []string
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == '\r' {
			continue
		}
		sp := unicode.IsSpace(r)
		if b.Len() > 0 && sp != lastSpace {
			toks = append(toks, b.String())
			b.Reset()
		}
		lastSpace = sp
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		toks = append(toks, b.String())
	}
	return toks
}
