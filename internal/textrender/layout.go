package textrender

import (
	"math"
	"strings"

	"github.com/dgallion1/markchunk/internal/style"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

// Line is one laid-out visual line.
type Line struct {
	Text   string  `json:"text"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Layout is measured text: its wrapped lines and bounding size.
type Layout struct {
	Lines []Line     `json:"lines,omitempty"`
	Size  style.Size `json:"size"`
}

// Measurer lays out attributed text inside a maximum width.
type Measurer interface {
	Measure(t AttributedText, maxWidth float64) Layout
}

const (
	DefaultLineSpacing  = 1.25
	DefaultAdvanceRatio = 0.5
	fallbackFontSize    = 16
)

// span is the part of a run that falls on one hard line.
type span struct {
	text string
	run  int
}

// hardLine is the text between two explicit line feeds.
type hardLine struct {
	spans    []span
	fontSize float64
}

func (h hardLine) text() string {
	var b strings.Builder
	for _, s := range h.spans {
		b.WriteString(s.text)
	}
	return b.String()
}

// splitHardLines breaks runs at line feeds. A trailing line feed does not
// open an empty final line.
func splitHardLines(runs []Run) []hardLine {
	lines := []hardLine{{}}
	for i, r := range runs {
		parts := strings.Split(r.Text, "\n")
		for j, p := range parts {
			if j > 0 {
				lines = append(lines, hardLine{})
			}
			cur := &lines[len(lines)-1]
			if r.Font.Size > cur.fontSize {
				cur.fontSize = r.Font.Size
			}
			if p != "" {
				cur.spans = append(cur.spans, span{text: p, run: i})
			}
		}
	}
	if n := len(lines); n > 1 && len(lines[n-1].spans) == 0 {
		lines = lines[:n-1]
	}
	for i := range lines {
		if lines[i].fontSize <= 0 {
			lines[i].fontSize = fallbackFontSize
		}
	}
	return lines
}

// GridMeasurer treats every glyph as a fixed fraction of its font size and
// wraps on word boundaries. It needs no fonts and gives the same answer on
// every host.
type GridMeasurer struct {
	AdvanceRatio float64 // glyph advance as a fraction of font size
	LineSpacing  float64 // line height as a multiple of font size
}

// NewGridMeasurer returns a GridMeasurer with default ratios.
func NewGridMeasurer() *GridMeasurer {
	return &GridMeasurer{AdvanceRatio: DefaultAdvanceRatio, LineSpacing: DefaultLineSpacing}
}

func (g *GridMeasurer) Measure(t AttributedText, maxWidth float64) Layout {
	if t.IsEmpty() {
		return Layout{}
	}
	ratio := g.AdvanceRatio
	if ratio <= 0 {
		ratio = DefaultAdvanceRatio
	}
	spacing := g.LineSpacing
	if spacing <= 0 {
		spacing = DefaultLineSpacing
	}

	var out Layout
	for _, hl := range splitHardLines(t.runs) {
		advance := hl.fontSize * ratio
		height := hl.fontSize * spacing
		text := hl.text()
		cols := math.MaxInt32
		if maxWidth > 0 {
			cols = max(1, int(maxWidth/advance))
		}
		if text != "" && runewidth.StringWidth(text) > cols {
			text = wrap.String(wordwrap.String(text, cols), cols)
		}
		for _, l := range strings.Split(text, "\n") {
			l = strings.TrimRight(l, " ")
			w := float64(runewidth.StringWidth(l)) * advance
			out.Lines = append(out.Lines, Line{Text: l, Width: w, Height: height})
			out.Size.Width = math.Max(out.Size.Width, w)
			out.Size.Height += height
		}
	}
	return out
}
