// Package latex renders math formulas through a layered chain of
// backends: cached bitmap, fast rasterizer, vector conversion, then plain
// text.
package latex

import (
	"errors"
	"image"
	"strings"

	"github.com/dgallion1/markchunk/internal/markup"
	"github.com/dgallion1/markchunk/internal/style"
	"github.com/dgallion1/markchunk/internal/textrender"
)

var (
	ErrRendererUnavailable = errors.New("latex renderer unavailable")
	ErrNoImage             = errors.New("latex render produced no image")
	ErrVectorConvert       = errors.New("latex vector conversion failed")
	ErrVectorParse         = errors.New("latex vector parse failed")
)

// Kind says which payload a Result carries.
type Kind int

const (
	KindText Kind = iota
	KindBitmap
	KindVector
)

func (k Kind) String() string {
	switch k {
	case KindBitmap:
		return "bitmap"
	case KindVector:
		return "vector"
	default:
		return "text"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Result is the outcome of rendering one formula. Err records why the
// chain fell back; it is informational and never fatal.
type Result struct {
	Kind    Kind                      `json:"kind"`
	Source  string                    `json:"source"`
	Bitmap  image.Image               `json:"-"`
	Vector  *VectorNode               `json:"vector,omitempty"`
	Text    textrender.AttributedText `json:"text"`
	Layout  *textrender.Layout        `json:"layout,omitempty"`
	Size    style.Size                `json:"size"`
	Cached  bool                      `json:"cached"`
	Err     error                     `json:"-"`
	Message string                    `json:"error,omitempty"`
}

// Normalize strips math markers, one pair of enclosing delimiters and
// surrounding whitespace.
func Normalize(s string) string { return markup.NormalizeMath(s) }

// Literal strips only the math markers, keeping the delimiters the author
// typed.
func Literal(s string) string {
	s = strings.ReplaceAll(s, markup.MathOpen, "")
	s = strings.ReplaceAll(s, markup.MathClose, "")
	return strings.TrimSpace(s)
}

var complexFeatures = []string{
	`\begin{`, `\end{`,
	`\matrix`, `\pmatrix`,
	`\cases`,
	`\align`, `\eqnarray`,
	`\stackrel`, `\overset`,
	`\underset`, `\underbrace`,
	`\xymatrix`,
	`\tikz`,
}

// Complex reports whether a formula should skip the fast rasterizer:
// it uses environments or stacked constructs, or it is long and dense in
// markup characters.
func Complex(formula string) bool {
	for _, f := range complexFeatures {
		if strings.Contains(formula, f) {
			return true
		}
	}
	n := 0
	special := 0
	for _, r := range formula {
		n++
		if strings.ContainsRune(`{}\^_`, r) {
			special++
		}
	}
	return n > 100 && float64(special)/float64(n) > 0.3
}
