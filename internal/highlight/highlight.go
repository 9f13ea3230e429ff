// Package highlight turns code into attributed text using chroma lexers and
// themes.
package highlight

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/dgallion1/markchunk/internal/style"
	"github.com/dgallion1/markchunk/internal/textrender"
)

// Highlighter renders source code in a language to attributed text.
type Highlighter interface {
	Highlight(code, lang string, st *style.Style) (textrender.AttributedText, error)
}

// Plain renders code in the code block font and colour with no tokens.
type Plain struct{}

func (Plain) Highlight(code, _ string, st *style.Style) (textrender.AttributedText, error) {
	return textrender.Plain(code, st.CodeBlock.Font, st.Colors.CodeBlockText), nil
}

// Chroma highlights with chroma. Unknown languages use the fallback lexer
// and unknown themes the fallback style.
type Chroma struct{}

func (Chroma) Highlight(code, lang string, st *style.Style) (textrender.AttributedText, error) {
	if !st.CodeBlock.UseHighlight {
		return Plain{}.Highlight(code, lang, st)
	}
	lexer := lexers.Get(strings.ToLower(strings.TrimSpace(lang)))
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	theme := styles.Get(st.CodeBlock.Theme)
	if theme == nil {
		theme = styles.Fallback
	}

	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return textrender.AttributedText{}, fmt.Errorf("tokenise %s: %w", lang, err)
	}

	base := st.CodeBlock.Font
	var out textrender.AttributedText
	for tok := it(); tok != chroma.EOF; tok = it() {
		entry := theme.Get(tok.Type)
		font := base
		if entry.Bold == chroma.Yes {
			font = font.WithBold()
		}
		if entry.Italic == chroma.Yes {
			font = font.WithItalic()
		}
		color := st.Colors.CodeBlockText
		if entry.Colour.IsSet() {
			color = style.Color{R: entry.Colour.Red(), G: entry.Colour.Green(), B: entry.Colour.Blue(), A: 0xff}
		}
		out.AppendRun(textrender.Run{Text: tok.Value, Font: font, Color: color})
	}
	return out.TrimTrailingNewlines(), nil
}

// Fallback wraps a Highlighter so failures degrade to plain text.
type Fallback struct {
	Highlighter Highlighter
}

func (f Fallback) Highlight(code, lang string, st *style.Style) (textrender.AttributedText, error) {
	h := f.Highlighter
	if h == nil {
		h = Chroma{}
	}
	t, err := h.Highlight(code, lang, st)
	if err != nil || t.String() != strings.TrimRight(code, "\n") {
		return Plain{}.Highlight(strings.TrimRight(code, "\n"), lang, st)
	}
	return t, nil
}
