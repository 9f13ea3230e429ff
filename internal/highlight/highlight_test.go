package highlight

import (
	"errors"
	"testing"

	"github.com/dgallion1/markchunk/internal/style"
	"github.com/dgallion1/markchunk/internal/textrender"
)

func TestChroma_PreservesText(t *testing.T) {
	st := style.Default()
	code := "def f(x):\n    return x + 1"
	got, err := Chroma{}.Highlight(code, "python", st)
	if err != nil {
		t.Fatalf("highlight: %v", err)
	}
	if got.String() != code {
		t.Errorf("expected text %q, got %q", code, got.String())
	}
	if len(got.Runs()) < 2 {
		t.Errorf("expected several token runs, got %d", len(got.Runs()))
	}
	for _, r := range got.Runs() {
		if !r.Font.Monospace {
			t.Errorf("run %q is not monospace", r.Text)
		}
	}
}

func TestChroma_ColoursKeywords(t *testing.T) {
	st := style.Default()
	got, err := Chroma{}.Highlight("return 1", "python", st)
	if err != nil {
		t.Fatalf("highlight: %v", err)
	}
	var distinct bool
	for _, r := range got.Runs() {
		if r.Color != st.Colors.CodeBlockText {
			distinct = true
		}
	}
	if !distinct {
		t.Error("expected at least one themed colour")
	}
}

func TestChroma_Disabled(t *testing.T) {
	st := style.Default()
	st.CodeBlock.UseHighlight = false
	got, err := Chroma{}.Highlight("x := 1", "go", st)
	if err != nil {
		t.Fatalf("highlight: %v", err)
	}
	if n := len(got.Runs()); n != 1 {
		t.Errorf("expected a single plain run, got %d", n)
	}
}

func TestChroma_UnknownLanguage(t *testing.T) {
	st := style.Default()
	got, err := Chroma{}.Highlight("some words", "no-such-language", st)
	if err != nil {
		t.Fatalf("highlight: %v", err)
	}
	if got.String() != "some words" {
		t.Errorf("unexpected text %q", got.String())
	}
}

type failing struct{}

func (failing) Highlight(string, string, *style.Style) (textrender.AttributedText, error) {
	return textrender.AttributedText{}, errors.New("boom")
}

func TestFallback(t *testing.T) {
	st := style.Default()
	got, err := Fallback{Highlighter: failing{}}.Highlight("a\n", "go", st)
	if err != nil {
		t.Fatalf("fallback must not fail: %v", err)
	}
	if got.String() != "a" {
		t.Errorf("expected plain text, got %q", got.String())
	}
}
