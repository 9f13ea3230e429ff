package textrender

import (
	"strings"
	"testing"

	"github.com/dgallion1/markchunk/internal/markup"
	"github.com/dgallion1/markchunk/internal/style"
)

func visitAll(t *testing.T, v *Visitor, src string) AttributedText {
	t.Helper()
	doc := markup.NewParser().ParseString(src)
	var out AttributedText
	for _, b := range doc.Blocks {
		out.Append(v.Visit(b))
	}
	return out
}

func TestVisitor_ParagraphsJoinWithNewline(t *testing.T) {
	v := &Visitor{Style: style.Default()}
	got := visitAll(t, v, "hello\n\nworld").String()
	if got != "hello\nworld" {
		t.Errorf("expected %q, got %q", "hello\nworld", got)
	}
}

func TestVisitor_InlineAttributes(t *testing.T) {
	st := style.Default()
	v := &Visitor{Style: st}
	text := visitAll(t, v, "a *b* **c** `d` [e](http://x)")

	runs := text.Runs()
	find := func(s string) Run {
		for _, r := range runs {
			if r.Text == s {
				return r
			}
		}
		t.Fatalf("run %q not found in %+v", s, runs)
		return Run{}
	}
	if !find("b").Font.Italic {
		t.Error("expected emphasis to be italic")
	}
	if !find("c").Font.Bold {
		t.Error("expected strong to be bold")
	}
	d := find("d")
	if !d.Font.Monospace || d.Background == nil {
		t.Error("expected inline code to be monospace with a background")
	}
	if e := find("e"); e.Link != "http://x" || e.Color != st.Colors.Link {
		t.Errorf("expected link run, got %+v", e)
	}
}

func TestVisitor_HeadingFont(t *testing.T) {
	st := style.Default()
	v := &Visitor{Style: st}
	text := visitAll(t, v, "## Title")
	runs := text.Runs()
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Font != st.Fonts.Heading(2) {
		t.Errorf("expected h2 font, got %+v", runs[0].Font)
	}
}

func TestVisitor_Lists(t *testing.T) {
	v := &Visitor{Style: style.Default()}
	got := visitAll(t, v, "- one\n- two\n\n3. three\n4. four").String()
	want := "• one\n• two\n3. three\n4. four"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestVisitor_InlineMathKeepsSource(t *testing.T) {
	v := &Visitor{Style: style.Default()}
	got := visitAll(t, v, "area is $a_1 * b_2$ units").String()
	if !strings.Contains(got, "a_1 * b_2") {
		t.Errorf("expected raw formula in %q", got)
	}
	if strings.Contains(got, "LaTex") || strings.Contains(got, "$") {
		t.Errorf("expected markers and delimiters stripped, got %q", got)
	}
}

func TestVisitor_References(t *testing.T) {
	refs := ReferenceMap{"1": {Title: "Go Blog", URL: "https://go.dev/blog"}}
	v := &Visitor{Style: style.Default(), References: refs}
	text := visitAll(t, v, "see<sup>1</sup> and<sup>2</sup>")

	var resolved, unresolved bool
	for _, r := range text.Runs() {
		if r.Text == "[Go Blog]" && r.Link == "https://go.dev/blog" && r.Superscript {
			resolved = true
		}
		if r.Text == "[2]" && r.Link == "" {
			unresolved = true
		}
	}
	if !resolved || !unresolved {
		t.Errorf("unexpected reference runs: %+v", text.Runs())
	}
}

func TestVisitor_Footnotes(t *testing.T) {
	v := &Visitor{Style: style.Default()}
	got := visitAll(t, v, "claim[^n]\n\n[^n]: source").String()
	if !strings.Contains(got, "claim[1]") {
		t.Errorf("expected footnote marker, got %q", got)
	}
	if !strings.Contains(got, "[1] source") {
		t.Errorf("expected footnote body, got %q", got)
	}
}

type recordingPrefetcher struct{ srcs []string }

func (r *recordingPrefetcher) Prefetch(src string) { r.srcs = append(r.srcs, src) }

func TestVisitor_InlineImagePrefetch(t *testing.T) {
	pf := &recordingPrefetcher{}
	v := &Visitor{Style: style.Default(), Images: pf}
	got := visitAll(t, v, "logo ![Go](http://x/go.png) here").String()
	if got != "logo [Go] here" {
		t.Errorf("expected image placeholder, got %q", got)
	}
	if len(pf.srcs) != 1 || pf.srcs[0] != "http://x/go.png" {
		t.Errorf("expected prefetch of image, got %v", pf.srcs)
	}
}

func TestAttributedText_Append(t *testing.T) {
	st := style.Default()
	a := Plain("héllo", st.Fonts.Body, st.Colors.Text)
	snapshot := a
	a.Append(Plain(" wörld", st.Fonts.Body, st.Colors.Text))

	if a.Len() != 11 {
		t.Errorf("expected 11 runes, got %d", a.Len())
	}
	if snapshot.String() != "héllo" {
		t.Errorf("earlier copy must be unaffected, got %q", snapshot.String())
	}
	if !Plain("x\n\n", st.Fonts.Body, st.Colors.Text).EndsWithNewline() {
		t.Error("expected trailing newline")
	}
	if got := Plain("x\n\n", st.Fonts.Body, st.Colors.Text).TrimTrailingNewlines().String(); got != "x" {
		t.Errorf("expected %q, got %q", "x", got)
	}
}

func TestGridMeasurer(t *testing.T) {
	st := style.Default()
	m := NewGridMeasurer()

	single := m.Measure(Plain("hello", st.Fonts.Body, st.Colors.Text), 335)
	if len(single.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(single.Lines))
	}
	if single.Size.Width != 45 || single.Size.Height != 22.5 {
		t.Errorf("expected 45x22.5, got %vx%v", single.Size.Width, single.Size.Height)
	}

	long := m.Measure(Plain(strings.Repeat("word ", 40), st.Fonts.Body, st.Colors.Text), 100)
	if len(long.Lines) < 2 {
		t.Fatalf("expected wrapping, got %d lines", len(long.Lines))
	}
	for _, l := range long.Lines {
		if l.Width > 100 {
			t.Errorf("line %q exceeds max width: %v", l.Text, l.Width)
		}
	}

	two := m.Measure(Plain("a\nb", st.Fonts.Body, st.Colors.Text), 335)
	if len(two.Lines) != 2 {
		t.Errorf("expected explicit line feed to break, got %d lines", len(two.Lines))
	}

	if !m.Measure(AttributedText{}, 100).Size.IsZero() {
		t.Error("expected empty text to measure zero")
	}
}

func TestCanvasMeasurer(t *testing.T) {
	m, err := NewCanvasMeasurer()
	if err != nil {
		t.Fatalf("load fonts: %v", err)
	}
	st := style.Default()

	short := m.Measure(Plain("hi", st.Fonts.Body, st.Colors.Text), 335)
	wide := m.Measure(Plain("hi there, a longer line", st.Fonts.Body, st.Colors.Text), 335)
	if short.Size.Width <= 0 || wide.Size.Width <= short.Size.Width {
		t.Errorf("expected longer text to be wider: %v vs %v", short.Size.Width, wide.Size.Width)
	}

	wrapped := m.Measure(Plain(strings.Repeat("lorem ipsum ", 30), st.Fonts.Body, st.Colors.Text), 200)
	if len(wrapped.Lines) < 2 {
		t.Fatalf("expected wrapping, got %d lines", len(wrapped.Lines))
	}
	for _, l := range wrapped.Lines {
		if l.Width > 200+0.001 {
			t.Errorf("line %q exceeds width: %v", l.Text, l.Width)
		}
	}

	unbroken := m.Measure(Plain(strings.Repeat("x", 200), st.Fonts.Body, st.Colors.Text), 100)
	if len(unbroken.Lines) < 2 {
		t.Errorf("expected long word to be split, got %d lines", len(unbroken.Lines))
	}
}
