package source

import (
	"strings"
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.txt", "*source.TextConverter"},
		{"a.MD", "*source.MarkdownConverter"},
		{"a.markdown", "*source.MarkdownConverter"},
		{"a.csv", "*source.CSVConverter"},
		{"a.htm", "*source.HTMLConverter"},
		{"a.pdf", "*source.PDFConverter"},
		{"a.docx", "*source.DOCXConverter"},
	}
	for _, tt := range tests {
		c, err := ForFile(tt.name, Options{})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if got := typeName(c); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
		if !IsSupportedExtension(tt.name) {
			t.Errorf("%s: expected supported", tt.name)
		}
	}

	if _, err := ForFile("a.exe", Options{}); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if IsSupportedExtension("a.exe") {
		t.Error("expected .exe to be unsupported")
	}
}

func typeName(c Converter) string {
	switch c.(type) {
	case *TextConverter:
		return "*source.TextConverter"
	case *MarkdownConverter:
		return "*source.MarkdownConverter"
	case *CSVConverter:
		return "*source.CSVConverter"
	case *HTMLConverter:
		return "*source.HTMLConverter"
	case *PDFConverter:
		return "*source.PDFConverter"
	case *DOCXConverter:
		return "*source.DOCXConverter"
	}
	return "unknown"
}

func TestMarkdownConverter_PassThrough(t *testing.T) {
	input := "# API Reference\n\nSome intro.\n\n```\nGET /api/users\n```\n"
	doc, err := (&MarkdownConverter{}).Convert(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Markdown != input {
		t.Errorf("expected markdown unchanged, got %q", doc.Markdown)
	}
	if doc.Title != "API Reference" {
		t.Errorf("expected title from h1, got %q", doc.Title)
	}

	doc, err = (&MarkdownConverter{}).Convert(strings.NewReader("## only h2"), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "plain" {
		t.Errorf("expected filename title, got %q", doc.Title)
	}
}

func TestCSVConverter_Batches(t *testing.T) {
	var b strings.Builder
	b.WriteString("name,qty\n")
	for i := range 25 {
		b.WriteString("item")
		b.WriteString(strings.Repeat("x", i%3))
		b.WriteString(",1\n")
	}
	doc, err := (&CSVConverter{}).Convert(strings.NewReader(b.String()), "stock.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc.Markdown, "## Rows 2-21") || !strings.Contains(doc.Markdown, "## Rows 22-26") {
		t.Errorf("expected two batch headings, got %q", doc.Markdown)
	}
	if got := strings.Count(doc.Markdown, "| name | qty |"); got != 2 {
		t.Errorf("expected header repeated per batch, got %d", got)
	}
}

func TestCSVConverter_HeaderOnlyAndEscaping(t *testing.T) {
	doc, err := (&CSVConverter{}).Convert(strings.NewReader("a|b,c\n"), "h.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "| a\\|b | c |\n| --- | --- |\n"
	if doc.Markdown != want {
		t.Errorf("expected %q, got %q", want, doc.Markdown)
	}
}

func TestHTMLConverter(t *testing.T) {
	input := `<html><head><title>Guide</title><script>var x;</script></head><body>
<nav>skip me</nav>
<h1>Intro</h1>
<p>Hello <strong>bold</strong> and <a href="http://x">link</a>.</p>
<pre><code class="language-go">fmt.Println(1)</code></pre>
<ul><li>one</li><li>two<ul><li>nested</li></ul></li></ul>
<table><tr><th>k</th><th>v</th></tr><tr><td>a</td><td>1</td></tr></table>
<hr>
<blockquote><p>quoted</p></blockquote>
<img src="http://x/y.png" alt="pic">
</body></html>`
	doc, err := (&HTMLConverter{}).Convert(strings.NewReader(input), "guide.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Guide" {
		t.Errorf("expected title %q, got %q", "Guide", doc.Title)
	}
	for _, want := range []string{
		"# Intro",
		"Hello **bold** and [link](http://x).",
		"```go\nfmt.Println(1)\n```",
		"- one\n- two\n  - nested",
		"| k | v |\n| --- | --- |\n| a | 1 |",
		"\n---\n",
		"> quoted",
		"![pic](http://x/y.png)",
	} {
		if !strings.Contains(doc.Markdown, want) {
			t.Errorf("expected %q in\n%s", want, doc.Markdown)
		}
	}
	if strings.Contains(doc.Markdown, "skip me") || strings.Contains(doc.Markdown, "var x") {
		t.Errorf("expected nav and script dropped, got %q", doc.Markdown)
	}
}

func TestPagesMarkdown(t *testing.T) {
	got := pagesMarkdown("first line\nsame para\n\n# not heading\f\fsecond page")
	want := "first line same para\n\n\\# not heading\n\n---\n\nsecond page\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
