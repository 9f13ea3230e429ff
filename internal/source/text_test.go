package source

import (
	"strings"
	"testing"
)

func TestTextConverter_BasicParagraphSplitting(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	c := &TextConverter{}
	doc, err := c.Convert(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", doc.Title)
	}
	want := "First paragraph line one.  \nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph.\n"
	if doc.Markdown != want {
		t.Errorf("expected %q, got %q", want, doc.Markdown)
	}
}

func TestTextConverter_EmptyInput(t *testing.T) {
	c := &TextConverter{}
	doc, err := c.Convert(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "empty" {
		t.Errorf("expected title %q, got %q", "empty", doc.Title)
	}
	if doc.Markdown != "" {
		t.Errorf("expected empty markdown, got %q", doc.Markdown)
	}
}

func TestTextConverter_BlankLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"multiple blank lines", "Para one.\n\n\n\nPara two."},
		{"whitespace only line", "Para one.\n   \nPara two."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := (&TextConverter{}).Convert(strings.NewReader(tt.input), "gaps.txt")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if doc.Markdown != "Para one.\n\nPara two.\n" {
				t.Errorf("unexpected markdown %q", doc.Markdown)
			}
		})
	}
}
