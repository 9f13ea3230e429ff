package source

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Document is an uploaded file rewritten as markdown.
type Document struct {
	Title    string `json:"title"`
	Markdown string `json:"-"`
}

// Converter turns raw document bytes into markdown source.
type Converter interface {
	Convert(r io.Reader, filename string) (*Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Options tune converters that shell out or touch the filesystem.
type Options struct {
	PDFFallbackPdftotext bool
}

// ForFile returns the converter for a filename.
func ForFile(filename string, opts Options) (Converter, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextConverter{}, nil
	case ".md", ".markdown":
		return &MarkdownConverter{}, nil
	case ".csv":
		return &CSVConverter{}, nil
	case ".html", ".htm":
		return &HTMLConverter{}, nil
	case ".pdf":
		return &PDFConverter{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXConverter{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

func title(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// mdBuilder joins blocks with a blank line.
type mdBuilder struct {
	b strings.Builder
}

func (m *mdBuilder) block(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if m.b.Len() > 0 {
		m.b.WriteString("\n\n")
	}
	m.b.WriteString(s)
}

func (m *mdBuilder) heading(level int, s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	m.block(strings.Repeat("#", min(max(level, 1), 6)) + " " + s)
}

func (m *mdBuilder) String() string {
	if m.b.Len() == 0 {
		return ""
	}
	return m.b.String() + "\n"
}

// tableMarkdown renders a GFM table. Rows shorter than the header are
// padded; pipes inside cells are escaped.
func tableMarkdown(header []string, rows [][]string) string {
	cols := len(header)
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return ""
	}
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := range cols {
			var c string
			if i < len(cells) {
				c = cells[i]
			}
			b.WriteString(" " + escapeCell(c) + " |")
		}
		b.WriteString("\n")
	}
	writeRow(header)
	b.WriteString("|")
	for range cols {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows {
		writeRow(r)
	}
	return strings.TrimRight(b.String(), "\n")
}

func escapeCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
