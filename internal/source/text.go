package source

import (
	"bufio"
	"io"
	"strings"
)

// TextConverter handles plain text files. Paragraphs separated by blank
// lines become markdown paragraphs with their line breaks kept.
type TextConverter struct{}

func (c *TextConverter) Convert(r io.Reader, filename string) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var md mdBuilder
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			md.block(current.String())
			current.Reset()
			continue
		}
		if current.Len() > 0 {
			// Hard break so wrapped lines survive markdown parsing.
			current.WriteString("  \n")
		}
		current.WriteString(strings.TrimRight(line, " \t"))
	}
	md.block(current.String())

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &Document{Title: title(filename), Markdown: md.String()}, nil
}
