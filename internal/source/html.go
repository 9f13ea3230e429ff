package source

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// HTMLConverter handles HTML files. Block elements map to their markdown
// counterparts; navigation and script content is dropped.
type HTMLConverter struct{}

func (c *HTMLConverter) Convert(r io.Reader, filename string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := &Document{Title: title(filename)}
	if t := findTitle(root); t != "" {
		doc.Title = t
	}

	var md mdBuilder
	start := findElement(root, "body")
	if start == nil {
		start = root
	}
	htmlBlocks(&md, start)
	doc.Markdown = md.String()
	return doc, nil
}

func htmlBlocks(md *mdBuilder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		htmlBlock(md, c)
	}
}

func htmlBlock(md *mdBuilder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		md.block(collapse(n.Data))
		return
	case html.ElementNode:
	default:
		htmlBlocks(md, n)
		return
	}

	if level := headingLevel(n.Data); level > 0 {
		md.heading(level, inlineText(n))
		return
	}
	switch n.Data {
	case "script", "style", "nav", "footer", "header", "noscript", "template":
	case "p":
		md.block(inlineText(n))
	case "pre":
		md.block(fence(textContent(n), codeLanguage(n)))
	case "blockquote":
		var inner mdBuilder
		htmlBlocks(&inner, n)
		md.block(quote(inner.String()))
	case "ul", "ol":
		md.block(list(n, 0))
	case "table":
		header, rows := tableCells(n)
		md.block(tableMarkdown(header, rows))
	case "hr":
		md.block("---")
	case "img":
		md.block(image(n))
	case "a", "b", "strong", "i", "em", "code", "span", "sup", "del", "s":
		md.block(renderInline(n))
	default:
		htmlBlocks(md, n)
	}
}

// inlineText renders the inline content of n as markdown on one line.
func inlineText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
		default:
			return
		}
		wrap := func(mark string) {
			inner := strings.TrimSpace(inlineText(n))
			if inner != "" {
				b.WriteString(mark + inner + mark)
			}
		}
		switch n.Data {
		case "script", "style":
		case "strong", "b":
			wrap("**")
		case "em", "i":
			wrap("*")
		case "del", "s":
			wrap("~~")
		case "code":
			wrap("`")
		case "br":
			b.WriteString("<br>")
		case "sup":
			b.WriteString("<sup>" + strings.TrimSpace(inlineText(n)) + "</sup>")
		case "a":
			label := strings.TrimSpace(inlineText(n))
			if href := attr(n, "href"); href != "" && label != "" {
				b.WriteString("[" + label + "](" + href + ")")
			} else {
				b.WriteString(label)
			}
		case "img":
			b.WriteString(image(n))
		default:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return collapse(b.String())
}

func image(n *html.Node) string {
	src := attr(n, "src")
	if src == "" {
		return ""
	}
	return "![" + attr(n, "alt") + "](" + src + ")"
}

func list(n *html.Node, depth int) string {
	var lines []string
	num := 1
	if s, err := strconv.Atoi(attr(n, "start")); err == nil {
		num = s
	}
	indent := strings.Repeat("  ", depth)
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		marker := "- "
		if n.Data == "ol" {
			marker = strconv.Itoa(num) + ". "
			num++
		}
		var text strings.Builder
		var nested []string
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
				nested = append(nested, list(c, depth+1))
				continue
			}
			text.WriteString(renderInline(c))
		}
		lines = append(lines, indent+marker+collapse(text.String()))
		lines = append(lines, nested...)
	}
	return strings.Join(lines, "\n")
}

// renderInline renders a single node as inline markdown.
func renderInline(n *html.Node) string {
	wrapper := &html.Node{Type: html.ElementNode, Data: "span"}
	clone := *n
	clone.Parent, clone.PrevSibling, clone.NextSibling = nil, nil, nil
	wrapper.FirstChild, wrapper.LastChild = &clone, &clone
	return " " + inlineText(wrapper) + " "
}

func tableCells(t *html.Node) ([]string, [][]string) {
	var header []string
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			th := false
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
					continue
				}
				th = th || c.Data == "th"
				cells = append(cells, inlineText(c))
			}
			if header == nil && (th || len(rows) == 0) {
				header = cells
			} else {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(t)
	return header, rows
}

func fence(code, lang string) string {
	code = strings.Trim(code, "\n")
	if code == "" {
		return ""
	}
	marker := "```"
	for strings.Contains(code, marker) {
		marker += "`"
	}
	return marker + lang + "\n" + code + "\n" + marker
}

func codeLanguage(pre *html.Node) string {
	for _, n := range []*html.Node{pre, findElement(pre, "code")} {
		if n == nil {
			continue
		}
		for _, class := range strings.Fields(attr(n, "class")) {
			if lang, ok := strings.CutPrefix(class, "language-"); ok {
				return lang
			}
		}
	}
	return ""
}

func quote(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight("> "+l, " ")
	}
	return strings.Join(lines, "\n")
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// collapse folds whitespace runs to single spaces, keeping <br> line
// breaks as markdown hard breaks.
func collapse(s string) string {
	parts := strings.Split(s, "<br>")
	for i, p := range parts {
		parts[i] = strings.Join(strings.Fields(p), " ")
	}
	return strings.TrimSpace(strings.Join(parts, "  \n"))
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if t := findElement(n, "title"); t != nil {
		return strings.TrimSpace(textContent(t))
	}
	return ""
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if e := findElement(c, tag); e != nil {
			return e
		}
	}
	return nil
}
