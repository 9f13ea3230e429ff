package markup

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Math markers bracket a LaTeX formula as inline HTML so it survives
// markdown parsing untouched.
const (
	MathOpen  = "<LaTex>"
	MathClose = "</LaTex>"
)

const (
	// maxMathRunes skips suspiciously large matches, usually a stray dollar.
	maxMathRunes = 3000
	// blockMathRunes is the length above which a formula gets its own paragraph.
	blockMathRunes = 30
)

var fenceGlue = regexp.MustCompile("([^\\s`])```")

var mathPattern = regexp.MustCompile(`\$\$([\s\S]*?)\$\$|\$([\s\S]*?)\$|\\\[([\s\S]*?)\\\]|\\\(([\s\S]*?)\\\)`)

// Rewriter rewrites markdown source before it is parsed.
type Rewriter func(string) string

// DefaultRewriters returns the standard rewrite chain in application order.
func DefaultRewriters() []Rewriter {
	return []Rewriter{WrapMath, SeparateFences, ExpandImageTags}
}

// Preprocess applies rw in order.
func Preprocess(src string, rw ...Rewriter) string {
	for _, f := range rw {
		src = f(src)
	}
	return src
}

// WrapMath brackets $$..$$, $..$, \[..\] and \(..\) with the math markers.
// Multi-line or long formulas are moved onto their own paragraph. Fenced
// code is left alone.
func WrapMath(src string) string {
	if !strings.ContainsAny(src, `$\`) {
		return src
	}
	var out strings.Builder
	out.Grow(len(src) + 64)
	for _, seg := range splitFenced(src) {
		if seg.fenced {
			out.WriteString(seg.text)
			continue
		}
		out.WriteString(mathPattern.ReplaceAllStringFunc(seg.text, wrapFormula))
	}
	return out.String()
}

func wrapFormula(m string) string {
	n := utf8.RuneCountInString(m)
	if n >= maxMathRunes {
		return m
	}
	if strings.ContainsAny(m, "\r\n") || n > blockMathRunes {
		return "\n " + MathOpen + m + MathClose + " \n"
	}
	return MathOpen + m + MathClose
}

// SeparateFences moves a code fence glued to preceding text onto its own line.
func SeparateFences(src string) string {
	return fenceGlue.ReplaceAllString(src, "$1\n```")
}

// ExpandImageTags turns <img>url</img> into a standalone markdown image.
func ExpandImageTags(src string) string {
	if !strings.Contains(src, "<img>") {
		return src
	}
	src = strings.ReplaceAll(src, "<img>", "\n\n ![](")
	return strings.ReplaceAll(src, "</img>", ") \n\n")
}

type segment struct {
	text   string
	fenced bool
}

// splitFenced splits src into alternating plain and fenced-code segments.
func splitFenced(src string) []segment {
	var segs []segment
	var cur strings.Builder
	fence := ""
	flush := func(fenced bool) {
		if cur.Len() > 0 {
			segs = append(segs, segment{text: cur.String(), fenced: fenced})
			cur.Reset()
		}
	}
	for _, line := range strings.SplitAfter(src, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		switch {
		case fence == "" && (strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")):
			flush(false)
			fence = trimmed[:3]
			cur.WriteString(line)
		case fence != "" && strings.HasPrefix(trimmed, fence):
			cur.WriteString(line)
			flush(true)
			fence = ""
		default:
			cur.WriteString(line)
		}
	}
	flush(fence != "")
	return segs
}

// NormalizeMath strips the math markers and one pair of enclosing
// delimiters ($$..$$, $..$, \[..\], \(..\) or [..]) from a formula.
func NormalizeMath(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, MathOpen)
	s = strings.TrimSuffix(s, MathClose)
	s = strings.TrimSpace(s)
	for _, d := range mathDelimiters {
		if len(s) >= len(d[0])+len(d[1]) && strings.HasPrefix(s, d[0]) && strings.HasSuffix(s, d[1]) {
			s = s[len(d[0]) : len(s)-len(d[1])]
			break
		}
	}
	return strings.TrimSpace(s)
}

var mathDelimiters = [][2]string{
	{"$$", "$$"},
	{`\[`, `\]`},
	{`\(`, `\)`},
	{"$", "$"},
	{"[", "]"},
}
