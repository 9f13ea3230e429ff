// Package chunker turns markdown blocks into ordered, pre-measured chunks.
package chunker

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dgallion1/markchunk/internal/latex"
	"github.com/dgallion1/markchunk/internal/markup"
	"github.com/dgallion1/markchunk/internal/style"
	"github.com/dgallion1/markchunk/internal/tablelayout"
	"github.com/dgallion1/markchunk/internal/textrender"
)

// Type is the kind of payload a chunk carries.
type Type int

const (
	TypeText Type = iota
	TypeCode
	TypeTable
	TypeLatex
	TypeImage
	TypeThematic
	TypeBlockQuote
)

var typeNames = [...]string{"text", "code", "table", "latex", "image", "thematic", "blockquote"}

func (t Type) String() string {
	if int(t) < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("type(%d)", int(t))
	}
	return typeNames[t]
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Cell is one measured table cell.
type Cell struct {
	Text   textrender.AttributedText `json:"text"`
	Layout textrender.Layout         `json:"layout"`
}

// TableModel is the row and column structure of a table chunk.
type TableModel struct {
	Header     []Cell   `json:"header,omitempty"`
	Rows       [][]Cell `json:"rows"`
	Alignments []string `json:"alignments,omitempty"`
	Contents   string   `json:"-"`
}

// Empty reports whether the table has no cells at all.
func (m *TableModel) Empty() bool {
	if m == nil {
		return true
	}
	if len(m.Header) > 0 {
		return false
	}
	for _, r := range m.Rows {
		if len(r) > 0 {
			return false
		}
	}
	return true
}

// Chunk is one unit of renderable output. Which payload fields are set
// depends on Type.
type Chunk struct {
	Identifier string        `json:"identifier"`
	Index      int           `json:"index"`
	Type       Type          `json:"type"`
	Children   []markup.Node `json:"-"`
	Style      *style.Style  `json:"-"`

	Text       textrender.AttributedText `json:"text"`
	TextLayout *textrender.Layout        `json:"text_layout,omitempty"`

	Code     string     `json:"code,omitempty"`
	Language string     `json:"language,omitempty"`
	CodeSize style.Size `json:"code_size"`

	Table       *TableModel         `json:"table,omitempty"`
	TableLayout *tablelayout.Layout `json:"table_layout,omitempty"`

	Source string        `json:"source,omitempty"`
	Math   *latex.Result `json:"math,omitempty"`

	ItemSize style.Size `json:"item_size"`
	HashKey  string     `json:"hash_key"`
}

// HasContent reports whether the chunk represents any markup.
func (c *Chunk) HasContent() bool { return len(c.Children) > 0 }

// Tokens estimates the token count of the chunk's textual content.
func (c *Chunk) Tokens() int {
	switch c.Type {
	case TypeCode:
		return EstimateTokens(c.Code)
	case TypeTable:
		if c.Table != nil {
			return EstimateTokens(c.Table.Contents)
		}
		return 0
	default:
		return EstimateTokens(c.Text.String())
	}
}

// hashContent is the content the hash key is derived from.
func (c *Chunk) hashContent() string {
	switch c.Type {
	case TypeText, TypeBlockQuote:
		return c.Text.String()
	case TypeLatex:
		if c.Math != nil && c.Math.Kind != latex.KindText {
			return c.Math.Source
		}
		return c.Text.String()
	case TypeCode:
		return c.Code + "\x00" + c.Language
	case TypeTable:
		if c.Table != nil {
			return c.Table.Contents
		}
	case TypeImage:
		return c.Source
	}
	return ""
}

// ComputeHashKey sets HashKey to "<type>-<digest>-<height>". Two chunks
// share a key only when their visual content and height agree. Chunks
// without hashable content get a random digest.
func (c *Chunk) ComputeHashKey() {
	content := c.hashContent()
	var digest string
	if content == "" {
		var b [16]byte
		rand.Read(b[:])
		digest = "rand" + hex.EncodeToString(b[:])
	} else {
		h := sha256.Sum256([]byte(content))
		digest = hex.EncodeToString(h[:])
	}
	c.HashKey = fmt.Sprintf("%d-%s-%d", int(c.Type), digest, int(math.Ceil(c.ItemSize.Height)))
}

type childJSON struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

// MarshalJSON adds a summary of the source nodes.
func (c Chunk) MarshalJSON() ([]byte, error) {
	type plain Chunk
	children := make([]childJSON, 0, len(c.Children))
	for _, n := range c.Children {
		children = append(children, childJSON{Kind: n.Kind().String(), Text: excerpt(n.RawText(), 80)})
	}
	return json.Marshal(struct {
		plain
		Children []childJSON `json:"children"`
		Tokens   int         `json:"tokens"`
	}{plain(c), children, c.Tokens()})
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
