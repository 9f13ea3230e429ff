package textrender

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/markchunk/internal/style"
)

// Run is a span of text sharing one set of attributes.
type Run struct {
	Text        string       `json:"text"`
	Font        style.Font   `json:"font"`
	Color       style.Color  `json:"color"`
	Background  *style.Color `json:"background,omitempty"`
	Link        string       `json:"link,omitempty"`
	Strike      bool         `json:"strike,omitempty"`
	Superscript bool         `json:"superscript,omitempty"`
}

// AttributedText is an append-only sequence of runs. Appending never
// rewrites existing runs, so copies taken earlier stay valid.
type AttributedText struct {
	runs   []Run
	length int
}

// Plain builds single-run text.
func Plain(s string, font style.Font, color style.Color) AttributedText {
	var t AttributedText
	t.AppendRun(Run{Text: s, Font: font, Color: color})
	return t
}

// AppendRun appends r; empty runs are dropped.
func (t *AttributedText) AppendRun(r Run) {
	if r.Text == "" {
		return
	}
	t.runs = append(t.runs, r)
	t.length += utf8.RuneCountInString(r.Text)
}

// Append appends every run of o.
func (t *AttributedText) Append(o AttributedText) {
	for _, r := range o.runs {
		t.AppendRun(r)
	}
}

// Len is the length in runes.
func (t AttributedText) Len() int { return t.length }

// IsEmpty reports whether the text has no characters.
func (t AttributedText) IsEmpty() bool { return t.length == 0 }

// Runs returns a copy of the runs.
func (t AttributedText) Runs() []Run {
	out := make([]Run, len(t.runs))
	copy(out, t.runs)
	return out
}

// String returns the plain characters.
func (t AttributedText) String() string {
	var b strings.Builder
	for _, r := range t.runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// EndsWithNewline reports whether the last character is a line feed.
func (t AttributedText) EndsWithNewline() bool {
	if len(t.runs) == 0 {
		return false
	}
	return strings.HasSuffix(t.runs[len(t.runs)-1].Text, "\n")
}

// TrimTrailingNewlines returns t without line feeds at its end.
func (t AttributedText) TrimTrailingNewlines() AttributedText {
	runs := t.Runs()
	for len(runs) > 0 {
		last := &runs[len(runs)-1]
		last.Text = strings.TrimRight(last.Text, "\n")
		if last.Text != "" {
			break
		}
		runs = runs[:len(runs)-1]
	}
	var out AttributedText
	for _, r := range runs {
		out.AppendRun(r)
	}
	return out
}

type attributedJSON struct {
	Text string `json:"text"`
	Runs []Run  `json:"runs"`
}

func (t AttributedText) MarshalJSON() ([]byte, error) {
	runs := t.runs
	if runs == nil {
		runs = []Run{}
	}
	return json.Marshal(attributedJSON{Text: t.String(), Runs: runs})
}

func (t *AttributedText) UnmarshalJSON(b []byte) error {
	var v attributedJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*t = AttributedText{}
	for _, r := range v.Runs {
		t.AppendRun(r)
	}
	return nil
}
