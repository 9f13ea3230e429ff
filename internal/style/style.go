package style

import "time"

// Size is a width/height pair in layout points.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether both dimensions are zero.
func (s Size) IsZero() bool { return s.Width == 0 && s.Height == 0 }

// Insets are per-edge paddings in layout points.
type Insets struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
}

// Horizontal returns left + right.
func (i Insets) Horizontal() float64 { return i.Left + i.Right }

// Vertical returns top + bottom.
func (i Insets) Vertical() float64 { return i.Top + i.Bottom }

// Font describes a font role. Size is in points.
type Font struct {
	Family    string  `json:"family,omitempty"`
	Size      float64 `json:"size"`
	Bold      bool    `json:"bold,omitempty"`
	Italic    bool    `json:"italic,omitempty"`
	Monospace bool    `json:"monospace,omitempty"`
}

// WithBold returns a copy of f with the bold trait set.
func (f Font) WithBold() Font { f.Bold = true; return f }

// WithItalic returns a copy of f with the italic trait set.
func (f Font) WithItalic() Font { f.Italic = true; return f }

// WithMonospace returns a copy of f switched to the monospace family.
func (f Font) WithMonospace() Font { f.Monospace = true; return f }

// Fonts groups the font roles used by the text visitor.
type Fonts struct {
	Body       Font    `json:"body"`
	Headings   [6]Font `json:"headings"`
	InlineCode Font    `json:"inline_code"`
	Quote      Font    `json:"quote"`
	Footnote   Font    `json:"footnote"`
}

// Heading returns the font for heading level 1..6; other levels clamp.
func (f Fonts) Heading(level int) Font {
	if level < 1 {
		level = 1
	}
	if level > len(f.Headings) {
		level = len(f.Headings)
	}
	return f.Headings[level-1]
}

// Colors groups the text colors used by the text visitor.
type Colors struct {
	Text             Color `json:"text"`
	Heading          Color `json:"heading"`
	Link             Color `json:"link"`
	InlineCode       Color `json:"inline_code"`
	InlineCodeBG     Color `json:"inline_code_background"`
	Quote            Color `json:"quote"`
	ThematicBreak    Color `json:"thematic_break"`
	ReferenceMarker  Color `json:"reference_marker"`
	TableBorder      Color `json:"table_border"`
	TableHeaderBG    Color `json:"table_header_background"`
	CodeBlockBG      Color `json:"code_block_background"`
	CodeBlockText    Color `json:"code_block_text"`
	MathText         Color `json:"math_text"`
	ImagePlaceholder Color `json:"image_placeholder"`
}

// ParagraphStyle controls spacing between lines and blocks of text.
type ParagraphStyle struct {
	LineHeight       float64 `json:"line_height"`
	ParagraphSpacing float64 `json:"paragraph_spacing"`
	ListIndent       float64 `json:"list_indent"`
}

// CodeBlockStyle controls fenced code rendering.
type CodeBlockStyle struct {
	Font         Font    `json:"font"`
	Padding      Insets  `json:"padding"`
	CornerRadius float64 `json:"corner_radius"`
	HeaderHeight float64 `json:"header_height"`
	ContentInset float64 `json:"content_inset"`
	UseHighlight bool    `json:"use_highlight"`
	Theme        string  `json:"theme"`
}

// TableStyle controls table cell measurement and layout.
type TableStyle struct {
	Font          Font    `json:"font"`
	HeaderFont    Font    `json:"header_font"`
	CellPadding   Insets  `json:"cell_padding"`
	CellMinWidth  float64 `json:"cell_min_width"`
	CellMinHeight float64 `json:"cell_min_height"`
	CellMaxWidth  float64 `json:"cell_max_width"`
	RowGap        float64 `json:"row_gap"`
	BorderWidth   float64 `json:"border_width"`
}

// ImageStyle controls image placeholders.
type ImageStyle struct {
	PlaceholderHeight float64 `json:"placeholder_height"`
	CornerRadius      float64 `json:"corner_radius"`
}

// ThematicBreakStyle controls horizontal rules.
type ThematicBreakStyle struct {
	Height    float64 `json:"height"`
	LineWidth float64 `json:"line_width"`
}

// MathStyle controls LaTeX rendering.
type MathStyle struct {
	FontSize    float64       `json:"font_size"`
	PixelRatio  float64       `json:"pixel_ratio"`
	VectorScale float64       `json:"vector_scale"`
	Advanced    bool          `json:"advanced"`
	Timeout     time.Duration `json:"timeout"`
}

// Style is the immutable styling bundle shared by a generator and every
// chunk it emits. Copy with Clone before changing a shared instance.
type Style struct {
	ContainerWidth float64            `json:"container_width"`
	Fonts          Fonts              `json:"fonts"`
	Colors         Colors             `json:"colors"`
	Paragraph      ParagraphStyle     `json:"paragraph"`
	CodeBlock      CodeBlockStyle     `json:"code_block"`
	Table          TableStyle         `json:"table"`
	Image          ImageStyle         `json:"image"`
	ThematicBreak  ThematicBreakStyle `json:"thematic_break"`
	Math           MathStyle          `json:"math"`
}

// DefaultScreenWidth is the reference display width the default container
// width is derived from.
const DefaultScreenWidth = 375

// Default returns the stock style: body 18pt, code 16pt, container width
// of the reference screen minus 40.
func Default() *Style {
	body := Font{Family: "Go", Size: 18}
	mono := Font{Family: "Go Mono", Size: 16, Monospace: true}
	return &Style{
		ContainerWidth: DefaultScreenWidth - 40,
		Fonts: Fonts{
			Body: body,
			Headings: [6]Font{
				{Family: "Go", Size: 28, Bold: true},
				{Family: "Go", Size: 24, Bold: true},
				{Family: "Go", Size: 22, Bold: true},
				{Family: "Go", Size: 20, Bold: true},
				{Family: "Go", Size: 18, Bold: true},
				{Family: "Go", Size: 18, Bold: true},
			},
			InlineCode: Font{Family: "Go Mono", Size: 16, Monospace: true},
			Quote:      Font{Family: "Go", Size: 18, Italic: true},
			Footnote:   Font{Family: "Go", Size: 12},
		},
		Colors: Colors{
			Text:             MustHex("#1F2328"),
			Heading:          MustHex("#1F2328"),
			Link:             MustHex("#0969DA"),
			InlineCode:       MustHex("#CF222E"),
			InlineCodeBG:     MustHex("#EFF1F3"),
			Quote:            MustHex("#59636E"),
			ThematicBreak:    MustHex("#D1D9E0"),
			ReferenceMarker:  MustHex("#0969DA"),
			TableBorder:      MustHex("#D1D9E0"),
			TableHeaderBG:    MustHex("#F6F8FA"),
			CodeBlockBG:      MustHex("#F6F8FA"),
			CodeBlockText:    MustHex("#1F2328"),
			MathText:         MustHex("#1F2328"),
			ImagePlaceholder: MustHex("#EFF1F3"),
		},
		Paragraph: ParagraphStyle{
			LineHeight:       1.25,
			ParagraphSpacing: 8,
			ListIndent:       16,
		},
		CodeBlock: CodeBlockStyle{
			Font:         mono,
			Padding:      Insets{Top: 12, Left: 16, Bottom: 12, Right: 16},
			CornerRadius: 8,
			HeaderHeight: 32,
			ContentInset: 8,
			UseHighlight: true,
			Theme:        "github",
		},
		Table: TableStyle{
			Font:          Font{Family: "Go", Size: 16},
			HeaderFont:    Font{Family: "Go", Size: 16, Bold: true},
			CellPadding:   Insets{Top: 6, Left: 16, Bottom: 6, Right: 16},
			CellMinWidth:  60,
			CellMinHeight: 44,
			CellMaxWidth:  240,
			BorderWidth:   1,
		},
		Image: ImageStyle{
			PlaceholderHeight: 100,
			CornerRadius:      4,
		},
		ThematicBreak: ThematicBreakStyle{
			Height:    30,
			LineWidth: 1,
		},
		Math: MathStyle{
			FontSize:    20,
			PixelRatio:  2,
			VectorScale: 8,
			Advanced:    true,
			Timeout:     5 * time.Second,
		},
	}
}

// Clone returns a deep copy of s.
func (s *Style) Clone() *Style {
	if s == nil {
		return Default()
	}
	c := *s
	return &c
}

// CodeMeasureWidth is the width code blocks are measured at. Code lines are
// laid out at twice the container width and scroll horizontally.
func (s *Style) CodeMeasureWidth() float64 {
	return s.ContainerWidth * 2
}
