package style

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	sheetLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{8}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})\b`},
		{Name: "HashComment", Pattern: `#[^\n]*`},
		{Name: "Number", Pattern: `-?(?:\d+\.\d+|\d+)`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Punct", Pattern: `[;{}]`},
	})

	sheetParser = participle.MustBuild[Sheet](
		participle.Lexer(sheetLexer),
		participle.Elide("Whitespace", "LineComment", "HashComment"),
		participle.Unquote("String"),
	)
)

// Sheet is a parsed style sheet:
//
//	container-width 360
//	code {
//	  padding 12 16 12 16
//	  theme "monokai"
//	}
type Sheet struct {
	Entries []*Entry `parser:"Newline* ( @@ ( ';' | Newline )* )*"`
}

// Entry is either a property (key followed by values) or a named block.
type Entry struct {
	Pos    lexer.Position `parser:""`
	Key    string         `parser:"@Ident"`
	Block  *Block         `parser:"( @@"`
	Values []*Value       `parser:"| @@+ )"`
}

// Block is a brace-delimited list of entries.
type Block struct {
	Entries []*Entry `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Value is one property argument.
type Value struct {
	Number *float64 `parser:"  @Number"`
	Color  *string  `parser:"| @Color"`
	Str    *string  `parser:"| @String"`
	Ident  *string  `parser:"| @Ident"`
}

func (v *Value) String() string {
	switch {
	case v.Number != nil:
		return strconv.FormatFloat(*v.Number, 'f', -1, 64)
	case v.Color != nil:
		return *v.Color
	case v.Str != nil:
		return strconv.Quote(*v.Str)
	case v.Ident != nil:
		return *v.Ident
	}
	return ""
}

// ParseSheet parses a style sheet.
func ParseSheet(r io.Reader) (*Sheet, error) {
	sheet, err := sheetParser.Parse("", r)
	if err != nil {
		return nil, fmt.Errorf("parse style sheet: %w", err)
	}
	return sheet, nil
}

// ParseSheetString parses a style sheet held in memory.
func ParseSheetString(input string) (*Sheet, error) {
	return ParseSheet(strings.NewReader(input))
}

// LoadFile parses the sheet at path and applies it on top of Default.
func LoadFile(path string) (*Style, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open style sheet: %w", err)
	}
	defer f.Close()
	sheet, err := ParseSheet(f)
	if err != nil {
		return nil, err
	}
	st := Default()
	if err := sheet.Apply(st); err != nil {
		return nil, err
	}
	return st, nil
}

// Apply writes every entry of the sheet into st.
func (s *Sheet) Apply(st *Style) error {
	for _, e := range s.Entries {
		if e.Block != nil {
			if err := applyBlock(st, e.Key, e.Block); err != nil {
				return err
			}
			continue
		}
		if err := applyProperty(st, "", e); err != nil {
			return err
		}
	}
	return nil
}

func applyBlock(st *Style, name string, b *Block) error {
	if _, ok := blockProperties[name]; !ok {
		return fmt.Errorf("unknown style block %q", name)
	}
	for _, e := range b.Entries {
		if e.Block != nil {
			return fmt.Errorf("%s: nested block %q not allowed", e.Pos, e.Key)
		}
		if err := applyProperty(st, name, e); err != nil {
			return err
		}
	}
	return nil
}

func applyProperty(st *Style, block string, e *Entry) error {
	set, ok := blockProperties[block][e.Key]
	if !ok {
		if block == "" {
			return fmt.Errorf("%s: unknown property %q", e.Pos, e.Key)
		}
		return fmt.Errorf("%s: unknown property %q in %s", e.Pos, e.Key, block)
	}
	if err := set(st, e.Values); err != nil {
		return fmt.Errorf("%s: %s: %w", e.Pos, e.Key, err)
	}
	return nil
}

type setter func(*Style, []*Value) error

func headingSetter(level int, f func(*Font, []*Value) error) setter {
	return func(st *Style, v []*Value) error { return f(&st.Fonts.Headings[level], v) }
}

var blockProperties = map[string]map[string]setter{
	"": {
		"container-width": floatSetter(func(s *Style) *float64 { return &s.ContainerWidth }),
		"advanced-math":   boolSetter(func(s *Style) *bool { return &s.Math.Advanced }),
	},
	"body": {
		"font-size":   floatSetter(func(s *Style) *float64 { return &s.Fonts.Body.Size }),
		"font-family": stringSetter(func(s *Style) *string { return &s.Fonts.Body.Family }),
		"color":       colorSetter(func(s *Style) *Color { return &s.Colors.Text }),
		"link-color":  colorSetter(func(s *Style) *Color { return &s.Colors.Link }),
		"line-height": floatSetter(func(s *Style) *float64 { return &s.Paragraph.LineHeight }),
		"spacing":     floatSetter(func(s *Style) *float64 { return &s.Paragraph.ParagraphSpacing }),
		"list-indent": floatSetter(func(s *Style) *float64 { return &s.Paragraph.ListIndent }),
	},
	"heading": {
		"color": colorSetter(func(s *Style) *Color { return &s.Colors.Heading }),
		"h1":    headingSetter(0, setFontSize),
		"h2":    headingSetter(1, setFontSize),
		"h3":    headingSetter(2, setFontSize),
		"h4":    headingSetter(3, setFontSize),
		"h5":    headingSetter(4, setFontSize),
		"h6":    headingSetter(5, setFontSize),
	},
	"inline-code": {
		"font-size":  floatSetter(func(s *Style) *float64 { return &s.Fonts.InlineCode.Size }),
		"color":      colorSetter(func(s *Style) *Color { return &s.Colors.InlineCode }),
		"background": colorSetter(func(s *Style) *Color { return &s.Colors.InlineCodeBG }),
	},
	"quote": {
		"font-size": floatSetter(func(s *Style) *float64 { return &s.Fonts.Quote.Size }),
		"color":     colorSetter(func(s *Style) *Color { return &s.Colors.Quote }),
	},
	"code": {
		"font-size":     floatSetter(func(s *Style) *float64 { return &s.CodeBlock.Font.Size }),
		"font-family":   stringSetter(func(s *Style) *string { return &s.CodeBlock.Font.Family }),
		"padding":       insetsSetter(func(s *Style) *Insets { return &s.CodeBlock.Padding }),
		"corner-radius": floatSetter(func(s *Style) *float64 { return &s.CodeBlock.CornerRadius }),
		"header-height": floatSetter(func(s *Style) *float64 { return &s.CodeBlock.HeaderHeight }),
		"content-inset": floatSetter(func(s *Style) *float64 { return &s.CodeBlock.ContentInset }),
		"highlight":     boolSetter(func(s *Style) *bool { return &s.CodeBlock.UseHighlight }),
		"theme":         stringSetter(func(s *Style) *string { return &s.CodeBlock.Theme }),
		"color":         colorSetter(func(s *Style) *Color { return &s.Colors.CodeBlockText }),
		"background":    colorSetter(func(s *Style) *Color { return &s.Colors.CodeBlockBG }),
	},
	"table": {
		"font-size":       floatSetter(func(s *Style) *float64 { return &s.Table.Font.Size }),
		"header-size":     floatSetter(func(s *Style) *float64 { return &s.Table.HeaderFont.Size }),
		"cell-padding":    insetsSetter(func(s *Style) *Insets { return &s.Table.CellPadding }),
		"cell-min-width":  floatSetter(func(s *Style) *float64 { return &s.Table.CellMinWidth }),
		"cell-min-height": floatSetter(func(s *Style) *float64 { return &s.Table.CellMinHeight }),
		"cell-max-width":  floatSetter(func(s *Style) *float64 { return &s.Table.CellMaxWidth }),
		"row-gap":         floatSetter(func(s *Style) *float64 { return &s.Table.RowGap }),
		"border-width":    floatSetter(func(s *Style) *float64 { return &s.Table.BorderWidth }),
		"border-color":    colorSetter(func(s *Style) *Color { return &s.Colors.TableBorder }),
		"header-color":    colorSetter(func(s *Style) *Color { return &s.Colors.TableHeaderBG }),
	},
	"image": {
		"height":        floatSetter(func(s *Style) *float64 { return &s.Image.PlaceholderHeight }),
		"corner-radius": floatSetter(func(s *Style) *float64 { return &s.Image.CornerRadius }),
		"placeholder":   colorSetter(func(s *Style) *Color { return &s.Colors.ImagePlaceholder }),
	},
	"thematic-break": {
		"height":     floatSetter(func(s *Style) *float64 { return &s.ThematicBreak.Height }),
		"line-width": floatSetter(func(s *Style) *float64 { return &s.ThematicBreak.LineWidth }),
		"color":      colorSetter(func(s *Style) *Color { return &s.Colors.ThematicBreak }),
	},
	"math": {
		"font-size":    floatSetter(func(s *Style) *float64 { return &s.Math.FontSize }),
		"pixel-ratio":  floatSetter(func(s *Style) *float64 { return &s.Math.PixelRatio }),
		"vector-scale": floatSetter(func(s *Style) *float64 { return &s.Math.VectorScale }),
		"advanced":     boolSetter(func(s *Style) *bool { return &s.Math.Advanced }),
		"timeout":      durationSetter(func(s *Style) *time.Duration { return &s.Math.Timeout }),
		"color":        colorSetter(func(s *Style) *Color { return &s.Colors.MathText }),
	},
}

func setFontSize(f *Font, v []*Value) error {
	n, err := oneNumber(v)
	if err != nil {
		return err
	}
	f.Size = n
	return nil
}

func floatSetter(field func(*Style) *float64) setter {
	return func(st *Style, v []*Value) error {
		n, err := oneNumber(v)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("negative value %v", n)
		}
		*field(st) = n
		return nil
	}
}

func boolSetter(field func(*Style) *bool) setter {
	return func(st *Style, v []*Value) error {
		if len(v) != 1 || v[0].Ident == nil {
			return fmt.Errorf("expected true or false")
		}
		b, err := strconv.ParseBool(*v[0].Ident)
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", *v[0].Ident)
		}
		*field(st) = b
		return nil
	}
}

func stringSetter(field func(*Style) *string) setter {
	return func(st *Style, v []*Value) error {
		if len(v) != 1 {
			return fmt.Errorf("expected one value")
		}
		switch {
		case v[0].Str != nil:
			*field(st) = *v[0].Str
		case v[0].Ident != nil:
			*field(st) = *v[0].Ident
		default:
			return fmt.Errorf("expected a name, got %s", v[0])
		}
		return nil
	}
}

func colorSetter(field func(*Style) *Color) setter {
	return func(st *Style, v []*Value) error {
		if len(v) != 1 || v[0].Color == nil {
			return fmt.Errorf("expected a #hex color")
		}
		c, err := ParseHex(*v[0].Color)
		if err != nil {
			return err
		}
		*field(st) = c
		return nil
	}
}

func durationSetter(field func(*Style) *time.Duration) setter {
	return func(st *Style, v []*Value) error {
		if len(v) != 1 {
			return fmt.Errorf("expected one value")
		}
		switch {
		case v[0].Number != nil:
			*field(st) = time.Duration(*v[0].Number * float64(time.Millisecond))
		case v[0].Str != nil:
			d, err := time.ParseDuration(*v[0].Str)
			if err != nil {
				return err
			}
			*field(st) = d
		default:
			return fmt.Errorf("expected milliseconds or a duration string")
		}
		return nil
	}
}

// insetsSetter accepts one value (all edges), two (vertical horizontal) or
// four (top left bottom right).
func insetsSetter(field func(*Style) *Insets) setter {
	return func(st *Style, v []*Value) error {
		nums := make([]float64, 0, len(v))
		for _, x := range v {
			if x.Number == nil {
				return fmt.Errorf("expected numbers, got %s", x)
			}
			nums = append(nums, *x.Number)
		}
		var in Insets
		switch len(nums) {
		case 1:
			in = Insets{Top: nums[0], Left: nums[0], Bottom: nums[0], Right: nums[0]}
		case 2:
			in = Insets{Top: nums[0], Left: nums[1], Bottom: nums[0], Right: nums[1]}
		case 4:
			in = Insets{Top: nums[0], Left: nums[1], Bottom: nums[2], Right: nums[3]}
		default:
			return fmt.Errorf("expected 1, 2 or 4 numbers, got %d", len(nums))
		}
		*field(st) = in
		return nil
	}
}

func oneNumber(v []*Value) (float64, error) {
	if len(v) != 1 || v[0].Number == nil {
		return 0, fmt.Errorf("expected one number")
	}
	return *v[0].Number, nil
}
