package style

import (
	"strings"
	"testing"
	"time"
)

const sampleSheet = `
// phone layout
container-width 360
advanced-math false

body {
  font-size 17
  color #333
}

code { padding 10 12; theme "monokai"; highlight false }

table {
  cell-padding 4
  cell-min-width 72
  row-gap 2
}

math {
  timeout "750ms"
  vector-scale 6
}
`

func TestParseSheet_Apply(t *testing.T) {
	sheet, err := ParseSheetString(sampleSheet)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	st := Default()
	if err := sheet.Apply(st); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if st.ContainerWidth != 360 {
		t.Errorf("expected container width 360, got %v", st.ContainerWidth)
	}
	if st.Math.Advanced {
		t.Error("expected advanced math disabled")
	}
	if st.Fonts.Body.Size != 17 {
		t.Errorf("expected body size 17, got %v", st.Fonts.Body.Size)
	}
	if got := st.Colors.Text.Hex(); got != "#333333" {
		t.Errorf("expected text color #333333, got %s", got)
	}
	want := Insets{Top: 10, Left: 12, Bottom: 10, Right: 12}
	if st.CodeBlock.Padding != want {
		t.Errorf("expected code padding %+v, got %+v", want, st.CodeBlock.Padding)
	}
	if st.CodeBlock.Theme != "monokai" {
		t.Errorf("expected theme monokai, got %q", st.CodeBlock.Theme)
	}
	if st.CodeBlock.UseHighlight {
		t.Error("expected highlighting disabled")
	}
	if st.Table.CellPadding != (Insets{Top: 4, Left: 4, Bottom: 4, Right: 4}) {
		t.Errorf("unexpected cell padding %+v", st.Table.CellPadding)
	}
	if st.Table.CellMinWidth != 72 || st.Table.RowGap != 2 {
		t.Errorf("unexpected table sizes min=%v gap=%v", st.Table.CellMinWidth, st.Table.RowGap)
	}
	if st.Math.Timeout != 750*time.Millisecond {
		t.Errorf("expected 750ms timeout, got %v", st.Math.Timeout)
	}
	if st.Math.VectorScale != 6 {
		t.Errorf("expected vector scale 6, got %v", st.Math.VectorScale)
	}
}

func TestParseSheet_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unknown block", "fonts { size 3 }", "unknown style block"},
		{"unknown property", "code { colour #fff }", "unknown property"},
		{"bad insets", "code { padding 1 2 3 }", "expected 1, 2 or 4 numbers"},
		{"bad bool", "advanced-math maybe", "expected true or false"},
		{"negative", "container-width -5", "negative value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, err := ParseSheetString(tt.input)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			err = sheet.Apply(Default())
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseSheet_SyntaxError(t *testing.T) {
	if _, err := ParseSheetString("code { padding 1"); err == nil {
		t.Fatal("expected syntax error for unterminated block")
	}
}

func TestValue_String(t *testing.T) {
	num, hex, str, ident := 12.5, "#fff", "monokai", "bold"
	tests := []struct {
		v    Value
		want string
	}{
		{Value{Number: &num}, "12.5"},
		{Value{Color: &hex}, "#fff"},
		{Value{Str: &str}, `"monokai"`},
		{Value{Ident: &ident}, "bold"},
		{Value{}, ""},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want Color
	}{
		{"#fff", Color{255, 255, 255, 255}},
		{"#102030", Color{0x10, 0x20, 0x30, 0xff}},
		{"#10203040", Color{0x10, 0x20, 0x30, 0x40}},
	}
	for _, tt := range tests {
		got, err := ParseHex(tt.in)
		if err != nil {
			t.Fatalf("ParseHex(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseHex(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseHex("#12"); err == nil {
		t.Error("expected error for short color")
	}
}

func TestDefault(t *testing.T) {
	st := Default()
	if st.ContainerWidth != DefaultScreenWidth-40 {
		t.Errorf("expected container width %d, got %v", DefaultScreenWidth-40, st.ContainerWidth)
	}
	if st.CodeMeasureWidth() != st.ContainerWidth*2 {
		t.Errorf("expected code measure width to double the container")
	}
	c := st.Clone()
	c.ContainerWidth = 10
	if st.ContainerWidth == 10 {
		t.Error("Clone must not share the receiver")
	}
}
