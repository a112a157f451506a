package ingest

import (
	"strings"
	"testing"
)

// ----------------------------------------------------------------------------
// ParseLine Tests
// ----------------------------------------------------------------------------

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "plain fields",
			line: "a,b,c",
			want: []string{"a", "b", "c"},
		},
		{
			name: "quoted separator",
			line: `"123 Main St, Unit 4",Closed`,
			want: []string{"123 Main St, Unit 4", "Closed"},
		},
		{
			name: "doubled quote inside quotes",
			line: `"she said ""hi""",x`,
			want: []string{`she said "hi"`, "x"},
		},
		{
			name: "trailing separator yields trailing empty field",
			line: "a,b,",
			want: []string{"a", "b", ""},
		},
		{
			name: "empty fields preserved",
			line: ",,",
			want: []string{"", "", ""},
		},
		{
			name: "unbalanced quote swallows rest of line",
			line: `"abc,def`,
			want: []string{"abc,def"},
		},
		{
			name: "single field",
			line: "solo",
			want: []string{"solo"},
		},
		{
			name: "empty line is one empty field",
			line: "",
			want: []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLine(tt.line)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseLine(%q) = %v, want %v", tt.line, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("field %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// TestParseLine_RoundTrip verifies that tokenizing and rejoining a line
// without quoted content reproduces the original.
func TestParseLine_RoundTrip(t *testing.T) {
	lines := []string{
		"Closed,412500,Jane Doe",
		"a,b,c,d,e",
		"one",
		"trailing,empty,",
		",,leading",
	}

	for _, line := range lines {
		if got := strings.Join(ParseLine(line), ","); got != line {
			t.Errorf("round trip of %q = %q", line, got)
		}
	}
}

// ----------------------------------------------------------------------------
// ParseText Tests
// ----------------------------------------------------------------------------

func TestParseText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantRows int
		wantErr  bool
	}{
		{
			name:     "LF newlines",
			text:     "a,b\nc,d\n",
			wantRows: 2,
		},
		{
			name:     "CRLF newlines",
			text:     "a,b\r\nc,d\r\n",
			wantRows: 2,
		},
		{
			name:     "bare CR newlines",
			text:     "a,b\rc,d",
			wantRows: 2,
		},
		{
			name:     "blank lines discarded",
			text:     "a,b\n\n   \nc,d",
			wantRows: 2,
		},
		{
			name:    "empty input",
			text:    "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			text:    "  \n\t\n  ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ParseText(tt.text)
			if tt.wantErr {
				if err != ErrEmptyInput {
					t.Fatalf("ParseText(%q) error = %v, want ErrEmptyInput", tt.text, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseText(%q) error = %v", tt.text, err)
			}
			if len(rows) != tt.wantRows {
				t.Errorf("rows = %d, want %d", len(rows), tt.wantRows)
			}
		})
	}
}

func TestParse_StripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBFStatus,Price\nClosed,100\n"

	rows, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rows[0][0] != "Status" {
		t.Errorf("first header = %q, want %q", rows[0][0], "Status")
	}
}

func TestParse_SanitizesInvalidUTF8(t *testing.T) {
	input := "Status\nClo\xffsed\n"

	rows, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rows[1][0] != "Clo�sed" {
		t.Errorf("cell = %q, want replacement character inserted", rows[1][0])
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  padded  ", "padded"},
		{`="00123"`, "00123"},
		{"=SUM", "SUM"},
		{`"quoted"`, "quoted"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanCell(tt.input); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
