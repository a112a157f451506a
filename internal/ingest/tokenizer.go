package ingest

// tokenizer.go implements the quote-aware line splitter for export CSVs.
//
// encoding/csv rejects much of what export tools actually emit: unbalanced
// quotes, rows with inconsistent field counts, stray trailing separators.
// The tokenizer here is deliberately fail-soft so that a single mangled
// cell never aborts an entire file. Splitting is line-oriented: a quoted
// field that spans physical lines is not reconstructed, matching the
// observable behavior of the exports this was built against.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ErrEmptyInput is returned when the input contains no non-blank lines.
// It is the only fatal parse condition; everything else degrades per-cell.
var ErrEmptyInput = errors.New("input contains no data lines")

const (
	separator = ','
	quote     = '"'
)

// ParseLine splits a single physical line into fields.
//
// Rules:
//   - a quote character toggles the in-quotes state
//   - a doubled quote inside quotes emits one literal quote
//   - a separator is a field boundary only outside quotes
//   - a trailing separator yields a trailing empty field
//
// An unbalanced quote is not an error: the remainder of the line becomes
// literal content of the current field.
func ParseLine(line string) []string {
	fields := make([]string, 0, 8)
	var b strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == quote:
			if inQuotes && i+1 < len(line) && line[i+1] == quote {
				b.WriteByte(quote)
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == separator && !inQuotes:
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}

	fields = append(fields, b.String())
	return fields
}

// ParseText tokenizes raw CSV text into rows of fields.
//
// All newline conventions (CRLF, bare CR, LF) are normalized to LF before
// splitting. Lines that are pure whitespace are discarded. Returns
// ErrEmptyInput if nothing remains.
func ParseText(text string) ([][]string, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	rows := make([][]string, 0, 64)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, ParseLine(line))
	}

	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	return rows, nil
}

// Parse reads raw CSV content from r and tokenizes it.
//
// A UTF-8 BOM is stripped if present and invalid UTF-8 sequences are
// replaced before tokenizing, so Windows exports and binary junk never
// reach the field splitter.
func Parse(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	data = stripBOM(data)
	data = sanitizeUTF8(data)
	return ParseText(string(data))
}

// utf8BOM is the byte order mark Windows tools prepend to UTF-8 files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// stripBOM removes a leading UTF-8 BOM if present.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the replacement
// character. Valid input is returned unmodified without allocation.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

// CleanCell removes common CSV artifacts from a cell value:
//   - surrounding whitespace
//   - Excel formula prefix (="...")
//   - stray surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}
