package ingest

// headerless.go decides whether the first row of a file is data rather
// than labels. Some export paths strip the header row entirely; treating
// a data row as headers would silently shift every record, so the first
// row is inspected before any matching happens.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// maxHeaderFieldLen is the longest plausible header label. Anything longer
// is almost certainly data (a remarks column, a full address).
const maxHeaderFieldLen = 50

// dateLikePattern matches slash-separated day/month/year arrangements
// such as "4/5/2024" or "12/31/24". Header labels never look like this.
var dateLikePattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)

// IsHeaderless reports whether row looks like data rather than labels.
//
// Headerless is declared when more than half the fields parse as a pure
// number, or any field matches a date-like pattern, or any field exceeds
// maxHeaderFieldLen characters. Ambiguous rows are treated as headers:
// a false positive here would discard the user's real header labels,
// while a false negative only costs one misparsed data row.
func IsHeaderless(row []string) bool {
	if len(row) == 0 {
		return false
	}

	numeric := 0
	for _, field := range row {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if len(field) > maxHeaderFieldLen {
			return true
		}
		if dateLikePattern.MatchString(field) {
			return true
		}
		if _, err := strconv.ParseFloat(field, 64); err == nil {
			numeric++
		}
	}

	return numeric*2 > len(row)
}

// SyntheticHeader generates placeholder labels "Column 1".."Column N" for
// a headerless file, so the rest of the pipeline always sees a header row.
func SyntheticHeader(n int) []string {
	header := make([]string, n)
	for i := range header {
		header[i] = fmt.Sprintf("Column %d", i+1)
	}
	return header
}
