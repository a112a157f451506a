package ingest

// builder.go turns a confirmed mapping plus raw data rows into typed
// records. Coercion is tolerant: a cell that fails to parse keeps its raw
// string and adds a warning, and field-count mismatches never drop a row:
// short rows are padded, extra trailing values land in the overflow
// bucket.

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted: a parsed
// year more than this many years ahead of the current year is shifted
// back one century. A closing date can sit a little in the future, but
// never decades out.
const TwoDigitYearPivot = 20

// Date layouts split by year width so the pivot adjustment only applies
// where it is needed.
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06",
	}
	fourDigitYearLayouts = []string{
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// isoDate is the single normalized representation for date fields.
const isoDate = "2006-01-02"

// currencyReplacer strips currency symbols and grouping separators before
// numeric parsing.
var currencyReplacer = strings.NewReplacer(
	"$", "", "€", "", "£", "", ",", "", " ", "",
)

// RecordBuilder produces DomainRecords from data rows under a confirmed
// mapping. Construct one with NewRecordBuilder; it refuses an unconfirmed
// session.
type RecordBuilder struct {
	columnKeys []string             // canonical key per column, "" = unmapped
	types      map[string]ValueType // key -> declared value type
	rows       [][]string
}

// NewRecordBuilder binds a confirmed reconciliation session to the data
// rows of the same file. Returns ErrNotConfirmed if the session has not
// passed the confirm gate — records must never be built against a
// provisional mapping.
func NewRecordBuilder(session *Session, rows [][]string) (*RecordBuilder, error) {
	if !session.Confirmed() {
		return nil, ErrNotConfirmed
	}

	keys := session.columnKeys()
	types := make(map[string]ValueType, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		f, ok := FieldByKey(key)
		if !ok {
			return nil, fmt.Errorf("mapping references unknown field %q", key)
		}
		types[key] = f.Type
	}

	return &RecordBuilder{columnKeys: keys, types: types, rows: rows}, nil
}

// Records returns a lazy, single-pass iterator over the typed records.
// The iterator is not restartable; call Records again for another pass.
func (b *RecordBuilder) Records() *RecordIterator {
	return &RecordIterator{builder: b}
}

// RecordIterator walks data rows one at a time, building each record on
// demand so a consumer can stop early and large files never materialize
// in memory. An iterator belongs to a single goroutine.
//
//	it := builder.Records()
//	for it.Next() {
//	    use(it.Record())
//	}
type RecordIterator struct {
	builder *RecordBuilder
	pos     int
	current DomainRecord

	rowsRead    int
	warningRows int

	// progress, when set, receives the running counters after every row.
	progress func(rowsRead, warningRows int)
}

// Next advances to the next data row. It returns false when the input is
// exhausted.
func (it *RecordIterator) Next() bool {
	if it.pos >= len(it.builder.rows) {
		return false
	}
	it.current = it.builder.buildRecord(it.builder.rows[it.pos])
	it.pos++
	it.rowsRead++
	if len(it.current.Warnings) > 0 {
		it.warningRows++
	}
	if it.progress != nil {
		it.progress(it.rowsRead, it.warningRows)
	}
	return true
}

// Record returns the record produced by the last successful Next call.
func (it *RecordIterator) Record() DomainRecord {
	return it.current
}

// RowsRead returns how many records have been produced so far.
func (it *RecordIterator) RowsRead() int {
	return it.rowsRead
}

// WarningRows returns how many produced records carried at least one
// coercion warning.
func (it *RecordIterator) WarningRows() int {
	return it.warningRows
}

// buildRecord converts one raw row into a typed record.
func (b *RecordBuilder) buildRecord(row []string) DomainRecord {
	rec := DomainRecord{Values: make(map[string]any, len(b.types))}

	for col, key := range b.columnKeys {
		if key == "" {
			continue
		}

		// A row shorter than the header is padded with empty trailing
		// fields; the row is kept.
		raw := ""
		if col < len(row) {
			raw = row[col]
		}

		value := CleanCell(raw)
		if value == "" {
			continue
		}

		coerced, err := coerce(value, b.types[key])
		if err != nil {
			rec.Values[key] = value
			rec.Warnings = append(rec.Warnings, CellWarning{
				Field:   key,
				Value:   value,
				Message: err.Error(),
			})
			continue
		}
		rec.Values[key] = coerced
	}

	// Extra trailing values beyond the mapped header count are retained,
	// not discarded.
	if len(row) > len(b.columnKeys) {
		rec.Overflow = append(rec.Overflow, row[len(b.columnKeys):]...)
	}

	return rec
}

// coerce converts a cleaned cell value to its field's declared type.
func coerce(value string, t ValueType) (any, error) {
	switch t {
	case TypeCurrency:
		return parseCurrency(value)
	case TypeNumber:
		return parseNumber(value)
	case TypeDate:
		return parseDate(value)
	case TypeTagList:
		return parseTagList(value), nil
	default:
		return value, nil
	}
}

// parseCurrency strips currency symbols and grouping separators, handles
// accounting-style negatives "(1,234.56)", and parses the rest as an
// arbitrary-precision decimal.
func parseCurrency(s string) (decimal.Decimal, error) {
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.TrimSpace(currencyReplacer.Replace(s))
	if negative {
		s = "-" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid currency amount")
	}
	return d, nil
}

// parseNumber parses a plain number, tolerating grouping commas and a
// trailing percent sign (commission rates are exported both ways).
func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number")
	}
	return f, nil
}

// parseDate accepts the common textual date formats seen in exports and
// normalizes to ISO. 4-digit-year layouts are tried first because they
// are unambiguous; 2-digit years get the century pivot applied.
func parseDate(s string) (string, error) {
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoDate), nil
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t.Format(isoDate), nil
		}
	}

	return "", fmt.Errorf("unrecognized date format")
}

// parseTagList splits on comma or semicolon into trimmed, de-duplicated,
// non-empty tags in first-seen order.
func parseTagList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	})

	tags := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		tags = append(tags, p)
	}
	return tags
}
