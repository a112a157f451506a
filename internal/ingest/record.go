package ingest

import "github.com/shopspring/decimal"

// CellWarning records a cell whose value could not be coerced to its
// canonical field type. The raw string is kept in the record; warnings
// never drop a row.
type CellWarning struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// DomainRecord is one typed deal row produced from a confirmed mapping.
//
// Values is keyed by canonical field key. Value types by field type:
// string fields hold string, number fields float64, currency fields
// decimal.Decimal, date fields an ISO "2006-01-02" string, and tagList
// fields []string. A cell that failed coercion holds its raw string and
// contributes an entry to Warnings.
//
// Records are immutable once built and owned by the consuming analytics
// layer.
type DomainRecord struct {
	Values   map[string]any `json:"values"`
	Overflow []string       `json:"overflow,omitempty"`
	Warnings []CellWarning  `json:"warnings,omitempty"`
}

// Text returns the string value of a field, if present and string-typed.
func (r DomainRecord) Text(key string) (string, bool) {
	s, ok := r.Values[key].(string)
	return s, ok
}

// Decimal returns the decimal value of a currency field, if present and
// successfully coerced.
func (r DomainRecord) Decimal(key string) (decimal.Decimal, bool) {
	d, ok := r.Values[key].(decimal.Decimal)
	return d, ok
}

// Number returns the float value of a number field.
func (r DomainRecord) Number(key string) (float64, bool) {
	f, ok := r.Values[key].(float64)
	return f, ok
}

// Tags returns the value of a tagList field.
func (r DomainRecord) Tags(key string) ([]string, bool) {
	t, ok := r.Values[key].([]string)
	return t, ok
}

// Report summarizes a completed ingestion for downstream analytics.
type Report struct {
	TotalRows          int `json:"totalRows"`
	MappedColumnCount  int `json:"mappedColumnCount"`
	SkippedColumnCount int `json:"skippedColumnCount"`
	OverallConfidence  int `json:"overallConfidence"`
	RowsWithWarnings   int `json:"rowsWithWarnings"`
}
