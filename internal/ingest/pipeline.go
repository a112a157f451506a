package ingest

// pipeline.go wires the stages together for a single uploaded file:
// tokenize, detect a missing header row, match headers, then gate record
// building behind the reconciliation session.

import (
	"fmt"
	"io"
	"sync"
)

// Ingestion is the state of one file moving through the pipeline. Create
// one per upload with Begin; the zero value is not usable. Methods are
// safe for concurrent use: a record download and a report request may
// overlap on the same ingestion.
type Ingestion struct {
	// Header is the effective header row: the file's first row, or a
	// synthetic "Column N" row when the file was detected as headerless.
	Header []string

	// Headerless reports whether the first row was reclassified as data.
	Headerless bool

	rows    [][]string // data rows only
	session *Session

	statsMu     sync.Mutex
	rowsScanned int // rows produced by the furthest record pass
	warnRows    int // warning rows among those
}

// Begin parses raw CSV content and runs automatic header matching.
//
// The returned Ingestion exposes the match results for the mapping UI and
// a Session for reconciliation. ErrEmptyInput is the only fatal parse
// condition.
func Begin(r io.Reader, cfg MatcherConfig) (*Ingestion, error) {
	rows, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	header := rows[0]
	data := rows[1:]
	headerless := IsHeaderless(rows[0])
	if headerless {
		header = SyntheticHeader(len(rows[0]))
		data = rows
	}

	return &Ingestion{
		Header:     header,
		Headerless: headerless,
		rows:       data,
		session:    NewSession(MatchHeaders(header, cfg)),
	}, nil
}

// Session returns the reconciliation session for this file.
func (in *Ingestion) Session() *Session {
	return in.session
}

// Signature fingerprints this file's header row for preset lookup.
func (in *Ingestion) Signature() string {
	return HeaderSignature(in.Header)
}

// TotalRows returns the number of data rows in the file.
func (in *Ingestion) TotalRows() int {
	return len(in.rows)
}

// Records returns a fresh lazy record iterator. The session must be
// confirmed first; building records against a provisional mapping is
// never allowed.
func (in *Ingestion) Records() (*RecordIterator, error) {
	builder, err := NewRecordBuilder(in.session, in.rows)
	if err != nil {
		return nil, err
	}
	it := builder.Records()
	it.progress = in.noteProgress
	return it, nil
}

// noteProgress keeps the counters of whichever record pass has read the
// most rows. Every pass walks the same rows in the same order, so the
// furthest pass carries the definitive warning count for its prefix.
func (in *Ingestion) noteProgress(rowsRead, warningRows int) {
	in.statsMu.Lock()
	if rowsRead > in.rowsScanned {
		in.rowsScanned = rowsRead
		in.warnRows = warningRows
	}
	in.statsMu.Unlock()
}

// Report summarizes the ingestion. RowsWithWarnings reflects the rows
// scanned so far by the furthest record pass, so drain an iterator first
// for final numbers.
func (in *Ingestion) Report() Report {
	mapped, skipped := 0, 0
	for _, key := range in.session.columnKeys() {
		if key == "" {
			skipped++
		} else {
			mapped++
		}
	}

	rep := Report{
		TotalRows:          len(in.rows),
		MappedColumnCount:  mapped,
		SkippedColumnCount: skipped,
		OverallConfidence:  in.session.OverallConfidence(),
	}
	in.statsMu.Lock()
	rep.RowsWithWarnings = in.warnRows
	in.statsMu.Unlock()
	return rep
}
