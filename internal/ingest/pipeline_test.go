package ingest

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

// TestPipeline_EndToEnd drives a dotloop-shaped export through the whole
// pipeline: tokenize, match, confirm, build.
func TestPipeline_EndToEnd(t *testing.T) {
	input := "Loop Status,Sale Price,Agent(s)\r\n" +
		`Closed,"$412,500","Jane Doe, Sam Lee"` + "\r\n"

	in, err := Begin(strings.NewReader(input), DefaultMatcherConfig())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if in.Headerless {
		t.Fatal("labeled file detected as headerless")
	}

	for _, m := range in.Session().Matches() {
		if m.Confidence < 90 {
			t.Errorf("%q confidence = %d, want >= 90", m.OriginalHeader, m.Confidence)
		}
		if m.NeedsMapping {
			t.Errorf("%q should not need mapping", m.OriginalHeader)
		}
	}

	if missing, err := in.Session().Confirm(); err != nil || missing != nil {
		t.Fatalf("Confirm() = %v, %v; want success", missing, err)
	}

	it, err := in.Records()
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if !it.Next() {
		t.Fatal("expected one record")
	}
	rec := it.Record()

	if status, _ := rec.Text("status"); status != "Closed" {
		t.Errorf("status = %q, want Closed", status)
	}
	price, ok := rec.Decimal("price")
	if !ok || !price.Equal(decimal.NewFromInt(412500)) {
		t.Errorf("price = %v, want 412500", price)
	}
	agents, _ := rec.Tags("agents")
	if len(agents) != 2 || agents[0] != "Jane Doe" || agents[1] != "Sam Lee" {
		t.Errorf("agents = %v, want [Jane Doe, Sam Lee]", agents)
	}
	if len(rec.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", rec.Warnings)
	}

	if it.Next() {
		t.Error("expected exactly one record")
	}

	rep := in.Report()
	if rep.TotalRows != 1 || rep.MappedColumnCount != 3 || rep.SkippedColumnCount != 0 {
		t.Errorf("Report = %+v", rep)
	}
	if rep.OverallConfidence != 100 {
		t.Errorf("OverallConfidence = %d, want 100", rep.OverallConfidence)
	}
	if rep.RowsWithWarnings != 0 {
		t.Errorf("RowsWithWarnings = %d, want 0", rep.RowsWithWarnings)
	}
}

// TestPipeline_Headerless exercises synthetic header generation and manual
// reconciliation of a file whose first row is already data.
func TestPipeline_Headerless(t *testing.T) {
	input := "Closed,450000,4/5/2024\nActive,515000,6/1/2024\n"

	in, err := Begin(strings.NewReader(input), DefaultMatcherConfig())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if !in.Headerless {
		t.Fatal("numeric/date first row should be detected as headerless")
	}
	if len(in.Header) != 3 || in.Header[0] != "Column 1" {
		t.Fatalf("Header = %v, want synthetic Column N labels", in.Header)
	}
	if in.TotalRows() != 2 {
		t.Errorf("TotalRows = %d, want 2 (row 0 reclassified as data)", in.TotalRows())
	}

	s := in.Session()
	for header, key := range map[string]string{
		"Column 1": "status",
		"Column 2": "price",
		"Column 3": "closing_date",
	} {
		if err := s.SetMapping(header, key); err != nil {
			t.Fatal(err)
		}
	}

	missing, err := s.Confirm()
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 || missing[0] != "agents" {
		t.Fatalf("missing = %v, want [agents]", missing)
	}

	// Reassign the date column to satisfy the agents requirement.
	if err := s.SetMapping("Column 3", "agents"); err != nil {
		t.Fatal(err)
	}
	if missing, err := s.Confirm(); err != nil || missing != nil {
		t.Fatalf("Confirm() = %v, %v; want success", missing, err)
	}

	it, err := in.Records()
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for it.Next() {
		count++
	}
	if count != 2 {
		t.Errorf("records = %d, want 2", count)
	}
}

// TestPipeline_EmptyInput verifies the only fatal parse condition.
func TestPipeline_EmptyInput(t *testing.T) {
	_, err := Begin(strings.NewReader("\n   \n"), DefaultMatcherConfig())
	if err == nil {
		t.Fatal("Begin() on blank input should fail")
	}
}

// TestPipeline_RecordsBeforeConfirm verifies the reconciliation gate.
func TestPipeline_RecordsBeforeConfirm(t *testing.T) {
	in, err := Begin(strings.NewReader("Loop Status,Sale Price,Agent(s)\nClosed,1,Jane\n"), DefaultMatcherConfig())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := in.Records(); err != ErrNotConfirmed {
		t.Errorf("Records() before confirm = %v, want ErrNotConfirmed", err)
	}
}

// confirmedIngestion builds an ingestion with one warning row (a price
// that fails coercion) and one clean row, confirmed and ready to iterate.
func confirmedIngestion(t *testing.T) *Ingestion {
	t.Helper()
	input := "Loop Status,Sale Price,Agent(s)\n" +
		"Closed,N/A,Jane\n" +
		"Active,250000,Sam\n"

	in, err := Begin(strings.NewReader(input), DefaultMatcherConfig())
	if err != nil {
		t.Fatal(err)
	}
	if missing, err := in.Session().Confirm(); err != nil || missing != nil {
		t.Fatalf("Confirm() = %v, %v; want success", missing, err)
	}
	return in
}

// TestReport_ConcurrentWithRecordPass overlaps a full record drain with
// repeated report reads on the same ingestion.
func TestReport_ConcurrentWithRecordPass(t *testing.T) {
	in := confirmedIngestion(t)

	it, err := in.Records()
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for it.Next() {
		}
	}()
	for i := 0; i < 100; i++ {
		_ = in.Report()
	}
	<-done

	if got := in.Report().RowsWithWarnings; got != 1 {
		t.Errorf("RowsWithWarnings after drain = %d, want 1", got)
	}
}

// TestReport_StableAcrossRecordPasses verifies that creating a later,
// undrained iterator does not reset the warning count of a finished pass.
func TestReport_StableAcrossRecordPasses(t *testing.T) {
	in := confirmedIngestion(t)

	it, err := in.Records()
	if err != nil {
		t.Fatal(err)
	}
	for it.Next() {
	}
	if got := in.Report().RowsWithWarnings; got != 1 {
		t.Fatalf("RowsWithWarnings = %d, want 1", got)
	}

	// A fresh pass, as a summary request starts one.
	if _, err := in.Records(); err != nil {
		t.Fatal(err)
	}
	if got := in.Report().RowsWithWarnings; got != 1 {
		t.Errorf("RowsWithWarnings after fresh pass = %d, want 1", got)
	}
}
