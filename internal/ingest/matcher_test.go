package ingest

import "testing"

// ----------------------------------------------------------------------------
// matchHeader Tests
// ----------------------------------------------------------------------------

func TestMatchHeaders_ExactSynonyms(t *testing.T) {
	tests := []struct {
		header string
		field  string
	}{
		{"Loop Status", "status"},
		{"Sale Price", "price"},
		{"Agent(s)", "agents"},
		{"AGENTS", "agents"},
		{"closing date", "closing_date"},
		{"GCI", "commission"},
		{"mls #", "mls_number"},
	}

	cfg := DefaultMatcherConfig()
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			m := matchHeader(tt.header, cfg)
			if m.MatchedField != tt.field {
				t.Errorf("MatchedField = %q, want %q", m.MatchedField, tt.field)
			}
			if m.Confidence != 100 {
				t.Errorf("Confidence = %d, want 100", m.Confidence)
			}
			if m.NeedsMapping {
				t.Error("exact synonym should not need mapping")
			}
		})
	}
}

func TestMatchHeaders_FuzzyMatch(t *testing.T) {
	cfg := DefaultMatcherConfig()

	// Misspelled but unambiguous.
	m := matchHeader("Comission", cfg)
	if m.MatchedField != "commission" {
		t.Fatalf("MatchedField = %q, want commission", m.MatchedField)
	}
	if m.Confidence < 80 || m.Confidence >= 100 {
		t.Errorf("Confidence = %d, want fuzzy score in [80,100)", m.Confidence)
	}
	if m.NeedsMapping {
		t.Error("strong fuzzy match should not need mapping")
	}
}

func TestMatchHeaders_LowConfidenceNeedsMapping(t *testing.T) {
	cfg := DefaultMatcherConfig()

	for _, header := range []string{"Zq Xv", "Internal Ref 77", ""} {
		m := matchHeader(header, cfg)
		if !m.NeedsMapping {
			t.Errorf("matchHeader(%q).NeedsMapping = false, want true", header)
		}
		if m.Confidence >= cfg.Threshold {
			t.Errorf("matchHeader(%q).Confidence = %d, want < %d", header, m.Confidence, cfg.Threshold)
		}
	}
}

func TestMatchHeaders_Deterministic(t *testing.T) {
	cfg := DefaultMatcherConfig()
	headers := []string{"Loop Status", "Sale Pricing", "Agent", "Mystery Column"}

	first := MatchHeaders(headers, cfg)
	for i := 0; i < 10; i++ {
		again := MatchHeaders(headers, cfg)
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("match %d differs between runs: %+v vs %+v", j, first[j], again[j])
			}
		}
	}

	// Column order must not influence per-header results.
	reversed := MatchHeaders([]string{"Mystery Column", "Agent", "Sale Pricing", "Loop Status"}, cfg)
	if first[0] != reversed[3] || first[2] != reversed[1] {
		t.Error("per-header result depends on column order")
	}
}

func TestMatchHeaders_ThresholdConfig(t *testing.T) {
	strict := MatcherConfig{Threshold: 95, TieMargin: 5}

	m := matchHeader("Comission", strict)
	if !m.NeedsMapping {
		t.Error("fuzzy match below a strict threshold should need mapping")
	}
}

// ----------------------------------------------------------------------------
// OverallConfidence Tests
// ----------------------------------------------------------------------------

func TestOverallConfidence(t *testing.T) {
	tests := []struct {
		name    string
		matches []HeaderMatch
		want    int
	}{
		{
			name: "required fields weigh double",
			matches: []HeaderMatch{
				{MatchedField: "price", Confidence: 100}, // required, weight 2
				{MatchedField: "tags", Confidence: 50},   // optional, weight 1
			},
			want: 83, // (200 + 50) / 3
		},
		{
			name: "unmatched columns weigh single",
			matches: []HeaderMatch{
				{MatchedField: "status", Confidence: 100},
				{Confidence: 0, NeedsMapping: true},
			},
			want: 66, // (200 + 0) / 3
		},
		{
			name:    "empty input",
			matches: nil,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverallConfidence(tt.matches); got != tt.want {
				t.Errorf("OverallConfidence() = %d, want %d", got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Benchmarks
// ----------------------------------------------------------------------------

func BenchmarkMatchHeaders(b *testing.B) {
	headers := []string{
		"Loop Status", "Sale Pricing", "Agent(s)", "Property Addr",
		"Close Dt", "Gross Comm", "Lead Src", "MLS#", "Notes",
	}
	cfg := DefaultMatcherConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MatchHeaders(headers, cfg)
	}
}
