package ingest

import "testing"

// ----------------------------------------------------------------------------
// NormalizeLabel Tests
// ----------------------------------------------------------------------------

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Agent(s)", "agents"},
		{"  Loop   Status ", "loop status"},
		{"Closing-Date", "closing date"},
		{"sale_price", "sale price"},
		{"MLS #", "mls"},
		{"Buy/Sell Side", "buy sell side"},
		{"Précio", "precio"},
		{"Commission %", "commission"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		if got := NormalizeLabel(tt.input); got != tt.want {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// ----------------------------------------------------------------------------
// Registry Tests
// ----------------------------------------------------------------------------

func TestFields_DeterministicOrder(t *testing.T) {
	first := Fields()
	second := Fields()

	if len(first) == 0 {
		t.Fatal("no canonical fields registered")
	}
	for i := range first {
		if first[i].Key != second[i].Key {
			t.Fatalf("field order not stable: %q vs %q at %d", first[i].Key, second[i].Key, i)
		}
	}

	// Required fields sort first.
	seenOptional := false
	for _, f := range first {
		if !f.Required {
			seenOptional = true
		} else if seenOptional {
			t.Errorf("required field %q sorted after an optional field", f.Key)
		}
	}
}

func TestRequiredKeys(t *testing.T) {
	keys := RequiredKeys()
	want := []string{"agents", "price", "status"}

	if len(keys) != len(want) {
		t.Fatalf("RequiredKeys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestFieldByKey(t *testing.T) {
	f, ok := FieldByKey("price")
	if !ok {
		t.Fatal("price field not registered")
	}
	if f.Type != TypeCurrency {
		t.Errorf("price type = %v, want TypeCurrency", f.Type)
	}
	if !f.Required {
		t.Error("price should be required")
	}

	if _, ok := FieldByKey("nope"); ok {
		t.Error("unknown key should not resolve")
	}
}

func TestRegister_PanicsOnDuplicateKey(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Register should panic on duplicate key")
		}
	}()
	Register(CanonicalField{Key: "status", Label: "Dup"})
}
