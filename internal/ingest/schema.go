package ingest

// schema.go holds the canonical deal schema registry.
//
// The registry is populated once at startup (see fields.go) and is
// read-only thereafter, so it is safe to share across any number of
// concurrent ingestions.

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ValueType declares how a canonical field's cell values are coerced.
type ValueType int

const (
	TypeString ValueType = iota
	TypeNumber
	TypeCurrency
	TypeDate
	TypeTagList
)

// String returns the type name used in JSON payloads and log entries.
func (t ValueType) String() string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeCurrency:
		return "currency"
	case TypeDate:
		return "date"
	case TypeTagList:
		return "tagList"
	default:
		return "string"
	}
}

// CanonicalField is one entry in the fixed target schema the analytics
// layer expects. Synonyms are stored normalized (see NormalizeLabel).
type CanonicalField struct {
	Key      string    // Unique identifier: "closing_date"
	Label    string    // Display name: "Closing Date"
	Required bool      // Must be mapped before records can be built
	Type     ValueType // Coercion applied by the record builder
	Synonyms []string  // Normalized header labels that match exactly
}

var (
	registry   = make(map[string]CanonicalField)
	synonymIdx = make(map[string]string) // normalized synonym -> field key
	registryMu sync.RWMutex
)

// Register adds a canonical field to the registry.
// Panics if the key or any synonym is already registered; the schema is
// defined once at startup and collisions are programming errors.
func Register(f CanonicalField) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[f.Key]; exists {
		panic(fmt.Sprintf("canonical field already registered: %s", f.Key))
	}

	normalized := make([]string, 0, len(f.Synonyms)+1)
	seen := make(map[string]bool, len(f.Synonyms)+1)

	// The label itself always matches.
	for _, raw := range append([]string{f.Label}, f.Synonyms...) {
		s := NormalizeLabel(raw)
		if s == "" || seen[s] {
			continue
		}
		if owner, taken := synonymIdx[s]; taken {
			panic(fmt.Sprintf("synonym %q of field %s already owned by %s", s, f.Key, owner))
		}
		seen[s] = true
		normalized = append(normalized, s)
	}
	f.Synonyms = normalized

	for _, s := range normalized {
		synonymIdx[s] = f.Key
	}
	registry[f.Key] = f
}

// FieldByKey returns a canonical field by key.
func FieldByKey(key string) (CanonicalField, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := registry[key]
	return f, ok
}

// Fields returns all canonical fields, required first, then by key, for
// deterministic iteration everywhere matching and validation happen.
func Fields() []CanonicalField {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]CanonicalField, 0, len(registry))
	for _, f := range registry {
		result = append(result, f)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Required != result[j].Required {
			return result[i].Required
		}
		return result[i].Key < result[j].Key
	})
	return result
}

// RequiredKeys returns the keys of all required fields in sorted order.
func RequiredKeys() []string {
	var keys []string
	for _, f := range Fields() {
		if f.Required {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// synonymOwner returns the field key owning an exact normalized synonym.
func synonymOwner(normalized string) (string, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	key, ok := synonymIdx[normalized]
	return key, ok
}

// diacriticStripper decomposes characters and drops combining marks, so
// "Précio" and "Precio" normalize identically.
var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeLabel canonicalizes a header label for synonym comparison:
// fold diacritics, lowercase, turn separator punctuation (-_/.) into
// spaces, drop all other punctuation, and collapse internal whitespace.
//
// "Agent(s)" and "agents" normalize to the same string, as do
// "Closing-Date" and "closing date".
func NormalizeLabel(s string) string {
	if folded, _, err := transform.String(diacriticStripper, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '/' || r == '.' || unicode.IsSpace(r):
			b.WriteByte(' ')
		default:
			// Other punctuation disappears entirely: "Agent(s)" -> "agents".
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
