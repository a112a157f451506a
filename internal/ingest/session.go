package ingest

// session.go holds the human-in-the-loop reconciliation state: user
// decisions layered over automatic header matches, a completeness gate,
// and the header signature used to key persisted mapping presets.

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrSessionConfirmed is returned when a mapping mutation or a second
	// Confirm arrives after the session has been frozen.
	ErrSessionConfirmed = errors.New("reconciliation session already confirmed")

	// ErrNotConfirmed is returned when records are requested before the
	// session has passed the confirm gate.
	ErrNotConfirmed = errors.New("reconciliation session not confirmed")
)

// Assignment is one entry of the reconciliation state, exposed to the
// mapping UI.
type Assignment struct {
	Header     string    `json:"header"`
	FieldKey   string    `json:"fieldKey,omitempty"` // empty when skipped or unresolved
	Skipped    bool      `json:"skipped"`
	UserSet    bool      `json:"userSet"`
	AssignedAt time.Time `json:"assignedAt,omitzero"`
}

// columnState tracks the effective mapping decision for one column.
type columnState struct {
	match      HeaderMatch
	key        string // effective canonical key, "" when none
	decided    bool   // an auto match was accepted or a user/preset decision exists
	skipped    bool   // explicit "never map this column"
	userSet    bool
	assignedAt time.Time
}

// Session reconciles automatic header matches with user overrides.
//
// All methods are safe for concurrent use; in practice one mapping UI
// drives a session, but the HTTP surface gives no such guarantee.
type Session struct {
	mu        sync.Mutex
	columns   []columnState
	confirmed bool
}

// NewSession seeds reconciliation state from automatic match results.
//
// Confident automatic matches are accepted as provisional assignments in
// column order. When two columns auto-match the same canonical field the
// later column wins and the earlier one reverts to needing review, so the
// session never starts in a state that violates the uniqueness invariant.
func NewSession(matches []HeaderMatch) *Session {
	s := &Session{columns: make([]columnState, len(matches))}

	taken := make(map[string]int) // canonical key -> column index
	for i, m := range matches {
		s.columns[i] = columnState{match: m}
		if m.NeedsMapping || m.MatchedField == "" {
			continue
		}
		if prev, dup := taken[m.MatchedField]; dup {
			s.columns[prev].key = ""
			s.columns[prev].decided = false
			s.columns[prev].match.NeedsMapping = true
		}
		taken[m.MatchedField] = i
		s.columns[i].key = m.MatchedField
		s.columns[i].decided = true
		s.columns[i].assignedAt = time.Now()
	}

	return s
}

// SetMapping records a user decision for the column with the given
// original header. An empty key means "skip this column" — never map it.
//
// If the chosen canonical key is already assigned to a different header,
// that assignment is revoked and the displaced column reverts to needing
// review. Duplicate mappings are never silently allowed.
func (s *Session) SetMapping(header, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.confirmed {
		return ErrSessionConfirmed
	}

	idx := -1
	for i := range s.columns {
		if s.columns[i].match.OriginalHeader == header {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("unknown header %q", header)
	}

	if key != "" {
		if _, ok := FieldByKey(key); !ok {
			return fmt.Errorf("unknown canonical field %q", key)
		}
		// Last assignment wins: displace any other column holding this key.
		for i := range s.columns {
			if i != idx && s.columns[i].key == key {
				s.columns[i].key = ""
				s.columns[i].decided = false
				s.columns[i].skipped = false
				s.columns[i].userSet = false
				s.columns[i].match.NeedsMapping = true
			}
		}
	}

	col := &s.columns[idx]
	col.key = key
	col.decided = true
	col.skipped = key == ""
	col.userSet = true
	col.assignedAt = time.Now()
	return nil
}

// Confirm validates that every required canonical field is mapped.
//
// On success the mapping is frozen and record building is unlocked; the
// session accepts no further mutations. On failure it returns the ordered
// list of missing required field keys without changing any state, and may
// be called again after further SetMapping calls.
func (s *Session) Confirm() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.confirmed {
		return nil, ErrSessionConfirmed
	}

	mapped := make(map[string]bool)
	for i := range s.columns {
		if s.columns[i].decided && s.columns[i].key != "" {
			mapped[s.columns[i].key] = true
		}
	}

	var missing []string
	for _, key := range RequiredKeys() {
		if !mapped[key] {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return missing, nil
	}

	s.confirmed = true
	return nil, nil
}

// Confirmed reports whether the mapping has been frozen.
func (s *Session) Confirmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed
}

// Matches returns the current effective view of every column, in column
// order: automatic results overlaid with user decisions. A user-mapped
// column reports confidence 100; a skipped column needs no review.
func (s *Session) Matches() []HeaderMatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]HeaderMatch, len(s.columns))
	for i := range s.columns {
		col := s.columns[i]
		m := col.match
		if col.userSet {
			m.MatchedField = col.key
			m.NeedsMapping = false
			if col.skipped {
				m.Confidence = 0
			} else {
				m.Confidence = 100
			}
		} else if col.decided {
			m.MatchedField = col.key
			m.NeedsMapping = false
		}
		out[i] = m
	}
	return out
}

// State returns the reconciliation state entries for the mapping UI.
func (s *Session) State() []Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Assignment, len(s.columns))
	for i := range s.columns {
		col := s.columns[i]
		out[i] = Assignment{
			Header:     col.match.OriginalHeader,
			FieldKey:   col.key,
			Skipped:    col.skipped,
			UserSet:    col.userSet,
			AssignedAt: col.assignedAt,
		}
	}
	return out
}

// OverallConfidence aggregates the session's effective matches.
func (s *Session) OverallConfidence() int {
	return OverallConfidence(s.Matches())
}

// Mapping returns the effective originalHeader -> canonicalKey mapping.
// Skipped and unresolved columns are omitted.
func (s *Session) Mapping() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string)
	for i := range s.columns {
		if s.columns[i].decided && s.columns[i].key != "" {
			out[s.columns[i].match.OriginalHeader] = s.columns[i].key
		}
	}
	return out
}

// columnKeys returns the effective canonical key per column position,
// empty for skipped or unresolved columns. Used by the record builder.
func (s *Session) columnKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, len(s.columns))
	for i := range s.columns {
		if s.columns[i].decided {
			keys[i] = s.columns[i].key
		}
	}
	return keys
}

// ApplyPreset layers a persisted header -> canonicalKey mapping over the
// session, as if the user had made each decision by hand. Headers in the
// preset that do not exist in this file are ignored; a structurally
// identical upload applies cleanly and can be confirmed without review.
func (s *Session) ApplyPreset(mapping map[string]string) error {
	// Deterministic application order so last-wins displacement cannot
	// depend on map iteration.
	for i := range s.columns {
		s.mu.Lock()
		header := s.columns[i].match.OriginalHeader
		s.mu.Unlock()

		key, ok := mapping[header]
		if !ok {
			continue
		}
		if err := s.SetMapping(header, key); err != nil {
			return fmt.Errorf("apply preset for %q: %w", header, err)
		}
	}
	return nil
}

// HeaderSignature fingerprints a header row for preset lookup. Two files
// whose headers normalize identically (same labels, same order) share a
// signature, so a returning export shape can skip reconciliation.
func HeaderSignature(headers []string) string {
	h := sha256.New()
	for i, raw := range headers {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		h.Write([]byte(NormalizeLabel(raw)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
