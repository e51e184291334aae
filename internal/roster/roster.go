// Package roster manages the student grade sheet. It resolves the
// identifiers the parser extracts (row sequence numbers, student IDs,
// names) to sheet rows and writes scores back.
package roster

import (
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/scorevox/scorevox/internal/parse"
)

// nameMatchThreshold is the minimum Jaro-Winkler similarity for a fuzzy
// name match. Transcription confuses homophones, so exact equality is too
// strict for Chinese names. 0.8 admits a three-character name with one
// wrong character while keeping two-character near-misses out.
const nameMatchThreshold = 0.8

// Entry is one student row.
type Entry struct {
	// Row is the 1-based sheet row the student occupies.
	Row int

	// Sequence is the 1-based position among student rows, the "N" in "第N号".
	Sequence int

	// ID is the student identifier column value, empty if the sheet has none.
	ID string

	// Name is the student name column value.
	Name string
}

// Store is the abstraction over a grade sheet.
//
// Implementations need not be safe for concurrent use. The host confines
// each Store to one goroutine.
type Store interface {
	// Entries returns all student rows in sheet order.
	Entries() []Entry

	// FindBySequence resolves a spoken sequence number to a row.
	FindBySequence(seq int) (*Entry, bool)

	// FindByID resolves a student ID, tolerating partial IDs: exact match
	// first, then digits-only equality, then suffix and substring matches on
	// the digits.
	FindByID(id string) (*Entry, bool)

	// FindByName resolves a name, exact first, then the closest fuzzy match
	// above the similarity threshold.
	FindByName(name string) (*Entry, bool)

	// Score reads a student's current score. ok is false when the cell is
	// blank.
	Score(e *Entry) (score float64, ok bool, err error)

	// SetScore writes a student's score. The change is in memory until Save.
	SetScore(e *Entry, score float64) error

	// ClearScore blanks a student's score cell. Used by undo when the cell
	// held no score before the write.
	ClearScore(e *Entry) error

	// Save persists pending changes.
	Save() error

	// Close releases the underlying sheet without saving.
	Close() error
}

// Resolve maps one parsed utterance entry to a roster row. Sequence
// identifiers try positional lookup first and fall back to ID lookup, so
// "3号" works both for the third row and for a student ID ending in 3.
func Resolve(s Store, e parse.Entry) (*Entry, bool) {
	switch e.Kind {
	case parse.KindSequence:
		if n, err := strconv.Atoi(e.Identifier); err == nil {
			if found, ok := s.FindBySequence(n); ok {
				return found, true
			}
		}
		return s.FindByID(e.Identifier)
	case parse.KindName:
		return s.FindByName(e.Identifier)
	}
	return nil, false
}

// bestNameMatch is shared by Store implementations.
func bestNameMatch(entries []Entry, name string) (*Entry, bool) {
	for i := range entries {
		if entries[i].Name == name {
			return &entries[i], true
		}
	}
	bestScore := nameMatchThreshold
	best := -1
	for i := range entries {
		if entries[i].Name == "" {
			continue
		}
		if s := matchr.JaroWinkler(entries[i].Name, name, false); s >= bestScore {
			bestScore = s
			best = i
		}
	}
	if best < 0 {
		return nil, false
	}
	return &entries[best], true
}

func digitsOnly(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out = append(out, r)
		}
	}
	return string(out)
}

// findID is shared by Store implementations. Match order mirrors how
// students abbreviate IDs when speaking: exact, digits-only equality,
// then suffix, then substring.
func findID(entries []Entry, id string) (*Entry, bool) {
	for i := range entries {
		if entries[i].ID != "" && entries[i].ID == id {
			return &entries[i], true
		}
	}
	want := digitsOnly(id)
	if want == "" {
		return nil, false
	}
	for i := range entries {
		if digitsOnly(entries[i].ID) == want {
			return &entries[i], true
		}
	}
	for i := range entries {
		if d := digitsOnly(entries[i].ID); d != "" && strings.HasSuffix(d, want) {
			return &entries[i], true
		}
	}
	for i := range entries {
		if d := digitsOnly(entries[i].ID); d != "" && strings.Contains(d, want) {
			return &entries[i], true
		}
	}
	return nil, false
}
