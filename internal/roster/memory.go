package roster

import "fmt"

// Memory is an in-memory Store used in tests and dry runs. Scores live in
// a map keyed by sheet row; Save is a counter, not a persistence step.
type Memory struct {
	entries []Entry
	scores  map[int]float64
	saves   int
}

var _ Store = (*Memory)(nil)

// NewMemory creates a Memory store over the given entries. Row and
// Sequence are filled in when zero.
func NewMemory(entries []Entry) *Memory {
	out := make([]Entry, len(entries))
	copy(out, entries)
	for i := range out {
		if out[i].Sequence == 0 {
			out[i].Sequence = i + 1
		}
		if out[i].Row == 0 {
			out[i].Row = i + 2
		}
	}
	return &Memory{entries: out, scores: make(map[int]float64)}
}

func (m *Memory) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Memory) FindBySequence(seq int) (*Entry, bool) {
	for i := range m.entries {
		if m.entries[i].Sequence == seq {
			ent := m.entries[i]
			return &ent, true
		}
	}
	return nil, false
}

func (m *Memory) FindByID(id string) (*Entry, bool) {
	if found, ok := findID(m.entries, id); ok {
		ent := *found
		return &ent, true
	}
	return nil, false
}

func (m *Memory) FindByName(name string) (*Entry, bool) {
	if found, ok := bestNameMatch(m.entries, name); ok {
		ent := *found
		return &ent, true
	}
	return nil, false
}

func (m *Memory) Score(e *Entry) (float64, bool, error) {
	score, ok := m.scores[e.Row]
	return score, ok, nil
}

func (m *Memory) SetScore(e *Entry, score float64) error {
	if _, ok := m.FindBySequence(e.Sequence); !ok {
		return fmt.Errorf("roster: unknown row %d", e.Row)
	}
	m.scores[e.Row] = score
	return nil
}

func (m *Memory) ClearScore(e *Entry) error {
	delete(m.scores, e.Row)
	return nil
}

func (m *Memory) Save() error {
	m.saves++
	return nil
}

// Saves reports how many times Save was called.
func (m *Memory) Saves() int { return m.saves }

func (m *Memory) Close() error { return nil }
