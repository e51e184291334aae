// Package parse extracts (identifier, score) entries from normalized
// Mandarin grade-dictation transcripts.
//
// The grammar is informal spoken Chinese: a sequence number ("3号") or a
// student name (2–4 CJK characters) followed by a score ("95分"). One
// utterance may dictate several students back to back, with or without
// separators ("1号10分2号20分"). All parsing is pure text transformation;
// malformed input yields no entries, never an error.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind discriminates the two identifier forms a speaker can use.
type Kind int

const (
	// KindSequence is a spoken ordinal ("N号") addressing the Nth roster row.
	KindSequence Kind = iota

	// KindName is a student name of 2–4 CJK characters.
	KindName
)

// String returns the kind's wire/log name.
func (k Kind) String() string {
	if k == KindSequence {
		return "sequence"
	}
	return "name"
}

// Entry is one parsed (identifier, score) pair. Entries are immutable value
// objects; Score is always within [0, 100].
type Entry struct {
	Kind       Kind
	Identifier string
	Score      float64
}

var (
	scoreRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)分`)
	numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
	seqRe    = regexp.MustCompile(`第?(\d+)号(?:学生)?`)
	nameRe   = regexp.MustCompile(`\p{Han}{2,4}`)

	// pairRe drives the combined multi-entry scan: repeated
	// (sequence-number, score) pairs with no digits allowed between the 号
	// and 分 markers, so run-on speech without separators still splits
	// cleanly.
	pairRe = regexp.MustCompile(`第?(\d+)号[^0-9]*?(\d+(?:\.\d+)?)分`)

	separatorRe = regexp.MustCompile(`[，,。．.；;、\s]+`)

	// decimalDotRe marks dots that are decimal points, not sentence
	// separators, so splitSegments leaves them alone.
	decimalDotRe = regexp.MustCompile(`(\d)\.(\d)`)
)

// stoplist holds filler words that must never be taken as a student name.
var stoplist = map[string]struct{}{
	"分": {}, "号": {}, "行": {}, "第": {}, "个": {},
	"学生": {}, "成绩": {}, "分数": {}, "序号": {},
}

// Parse extracts a single entry from text. It returns false when no valid
// (identifier, score) pair can be found: no number at all, a score outside
// [0, 100], or no identifier that survives the stoplist.
//
// The score is taken from the first "<number>分" occurrence. When no 分
// marker is present the last bare number in the string is used instead,
// since scores are customarily spoken last. The fallback is a heuristic and
// misfires when an identifier number trails the score. A sequence
// identifier ("N号") always takes precedence over a name candidate.
func Parse(text string) (Entry, bool) {
	text = strings.TrimSpace(Normalize(text))
	if text == "" {
		return Entry{}, false
	}

	score, ok := extractScore(text)
	if !ok {
		return Entry{}, false
	}

	if m := seqRe.FindStringSubmatch(text); m != nil {
		return Entry{Kind: KindSequence, Identifier: m[1], Score: score}, true
	}

	for _, cand := range nameRe.FindAllString(text, -1) {
		if _, stopped := stoplist[cand]; !stopped {
			return Entry{Kind: KindName, Identifier: cand, Score: score}, true
		}
	}

	return Entry{}, false
}

// ParseMultiple extracts all entries dictated in one utterance, preserving
// the left-to-right order in which they were spoken.
//
// Strategy, in order:
//
//  1. Combined scan: repeated (sequence-number, score) pairs matched
//     directly over the normalized text, which handles run-on speech with
//     no separators.
//  2. Separator split: the text is split on commas, periods, and whitespace
//     runs and each segment parsed independently.
//  3. Whole-string fallback: a single Parse over the full text.
//
// Entries with out-of-range scores are skipped, not clamped.
func ParseMultiple(text string) []Entry {
	normalized := strings.TrimSpace(Normalize(text))
	if normalized == "" {
		return nil
	}

	var entries []Entry
	for _, m := range pairRe.FindAllStringSubmatch(normalized, -1) {
		score, err := strconv.ParseFloat(m[2], 64)
		if err != nil || score < 0 || score > 100 {
			continue
		}
		entries = append(entries, Entry{Kind: KindSequence, Identifier: m[1], Score: score})
	}
	if len(entries) > 0 {
		return entries
	}

	for _, segment := range splitSegments(normalized) {
		if segment == "" {
			continue
		}
		if e, ok := Parse(segment); ok {
			entries = append(entries, e)
		}
	}
	if len(entries) > 0 {
		return entries
	}

	if e, ok := Parse(normalized); ok {
		entries = append(entries, e)
	}
	return entries
}

// splitSegments splits text on separator runs. An ASCII dot doubles as a
// transcribed 。 and as a decimal point, so dots between digits are shielded
// before the split and restored after.
func splitSegments(text string) []string {
	shielded := decimalDotRe.ReplaceAllString(text, "$1\x00$2")
	segments := separatorRe.Split(shielded, -1)
	for i, s := range segments {
		segments[i] = strings.ReplaceAll(s, "\x00", ".")
	}
	return segments
}

// extractScore finds the spoken score in an already-normalized string.
func extractScore(text string) (score float64, ok bool) {
	var raw string
	if m := scoreRe.FindStringSubmatch(text); m != nil {
		raw = m[1]
	} else {
		numbers := numberRe.FindAllString(text, -1)
		if len(numbers) == 0 {
			return 0, false
		}
		// Heuristic: scores are spoken last. Known to misfire when an
		// identifier number trails the score.
		raw = numbers[len(numbers)-1]
	}

	score, err := strconv.ParseFloat(raw, 64)
	if err != nil || score < 0 || score > 100 {
		return 0, false
	}
	return score, true
}
