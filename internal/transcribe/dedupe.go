package transcribe

import "github.com/antzucaro/matchr"

// Similarity returns the edit-distance ratio of two strings in [0,1],
// computed over runes so a one-character CJK substitution costs the same
// as a one-letter one. 1 means identical.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	dist := matchr.Levenshtein(a, b)
	return 1 - float64(dist)/float64(longest)
}
