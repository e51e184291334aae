package transcribe

import (
	"regexp"
	"strings"
)

var (
	// Latin tokens between CJK text are recognition noise ("OK", "um"
	// rendered as letters). Chinese grade dictation never contains them.
	latinNoiseRe = regexp.MustCompile(`[A-Za-z]+`)

	// runs of separators left behind after stripping
	repeatSepRe = regexp.MustCompile(`[,.;:!?]{2,}`)
	spaceRe     = regexp.MustCompile(`\s+`)

	clauseSplitRe = regexp.MustCompile(`[,，]`)
)

// fullwidth punctuation and digits mapped to their ASCII forms
var punctReplacer = strings.NewReplacer(
	"，", ",", "。", ".", "！", "!", "？", "?",
	"；", ";", "：", ":", "、", ",",
	"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
	"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
)

// Postprocess cleans raw model output into parser-ready text. It
// normalizes fullwidth punctuation and digits, strips Latin noise tokens,
// truncates prompt leakage, collapses clauses the model stuttered twice,
// and squeezes the separators all of that leaves behind.
func Postprocess(raw string, promptKeywords []string) string {
	text := punctReplacer.Replace(raw)
	text = latinNoiseRe.ReplaceAllString(text, "")
	text = truncateLeakage(text, promptKeywords)
	text = collapseClauses(text)
	text = repeatSepRe.ReplaceAllString(text, ",")
	text = spaceRe.ReplaceAllString(text, "")
	return strings.Trim(text, ",.;:!? ")
}

// truncateLeakage handles the model echoing the priming prompt before the
// actual dictation. When a prompt phrase appears and real content (号 or 分)
// follows it, everything up to and including the last phrase is discarded.
func truncateLeakage(text string, keywords []string) string {
	cut := -1
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if i := strings.LastIndex(text, kw); i >= 0 && i+len(kw) > cut {
			cut = i + len(kw)
		}
	}
	if cut < 0 {
		return text
	}
	rest := text[cut:]
	if strings.ContainsRune(rest, '号') || strings.ContainsRune(rest, '分') {
		return rest
	}
	// prompt phrases but no dictation after them: the whole thing is leakage
	return ""
}

// collapseClauses removes consecutive identical comma-separated clauses,
// an artifact of the model repeating itself on trailing echo.
func collapseClauses(text string) string {
	parts := clauseSplitRe.Split(text, -1)
	if len(parts) < 2 {
		return text
	}
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ",")
}
