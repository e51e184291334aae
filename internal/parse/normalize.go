package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// traditionalToSimplified maps the traditional-Chinese characters the
// recognizer commonly emits to their simplified forms. Covers the numeral
// and unit words the grammar depends on plus frequent surname characters so
// name lookup is not derailed by script variants.
var traditionalToSimplified = map[rune]rune{
	'號': '号', '個': '个', '點': '点', '學': '学', '績': '绩',
	'數': '数', '幾': '几', '兩': '两', '萬': '万', '與': '与',
	'壹': '一', '貳': '二', '參': '三', '肆': '四', '伍': '五',
	'陸': '六', '柒': '七', '捌': '八', '玖': '九', '拾': '十',
	'佰': '百', '仟': '千',
	'張': '张', '陳': '陈', '劉': '刘', '楊': '杨', '黃': '黄',
	'吳': '吴', '趙': '赵', '孫': '孙', '馬': '马', '鄭': '郑',
	'謝': '谢', '羅': '罗', '鍾': '钟', '葉': '叶', '盧': '卢',
	'賴': '赖', '馮': '冯', '鄧': '邓', '許': '许', '韓': '韩',
	'龍': '龙', '錢': '钱', '週': '周', '衛': '卫', '蘇': '苏',
}

// digitValue maps single Chinese digit characters to their values.
var digitValue = map[rune]int{
	'零': 0, '〇': 0,
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9,
}

const cnDigit = "[一二三四五六七八九]"

// Numeral patterns are applied widest-first so that a substring already
// rewritten to Arabic digits is never re-processed by a narrower pass.
var (
	// hundredsRe matches 一百五十三, 一百零五, 三百二, 一百, 百二.
	hundredsRe = regexp.MustCompile(
		"(" + cnDigit + ")?百(?:零(" + cnDigit + ")|(" + cnDigit + ")(?:十(" + cnDigit + ")?)?)?")

	// tensRe matches 三十七, 三十.
	tensRe = regexp.MustCompile("(" + cnDigit + ")十(" + cnDigit + ")?")

	// tenRe matches the bare-ten forms 十二 and 十.
	tenRe = regexp.MustCompile("十(" + cnDigit + ")?")
)

// Normalize rewrites a raw transcript into the canonical form the parser
// operates on. Passes run in a fixed order:
//
//  1. Traditional → simplified character substitution.
//  2. Filler collapse: the recognizer artifact "个号" becomes "号".
//  3. Chinese numeral → Arabic numeral conversion in decreasing magnitude
//     order: hundreds, then tens, then "十X" forms, then single digits.
//
// Normalize is total and idempotent; it never fails.
func Normalize(text string) string {
	text = strings.Map(func(r rune) rune {
		if s, ok := traditionalToSimplified[r]; ok {
			return s
		}
		return r
	}, text)

	text = strings.ReplaceAll(text, "个号", "号")

	text = hundredsRe.ReplaceAllStringFunc(text, rewriteHundreds)
	text = tensRe.ReplaceAllStringFunc(text, rewriteTens)
	text = tenRe.ReplaceAllStringFunc(text, rewriteTen)

	return strings.Map(func(r rune) rune {
		if d, ok := digitValue[r]; ok {
			return rune('0' + d)
		}
		return r
	}, text)
}

// rewriteHundreds computes the value of one hundreds-scale numeral.
//
// A single trailing digit with neither 十 nor 零 reads as tens, matching the
// colloquial form: 三百二 is 320, while 三百零二 is 302. Leftmost-longest
// matching with magnitude-descending pass order keeps the grammar
// deterministic.
func rewriteHundreds(m string) string {
	g := hundredsRe.FindStringSubmatch(m)
	h := 1
	if g[1] != "" {
		h = digitValue[firstRune(g[1])]
	}
	v := h * 100
	switch {
	case g[2] != "": // 零X → units
		v += digitValue[firstRune(g[2])]
	case g[3] != "" && g[4] != "": // Y十Z
		v += digitValue[firstRune(g[3])]*10 + digitValue[firstRune(g[4])]
	case g[3] != "": // Y十 or bare trailing digit, both read as tens
		v += digitValue[firstRune(g[3])] * 10
	}
	return strconv.Itoa(v)
}

func rewriteTens(m string) string {
	g := tensRe.FindStringSubmatch(m)
	v := digitValue[firstRune(g[1])] * 10
	if g[2] != "" {
		v += digitValue[firstRune(g[2])]
	}
	return strconv.Itoa(v)
}

func rewriteTen(m string) string {
	g := tenRe.FindStringSubmatch(m)
	v := 10
	if g[1] != "" {
		v += digitValue[firstRune(g[1])]
	}
	return strconv.Itoa(v)
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
