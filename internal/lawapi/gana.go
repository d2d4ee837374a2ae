package lawapi

import "strings"

// hangulJamo lists the 19 initial consonants in jamo order.
var hangulJamo = []rune{
	'ㄱ', 'ㄲ', 'ㄴ', 'ㄷ', 'ㄸ', 'ㄹ', 'ㅁ', 'ㅂ', 'ㅃ', 'ㅅ', 'ㅆ',
	'ㅇ', 'ㅈ', 'ㅉ', 'ㅊ', 'ㅋ', 'ㅌ', 'ㅍ', 'ㅎ',
}

// initialGanaMap maps initial-consonant index to the upstream gana code.
var initialGanaMap = []string{
	"ga", "kka", "na", "da", "tta", "ra", "ma", "ba", "ppa",
	"sa", "ssa", "a", "ja", "jja", "cha", "ka", "ta", "pa", "ha",
}

// GanaValue derives the gana browse code from the initial consonant of the
// query's first character. Returns "" when the query does not start with
// hangul; the upstream API then searches without the gana parameter.
func GanaValue(query string) string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return ""
	}

	first := []rune(trimmed)[0]

	// Composed syllable block (가..힣): the initial consonant index is the
	// syllable offset divided by the 588 combinations per initial.
	if first >= 0xAC00 && first <= 0xD7A3 {
		idx := int(first-0xAC00) / 588
		if idx < len(initialGanaMap) {
			return initialGanaMap[idx]
		}
		return ""
	}

	// Bare jamo (ㄱ..ㅎ).
	for i, jamo := range hangulJamo {
		if first == jamo {
			return initialGanaMap[i]
		}
	}
	return ""
}

// SplitQueries splits a comma-separated query string into trimmed non-empty
// sub-queries.
func SplitQueries(query string) []string {
	parts := strings.Split(query, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
