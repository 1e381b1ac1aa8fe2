// Package language resolves the operator's language preference to a concrete
// tag. When the preference is "auto", the topic text is inspected for
// non-Latin script ranges; every rewrite call resolves through the same
// helper so one session cannot drift between languages.
package language

import "unicode"

// Auto is the preference value that triggers script detection.
const Auto = "auto"

// DefaultTag is used when no known script is detected in the topic.
const DefaultTag = "en"

// Resolve maps a preference plus topic text to a concrete language tag.
// Concrete preferences pass through untouched.
func Resolve(pref, topic string) string {
	if pref != "" && pref != Auto {
		return pref
	}
	return DetectTag(topic)
}

// DetectTag inspects the topic for characteristic script ranges.
// Kana wins over Han so Japanese text with kanji resolves to "ja".
func DetectTag(topic string) string {
	var hasKana, hasHangul, hasHan, hasCyrillic bool
	for _, r := range topic {
		switch {
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			hasKana = true
		case unicode.Is(unicode.Hangul, r):
			hasHangul = true
		case unicode.Is(unicode.Han, r):
			hasHan = true
		case unicode.Is(unicode.Cyrillic, r):
			hasCyrillic = true
		}
	}
	switch {
	case hasKana:
		return "ja"
	case hasHangul:
		return "ko"
	case hasHan:
		return "zh"
	case hasCyrillic:
		return "ru"
	}
	return DefaultTag
}
