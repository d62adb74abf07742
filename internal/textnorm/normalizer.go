// Package textnorm converts recognized Chinese text from Simplified to
// Traditional script with Taiwanese phrasing, so subtitles read naturally
// for Traditional Chinese viewers regardless of what script the recognizer
// emits.
package textnorm

import (
	"fmt"
	"strings"

	"github.com/longbridgeapp/opencc"
)

// Normalizer rewrites Simplified Chinese text to Traditional Chinese using
// the s2twp conversion (Taiwan standard with common phrase substitutions).
// Non-Chinese text passes through unchanged.
type Normalizer struct {
	converter *opencc.OpenCC
}

// NewNormalizer loads the s2twp dictionaries. The dictionaries ship embedded
// with the conversion library, so this needs no external files.
func NewNormalizer() (*Normalizer, error) {
	converter, err := opencc.New("s2twp")
	if err != nil {
		return nil, fmt.Errorf("failed to load s2twp conversion: %w", err)
	}
	return &Normalizer{converter: converter}, nil
}

// Normalize converts text to Traditional Chinese when the recognizer reported
// a Chinese language or the text itself contains CJK ideographs. Conversion
// failures fall back to the original text rather than dropping a subtitle.
func (n *Normalizer) Normalize(language, text string) string {
	if text == "" {
		return text
	}
	if !IsChineseLanguage(language) && !ContainsCJK(text) {
		return text
	}
	converted, err := n.converter.Convert(text)
	if err != nil {
		return text
	}
	return converted
}

// IsChineseLanguage reports whether a recognizer language label names a
// Chinese variant. Labels vary by model ("zh", "chinese", "Mandarin Chinese",
// "cantonese"), so this matches loosely on the common substrings.
func IsChineseLanguage(language string) bool {
	l := strings.ToLower(language)
	return strings.Contains(l, "chinese") ||
		strings.Contains(l, "mandarin") ||
		strings.Contains(l, "cantonese") ||
		l == "zh" || strings.HasPrefix(l, "zh-") || l == "yue"
}

// ContainsCJK reports whether text contains at least one character in the
// CJK Unified Ideographs block.
func ContainsCJK(text string) bool {
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			return true
		}
	}
	return false
}
