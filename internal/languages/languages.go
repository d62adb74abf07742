package languages

import "strings"

// Language pairs a short code with its display label. The order of Supported
// determines dropdown order in the presentation layer.
type Language struct {
	Code  string
	Label string
}

// Supported lists every language the ASR server and translator accept.
var Supported = []Language{
	{"zh", "zh (中文)"},
	{"en", "en (English)"},
	{"yue", "yue (廣東話)"},
	{"ja", "ja (日本語)"},
	{"ko", "ko (한국어)"},
	{"ar", "ar (Arabic)"},
	{"de", "de (Deutsch)"},
	{"fr", "fr (Français)"},
	{"es", "es (Español)"},
	{"pt", "pt (Português)"},
	{"id", "id (Indonesia)"},
	{"it", "it (Italiano)"},
	{"ru", "ru (Русский)"},
	{"th", "th (ไทย)"},
	{"vi", "vi (Tiếng Việt)"},
	{"tr", "tr (Türkçe)"},
	{"hi", "hi (हिन्दी)"},
	{"ms", "ms (Malay)"},
	{"nl", "nl (Nederlands)"},
	{"sv", "sv (Svenska)"},
	{"da", "da (Dansk)"},
	{"fi", "fi (Suomi)"},
	{"pl", "pl (Polski)"},
	{"cs", "cs (Čeština)"},
	{"fil", "fil (Filipino)"},
	{"fa", "fa (فارسی)"},
	{"el", "el (Ελληνικά)"},
	{"hu", "hu (Magyar)"},
	{"mk", "mk (Македонски)"},
	{"ro", "ro (Română)"},
}

// Arrow separates source and target codes in a direction string ("en→zh").
// ParseDirection also accepts the ASCII form asciiArrow for hand-typed input.
const (
	Arrow      = "→"
	asciiArrow = "->"
)

// Name returns the human-readable name for a language code ("en" → "English").
// Unknown codes are returned unchanged.
func Name(code string) string {
	for _, l := range Supported {
		if l.Code == code {
			open := strings.IndexByte(l.Label, '(')
			if open >= 0 {
				return strings.TrimSuffix(l.Label[open+1:], ")")
			}
		}
	}
	return code
}

// CodeToLabel returns the display label for a code, or the code itself when unknown.
func CodeToLabel(code string) string {
	for _, l := range Supported {
		if l.Code == code {
			return l.Label
		}
	}
	return code
}

// LabelToCode returns the code for a display label. Unknown labels fall back to
// the first whitespace-separated token, which is the code by convention.
func LabelToCode(label string) string {
	for _, l := range Supported {
		if l.Label == label {
			return l.Code
		}
	}
	if i := strings.IndexByte(label, ' '); i > 0 {
		return label[:i]
	}
	return label
}

// Direction is an ordered source→target language pair.
type Direction struct {
	Source string
	Target string
}

// DefaultDirection is used when a direction string cannot be parsed.
var DefaultDirection = Direction{Source: "en", Target: "zh"}

// ParseDirection parses "en→zh" (or the ASCII form "en->zh") into a Direction.
// Malformed input falls back to DefaultDirection, matching the tolerant
// behavior the presentation layer relies on.
func ParseDirection(s string) Direction {
	parts := strings.SplitN(s, Arrow, 2)
	if len(parts) != 2 {
		parts = strings.SplitN(s, asciiArrow, 2)
	}
	if len(parts) == 2 {
		src := strings.TrimSpace(parts[0])
		tgt := strings.TrimSpace(parts[1])
		if src != "" && tgt != "" {
			return Direction{Source: src, Target: tgt}
		}
	}
	return DefaultDirection
}

// String renders the direction as "src→tgt".
func (d Direction) String() string {
	return d.Source + Arrow + d.Target
}

// Swapped returns the direction with source and target exchanged.
func (d Direction) Swapped() Direction {
	return Direction{Source: d.Target, Target: d.Source}
}
