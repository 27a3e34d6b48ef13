// Package lang classifies query text into a supported language.
//
// Detection is heuristic (lexical and script signals) with English as a
// strong default: short, ambiguous, or unrecognized input classifies as
// English rather than failing. The detected language drives both the
// generation-language directive and the final normalization step.
package lang

import (
	"strings"
	"unicode"
)

// Language is the enumerated set of supported response languages.
// English is the primary language and the fallback for ambiguous input.
type Language int

const (
	English Language = iota
	Hindi
	Punjabi
	Bengali
	Tamil
	Telugu
	Marathi
	Gujarati
	Kannada
	Malayalam
	Spanish
	French
	German
	Chinese
	Arabic
)

// Code returns the ISO 639-1 code for the language.
func (l Language) Code() string {
	switch l {
	case English:
		return "en"
	case Hindi:
		return "hi"
	case Punjabi:
		return "pa"
	case Bengali:
		return "bn"
	case Tamil:
		return "ta"
	case Telugu:
		return "te"
	case Marathi:
		return "mr"
	case Gujarati:
		return "gu"
	case Kannada:
		return "kn"
	case Malayalam:
		return "ml"
	case Spanish:
		return "es"
	case French:
		return "fr"
	case German:
		return "de"
	case Chinese:
		return "zh"
	case Arabic:
		return "ar"
	}
	return "en"
}

// Name returns the English name of the language, used in prompts.
func (l Language) Name() string {
	switch l {
	case English:
		return "English"
	case Hindi:
		return "Hindi"
	case Punjabi:
		return "Punjabi"
	case Bengali:
		return "Bengali"
	case Tamil:
		return "Tamil"
	case Telugu:
		return "Telugu"
	case Marathi:
		return "Marathi"
	case Gujarati:
		return "Gujarati"
	case Kannada:
		return "Kannada"
	case Malayalam:
		return "Malayalam"
	case Spanish:
		return "Spanish"
	case French:
		return "French"
	case German:
		return "German"
	case Chinese:
		return "Chinese"
	case Arabic:
		return "Arabic"
	}
	return "English"
}

// IsEnglish reports whether l is the primary/fallback language.
func (l Language) IsEnglish() bool { return l == English }

// All returns every supported language, English first.
func All() []Language {
	return []Language{
		English, Hindi, Punjabi, Bengali, Tamil, Telugu, Marathi,
		Gujarati, Kannada, Malayalam, Spanish, French, German, Chinese, Arabic,
	}
}

// FromCode maps an ISO 639-1 code to a Language.
// Unknown codes map to English.
func FromCode(code string) Language {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range All() {
		if l.Code() == code {
			return l
		}
	}
	return English
}

// englishIndicators are common English words whose presence marks a query
// as English regardless of other signals. This prevents false detection on
// proper nouns like "thapar" or "patiala".
var englishIndicators = map[string]struct{}{
	"what": {}, "how": {}, "why": {}, "when": {}, "where": {}, "who": {},
	"is": {}, "are": {}, "the": {}, "a": {}, "an": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "can": {}, "could": {},
	"would": {}, "should": {}, "will": {}, "do": {}, "does": {},
	"tell": {}, "explain": {}, "describe": {}, "give": {}, "show": {},
	"help": {}, "please": {}, "thank": {}, "hello": {}, "hi": {}, "hey": {},
}

var latinStopwords = map[Language][]string{
	Spanish: {"qué", "cómo", "cuál", "cuáles", "cuándo", "dónde", "está", "son", "las", "los", "una", "para", "por", "hola", "gracias", "fecha", "fechas"},
	French:  {"quel", "quelle", "quelles", "quand", "où", "est", "sont", "les", "des", "une", "pour", "vous", "avec", "bonjour", "merci"},
	German:  {"was", "wie", "ist", "sind", "das", "der", "die", "und", "für", "wann", "wo", "nicht", "ich", "bitte", "danke"},
}

// scriptLanguages maps Unicode scripts to the language they imply.
// Devanagari maps to Hindi; Marathi shares the script and cannot be
// separated lexically, so Devanagari input classifies as Hindi.
var scriptLanguages = []struct {
	table *unicode.RangeTable
	lang  Language
}{
	{unicode.Devanagari, Hindi},
	{unicode.Gurmukhi, Punjabi},
	{unicode.Bengali, Bengali},
	{unicode.Tamil, Tamil},
	{unicode.Telugu, Telugu},
	{unicode.Gujarati, Gujarati},
	{unicode.Kannada, Kannada},
	{unicode.Malayalam, Malayalam},
	{unicode.Arabic, Arabic},
	{unicode.Han, Chinese},
}

// Detect classifies text into a supported language.
// It never fails; the worst case is an incorrect-but-valid classification,
// and ambiguous input falls back to English.
func Detect(text string) Language {
	text = strings.TrimSpace(text)
	if text == "" {
		return English
	}

	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		if _, ok := englishIndicators[strings.Trim(w, ".,!?;:'\"")]; ok {
			return English
		}
	}

	// Script histogram: a dominant non-Latin script decides the language.
	var totalLetters, latinLetters int
	scriptHits := make(map[Language]int)
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		totalLetters++
		if r < 128 || unicode.Is(unicode.Latin, r) {
			latinLetters++
			continue
		}
		for _, s := range scriptLanguages {
			if unicode.Is(s.table, r) {
				scriptHits[s.lang]++
				break
			}
		}
	}

	if totalLetters > 0 {
		best, bestCount := English, 0
		for l, n := range scriptHits {
			if n > bestCount || (n == bestCount && l < best) {
				best, bestCount = l, n
			}
		}
		if bestCount*2 > totalLetters {
			return best
		}
	}

	// Short mostly-Latin queries (including numeric-only input) default to
	// English to avoid false positives.
	if len(words) < 5 {
		if totalLetters == 0 || latinLetters*10 >= totalLetters*7 {
			return English
		}
	}

	// Latin-script languages: count stopword hits per language.
	best, bestCount := English, 0
	for l, stops := range latinStopwords {
		count := 0
		for _, w := range words {
			w = strings.Trim(w, ".,!?;:¿¡'\"")
			for _, s := range stops {
				if w == s {
					count++
					break
				}
			}
		}
		if count > bestCount || (count == bestCount && count > 0 && l < best) {
			best, bestCount = l, count
		}
	}
	if bestCount >= 2 {
		return best
	}

	return English
}
