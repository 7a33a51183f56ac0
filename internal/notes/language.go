package notes

import (
	"strings"
	"unicode"
)

type scriptEntry struct {
	code  string
	table *unicode.RangeTable
}

// Checked in order; Japanese kana before Han so mixed Japanese text does not
// come back as Chinese.
var scriptTable = []scriptEntry{
	{"ja", unicode.Hiragana},
	{"ja", unicode.Katakana},
	{"zh", unicode.Han},
	{"ko", unicode.Hangul},
	{"ru", unicode.Cyrillic},
	{"ar", unicode.Arabic},
	{"he", unicode.Hebrew},
	{"hi", unicode.Devanagari},
}

type latinLang struct {
	code      string
	stopwords []string
}

// Small per-language stopword sets for Latin-script text. Function words
// only, chosen to be distinctive across the set.
var latinLangs = []latinLang{
	{"en", []string{"the", "and", "is", "of", "to", "that", "with", "for", "was", "have"}},
	{"es", []string{"el", "la", "los", "las", "que", "es", "una", "para", "como", "pero"}},
	{"fr", []string{"le", "la", "les", "est", "une", "dans", "pour", "avec", "pas", "nous"}},
	{"de", []string{"der", "die", "das", "und", "ist", "nicht", "ein", "mit", "auf", "ich"}},
	{"it", []string{"il", "la", "che", "di", "è", "una", "per", "non", "sono", "con"}},
	{"pt", []string{"o", "a", "os", "que", "de", "um", "uma", "para", "não", "com"}},
	{"nl", []string{"de", "het", "een", "en", "van", "ik", "niet", "met", "zijn", "voor"}},
	{"sv", []string{"och", "att", "det", "som", "en", "på", "är", "av", "för", "med"}},
	{"da", []string{"og", "det", "at", "en", "den", "til", "er", "som", "på", "ikke"}},
	{"pl", []string{"i", "nie", "to", "się", "na", "jest", "że", "do", "jak", "ale"}},
	{"tr", []string{"bir", "ve", "bu", "için", "ile", "ama", "gibi", "çok", "daha", "ben"}},
	{"fi", []string{"ja", "on", "ei", "että", "se", "oli", "mutta", "kun", "niin", "hän"}},
}

// InferLanguage guesses a short language code from the note text. Non-Latin
// scripts are detected by Unicode ranges; Latin text goes through a stopword
// vote. Returns "und" when there is no signal.
func InferLanguage(text, title string) string {
	source := strings.TrimSpace(text)
	if source == "" {
		source = strings.TrimSpace(title)
	}
	if source == "" {
		return "und"
	}

	letters := 0
	scriptCounts := make(map[string]int)
	for _, r := range source {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		for _, entry := range scriptTable {
			if unicode.Is(entry.table, r) {
				scriptCounts[entry.code]++
				break
			}
		}
	}
	if letters == 0 {
		return "und"
	}
	bestScript, bestScriptCount := "", 0
	for _, entry := range scriptTable {
		if c := scriptCounts[entry.code]; c > bestScriptCount {
			bestScript, bestScriptCount = entry.code, c
		}
	}
	// A quarter of the letters in one script is treated as decisive.
	if bestScriptCount*4 >= letters {
		return bestScript
	}

	tokens := map[string]int{}
	for _, w := range strings.Fields(strings.ToLower(source)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if w != "" {
			tokens[w]++
		}
	}
	bestLang, bestVotes := "", 0
	for _, lang := range latinLangs {
		votes := 0
		for _, sw := range lang.stopwords {
			votes += tokens[sw]
		}
		if votes > bestVotes {
			bestLang, bestVotes = lang.code, votes
		}
	}
	if bestVotes == 0 {
		return "und"
	}
	return bestLang
}
