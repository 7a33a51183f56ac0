// Package notes holds the pure note-building helpers: derived metadata,
// topic and language inference, tag handling, and the idempotent backfill
// used by the startup reconciler.
package notes

import (
	"regexp"
	"sort"
	"strings"
)

var stopwords = func() map[string]bool {
	words := strings.Fields(
		"the a an and or but for with without on in at to from of by this that " +
			"those these is are was were be been being i you he she it we they them " +
			"me my your our their as not just into over under again more most some " +
			"any few many much very can could should would")
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}()

var wordRe = regexp.MustCompile(`[A-Za-z]{3,}`)

// InferTopics returns up to three frequency-ranked keywords from the title
// (preferred) or the text, stopword-filtered, ties broken alphabetically.
func InferTopics(text, title string) []string {
	source := strings.TrimSpace(title)
	if source == "" {
		source = strings.TrimSpace(text)
	}
	if source == "" {
		return nil
	}
	freq := map[string]int{}
	for _, w := range wordRe.FindAllString(strings.ToLower(source), -1) {
		if !stopwords[w] {
			freq[w]++
		}
	}
	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > 3 {
		keys = keys[:3]
	}
	return keys
}
