package provider

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxTitleLen = 80

// Models asked for "exactly one title" still preface their answer or return a
// bulleted list often enough that the raw output needs cleanup before it can
// be stored as a note title.

var (
	prefaceRe    = regexp.MustCompile(`(?i)\bhere\s+(?:are|is)\b[^:\n]*:`)
	listMarkerRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
	emphasisRe   = regexp.MustCompile("[*_`#]+")
)

var titleSeparators = []string{" • ", " | ", " — ", ";"}

// NormalizeTitleOutput reduces raw model output to a single clean title line,
// at most 80 characters, never splitting a word. Returns "Untitled" when
// nothing usable survives.
func NormalizeTitleOutput(raw string) string {
	text := strings.TrimSpace(raw)
	if loc := prefaceRe.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
	}

	candidate := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		line = listMarkerRe.ReplaceAllString(line, "")
		line = emphasisRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line != "" {
			candidate = line
			break
		}
	}
	if candidate == "" {
		return "Untitled"
	}

	for _, sep := range titleSeparators {
		if idx := strings.Index(candidate, sep); idx > 0 {
			candidate = candidate[:idx]
		}
	}

	candidate = strings.Trim(candidate, `"'“”‘’`)
	candidate = strings.TrimRight(candidate, ".,:;!?")
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "Untitled"
	}

	return truncateAtWord(candidate, maxTitleLen)
}

// truncateAtWord cuts s to at most limit characters at a word boundary. A
// single word longer than the limit is cut hard. Limits are counted in runes,
// not bytes, so multibyte titles are never sliced mid-character.
func truncateAtWord(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	words := strings.Fields(s)
	out := ""
	for _, w := range words {
		next := w
		if out != "" {
			next = out + " " + w
		}
		if utf8.RuneCountInString(next) > limit {
			break
		}
		out = next
	}
	if out == "" {
		return string([]rune(s)[:limit])
	}
	return out
}
