// Package categorizer assigns a coarse domain and an optional program to a
// note using static keyword tables and the admin-managed program registry.
// It is pure: no I/O, no randomness, deterministic for a given input.
package categorizer

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"voicenotes-go/internal/types"
)

// DefaultDomain is used when no keyword table scores.
const DefaultDomain = "general"

type domainEntry struct {
	name     string
	keywords []string
}

// Ordered so that equal confidences resolve to the first-declared domain.
var domainTable = []domainEntry{
	{"programming", []string{
		"code", "deploy", "api", "bug", "refactor", "commit", "backend",
		"frontend", "script", "library", "framework", "svelte", "python",
		"fastapi",
	}},
	{"operations", []string{
		"schedule", "budget", "process", "handoff", "meeting", "supplier",
		"logistics", "ops", "vendor",
	}},
	{"personal", []string{
		"journal", "health", "family", "travel", "weekend",
	}},
}

var tokenRe = regexp.MustCompile(`[a-zA-Z0-9_]+`)

func tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

func scoreKeywords(tokens map[string]bool, keywords []string) (int, []string) {
	var matched []string
	for _, kw := range keywords {
		if tokens[kw] {
			matched = append(matched, kw)
		}
	}
	return len(matched), matched
}

// programKeywords derives the scoring keyword set for a program: the explicit
// keywords list when present, otherwise up to 8 words longer than 3 characters
// taken from the description.
func programKeywords(p types.Program) []string {
	var keywords []string
	for _, kw := range p.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) > 0 {
		return keywords
	}
	for _, w := range tokenize(p.Description) {
		if len(w) > 3 {
			keywords = append(keywords, w)
			if len(keywords) == 8 {
				break
			}
		}
	}
	return keywords
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Categorize scores the note text against the static domain tables and the
// supplied program registry. It never fails; on empty input it returns the
// general domain with zero confidence.
func Categorize(text, title string, programs []types.Program) types.CategorizationResult {
	tokens := tokenize(title + " " + text)
	if len(tokens) == 0 {
		return types.CategorizationResult{
			Domain:     DefaultDomain,
			Confidence: 0.0,
			Rationale:  "No textual content to analyze.",
		}
	}
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	var result types.CategorizationResult
	bestConf := 0.0
	var bestMatched []string
	bestDomain := DefaultDomain
	for _, entry := range domainTable {
		score, matched := scoreKeywords(tokenSet, entry.keywords)
		if score == 0 {
			continue
		}
		confidence := math.Min(1.0, float64(score)/math.Max(3, float64(len(entry.keywords))/2))
		if confidence > bestConf {
			bestDomain = entry.name
			bestConf = confidence
			bestMatched = matched
		}
	}
	if bestConf == 0.0 {
		result = types.CategorizationResult{
			Domain:     DefaultDomain,
			Confidence: 0.1,
			Rationale:  "Defaulted to general domain (no keyword matches).",
		}
	} else {
		result = types.CategorizationResult{
			Domain:     bestDomain,
			Confidence: round2(bestConf),
			Rationale: fmt.Sprintf("Matched domain '%s' via keywords: %s.",
				bestDomain, strings.Join(bestMatched, ", ")),
		}
	}

	candidates := programs
	if result.Domain != DefaultDomain {
		var filtered []types.Program
		for _, p := range programs {
			if strings.ToLower(strings.TrimSpace(p.Domain)) == result.Domain {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	bestProgram := ""
	bestProgramScore := 0
	var bestProgramMatched []string
	usable := 0
	soleKey := ""
	for _, p := range candidates {
		key := strings.TrimSpace(p.Key)
		if key == "" {
			continue
		}
		usable++
		soleKey = key
		score, matched := scoreKeywords(tokenSet, programKeywords(p))
		if score > bestProgramScore {
			bestProgramScore = score
			bestProgram = key
			bestProgramMatched = matched
		}
	}
	// A lone candidate is still reported even without keyword evidence, at a
	// fixed low confidence.
	if bestProgram == "" && usable == 1 {
		bestProgram = soleKey
	}

	if bestProgram != "" {
		conf := 0.2
		if bestProgramScore > 0 {
			conf = round2(math.Min(1.0, float64(bestProgramScore)/3))
		}
		result.Program = bestProgram
		result.ProgramConfidence = &conf
		if len(bestProgramMatched) > 0 {
			result.ProgramRationale = fmt.Sprintf("Matched program keywords: %s.",
				strings.Join(bestProgramMatched, ", "))
		} else {
			result.ProgramRationale = "Chosen as highest-scoring program for domain."
		}
	}

	return result
}
