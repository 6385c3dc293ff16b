// Package classifier assigns each incoming query a retrieval plan: how many
// candidates to fetch and whether to route straight to lexical search.
package classifier

import (
	"strings"
	"unicode"

	"github.com/gerard-labs/subtranscript-rag/internal/model"
)

var conjunctions = []string{
	"y", "o", "además", "también", "asimismo", "por otro lado", "en relación", "respecto a",
}

var complexKeywords = []string{
	"compara", "contrasta", "analiza", "profundiza", "explica detalladamente",
	"todos los", "todas las", "exhaustivamente", "completamente", "en profundidad",
	"detallado", "extenso", "amplio",
}

var listingKeywords = []string{
	"lista", "enumera", "cuáles son", "qué son", "menciona todos", "dame todos", "dame todas",
}

var asksForNamesPatterns = []string{
	"nombre", "nombres", "quien", "quienes", "guardianes", "maestros",
}

// Config carries the K table, name vocabulary, and collective-name roster a
// Classifier is built from.
type Config struct {
	KSimple     int
	KMedia      int
	KCompleja   int
	KExhaustiva int

	NameVocabulary  []string
	CollectiveNames []string
}

// Classifier turns a raw query string into a QueryPlan.
type Classifier struct {
	cfg          Config
	nameVocabSet map[string]struct{}
}

// New builds a Classifier from cfg.
func New(cfg Config) *Classifier {
	set := make(map[string]struct{}, len(cfg.NameVocabulary))
	for _, n := range cfg.NameVocabulary {
		set[strings.ToLower(n)] = struct{}{}
	}
	return &Classifier{cfg: cfg, nameVocabSet: set}
}

// Classify scores the query's complexity, selects K, and decides whether to
// force lexical-only routing. When exhaustive is true it overrides the
// score-derived level unconditionally.
func (c *Classifier) Classify(query string, exhaustive bool) model.QueryPlan {
	words := strings.Fields(query)
	indicators := map[string]bool{}

	if exhaustive {
		return model.QueryPlan{
			K:            c.cfg.KExhaustiva,
			Level:        model.LevelExhaustiva,
			Reason:       "Búsqueda exhaustiva activada manualmente",
			Indicators:   indicators,
			ForceLexical: c.forceLexical(query, words),
		}
	}

	wordCount := len(words)
	multipleQuestions := strings.Count(query, "?") > 1
	hasConjunctions := containsAny(query, conjunctions)
	hasComplexKeywords := containsAny(query, complexKeywords)
	hasMultipleSubjects := strings.Count(query, ",") >= 2
	asksForListing := containsAny(query, listingKeywords)

	indicators["multiple_questions"] = multipleQuestions
	indicators["has_conjunctions"] = hasConjunctions
	indicators["has_complex_keywords"] = hasComplexKeywords
	indicators["has_multiple_subjects"] = hasMultipleSubjects
	indicators["asks_for_listing"] = asksForListing

	score := 0
	switch {
	case wordCount > 40:
		score += 3
	case wordCount > 25:
		score += 2
	case wordCount > 15:
		score += 1
	}
	if multipleQuestions {
		score += 2
	}
	if hasComplexKeywords {
		score += 2
	}
	if asksForListing {
		score += 2
	}
	if hasConjunctions {
		score += 1
	}
	if hasMultipleSubjects {
		score += 1
	}

	level, k, reason := levelForScore(score, c.cfg)

	return model.QueryPlan{
		K:            k,
		Level:        level,
		Reason:       reason,
		Indicators:   indicators,
		ForceLexical: c.forceLexical(query, words),
	}
}

func levelForScore(score int, cfg Config) (model.ComplexityLevel, int, string) {
	switch {
	case score >= 5:
		return model.LevelCompleja, cfg.KCompleja, "complexity score >= 5"
	case score >= 2:
		return model.LevelMedia, cfg.KMedia, "complexity score >= 2"
	default:
		return model.LevelSimple, cfg.KSimple, "complexity score < 2"
	}
}

// forceLexical reports whether the query should short-circuit to lexical
// retrieval: a likely proper noun, a name-vocabulary hit, or an
// asks-for-names phrasing.
func (c *Classifier) forceLexical(query string, words []string) bool {
	for _, w := range words {
		if len(w) > 2 && hasUpperFirst(w) {
			return true
		}
	}
	for _, w := range words {
		if _, ok := c.nameVocabSet[strings.ToLower(trimPunct(w))]; ok {
			return true
		}
	}
	return containsAny(query, asksForNamesPatterns)
}

// CollectiveQuery reports whether the query asks about the broad named
// collective ("guardianes" or "maestros"), which triggers the supplementary
// per-name lookup subroutine.
func (c *Classifier) CollectiveQuery(query string) bool {
	lower := strings.ToLower(query)
	asksForNames := containsAny(lower, asksForNamesPatterns)
	return asksForNames && (strings.Contains(lower, "guardianes") || strings.Contains(lower, "maestros"))
}

// CollectiveNames returns the closed roster of proper names to issue
// supplementary per-name lookups for.
func (c *Classifier) CollectiveNames() []string {
	return c.cfg.CollectiveNames
}

func containsAny(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func hasUpperFirst(word string) bool {
	for _, r := range word {
		return unicode.IsUpper(r)
	}
	return false
}

func trimPunct(word string) string {
	return strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
