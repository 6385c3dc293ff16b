package sparseindex

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// nonWordPattern strips everything except word characters, whitespace, and
// the accented Spanish vowels/letters that \w alone would otherwise drop
// under an ASCII-only word-character definition. \p{L} and \p{N} already
// cover letters and digits including accents, so this set is the
// intersection Python's Unicode-aware \w would keep.
var nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// Tokenize is the single tokenizer shared by indexing and querying: Unicode-
// normalize, lowercase, strip punctuation while keeping letters/digits/
// underscore/whitespace, split on whitespace, and drop empty tokens.
// Index-time and query-time callers MUST both go through this function, or
// BM25 scores become incomparable. NFC normalization first means a
// decomposed accented letter (a base vowel plus a combining mark, which
// some subtitle encoders emit) tokenizes identically to its precomposed
// form.
func Tokenize(text string) []string {
	normalized := norm.NFC.String(text)
	lower := strings.ToLower(normalized)
	cleaned := nonWordPattern.ReplaceAllString(lower, " ")

	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
