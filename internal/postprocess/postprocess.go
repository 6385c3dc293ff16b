// Package postprocess applies the three ordered transformations to raw
// generative-model output: sub-second timestamp normalization, structured
// annotation of citation markers and quoted literals for presentation layers
// to color however they like, and non-fatal structural validation of the
// citation contract the prompt asked the model to honor.
package postprocess

import (
	"regexp"
	"sort"

	"github.com/gerard-labs/subtranscript-rag/internal/apierr"
)

// Kind tags an annotated text segment for a presentation layer to style.
type Kind string

const (
	KindPlain    Kind = "plain"
	KindCitation Kind = "citation"
	KindQuote    Kind = "quote"
)

// Segment is one run of text tagged with its kind. Concatenating Text across
// all segments in order reconstructs Result.Text exactly.
type Segment struct {
	Kind Kind
	Text string
}

// Result is the outcome of Process: the normalized answer text, its
// presentation-agnostic annotation, and any structural warnings.
type Result struct {
	Text     string
	Segments []Segment
	Warnings []apierr.ValidationWarning
}

var subSecondPattern = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}),\d{3}`)

var citationPattern = regexp.MustCompile(`\[Documento:[^\]]*\|\s*Timestamp:\s*\d{2}:\d{2}:\d{2}\s*-->\s*\d{2}:\d{2}:\d{2}\]`)

var quotePattern = regexp.MustCompile(`"[^"]+"`)

// validationWindow bounds how far a citation marker may sit from the quote
// it introduces (or vice versa) before the structural check flags it.
const validationWindow = 40

// Process runs the three transformations in order and returns their combined
// result. Process never fails: malformed output degrades to warnings, not
// errors, matching the contract that generation failures are the only hard
// failure mode in this stage.
func Process(raw string) Result {
	text := stripSubSecondPrecision(raw)
	return Result{
		Text:     text,
		Segments: annotate(text),
		Warnings: validate(text),
	}
}

// stripSubSecondPrecision removes millisecond precision from any
// HH:MM:SS,mmm timestamp appearing in raw model output, wherever it occurs.
func stripSubSecondPrecision(raw string) string {
	return subSecondPattern.ReplaceAllString(raw, "$1")
}

// match is one citation-or-quote span found in text, used to walk both
// pattern families in a single left-to-right pass.
type match struct {
	start, end int
	kind       Kind
}

func annotate(text string) []Segment {
	var matches []match
	for _, loc := range citationPattern.FindAllStringIndex(text, -1) {
		matches = append(matches, match{loc[0], loc[1], KindCitation})
	}
	for _, loc := range quotePattern.FindAllStringIndex(text, -1) {
		matches = append(matches, match{loc[0], loc[1], KindQuote})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	segments := make([]Segment, 0, len(matches)*2+1)
	pos := 0
	for _, m := range matches {
		if m.start < pos {
			// Overlapping with a previously consumed span (a quote mark
			// captured inside a citation marker's bracket text); skip it.
			continue
		}
		if m.start > pos {
			segments = append(segments, Segment{Kind: KindPlain, Text: text[pos:m.start]})
		}
		segments = append(segments, Segment{Kind: m.kind, Text: text[m.start:m.end]})
		pos = m.end
	}
	if pos < len(text) {
		segments = append(segments, Segment{Kind: KindPlain, Text: text[pos:]})
	}
	return segments
}

// validate checks the two structural invariants the prompt contract
// requires: every citation marker is followed by a quote within a small
// window, and every quote is preceded by a citation marker within that same
// window. Violations are warnings, never errors.
func validate(text string) []apierr.ValidationWarning {
	citations := citationPattern.FindAllStringIndex(text, -1)
	quotes := quotePattern.FindAllStringIndex(text, -1)

	var warnings []apierr.ValidationWarning

	for _, c := range citations {
		if !hasQuoteWithin(c[1], quotes, validationWindow) {
			warnings = append(warnings, apierr.ValidationWarning{
				Message: "citation marker has no quoted excerpt within the expected window",
			})
		}
	}
	for _, q := range quotes {
		if !hasCitationBefore(q[0], citations, validationWindow) {
			warnings = append(warnings, apierr.ValidationWarning{
				Message: "quoted excerpt is not preceded by a citation marker",
			})
		}
	}
	return warnings
}

func hasQuoteWithin(afterPos int, quotes [][]int, window int) bool {
	for _, q := range quotes {
		if q[0] >= afterPos && q[0] <= afterPos+window {
			return true
		}
	}
	return false
}

func hasCitationBefore(beforePos int, citations [][]int, window int) bool {
	for _, c := range citations {
		if c[1] <= beforePos && c[1] >= beforePos-window {
			return true
		}
	}
	return false
}
