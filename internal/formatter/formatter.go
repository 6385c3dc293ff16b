// Package formatter renders a list of ranked chunks into the single context
// string the generation step consumes.
package formatter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gerard-labs/subtranscript-rag/internal/model"
)

var linePrefixPattern = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2} --> \d{2}:\d{2}:\d{2}\] `)

// Format renders chunks into a single context string: each entry as
// "Documento: <source>\n<content>", chunks separated by a blank-line-padded
// "---" line. If a chunk's content is missing the per-line timestamp prefix
// (legacy data), a single range-level prefix is synthesized from metadata.
func Format(chunks []model.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		content := ensureTimestampPrefix(c)
		parts = append(parts, fmt.Sprintf("Documento: %s\n%s", sourceLabel(c), content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func sourceLabel(c model.Chunk) string {
	if c.Metadata.Source != "" {
		return c.Metadata.Source
	}
	return c.ID
}

// ensureTimestampPrefix passes already-prefixed content through untouched;
// content with no embedded prefix gets a single synthesized range line from
// the chunk's top-level metadata.
func ensureTimestampPrefix(c model.Chunk) string {
	firstLine, _, _ := strings.Cut(c.Content, "\n")
	if linePrefixPattern.MatchString(firstLine) {
		return c.Content
	}
	if c.Metadata.StartTime == "" || c.Metadata.EndTime == "" {
		return c.Content
	}
	prefix := fmt.Sprintf("[%s --> %s] ", stripMilliseconds(c.Metadata.StartTime), stripMilliseconds(c.Metadata.EndTime))
	return prefix + c.Content
}

func stripMilliseconds(ts string) string {
	if idx := strings.IndexByte(ts, ','); idx >= 0 {
		return ts[:idx]
	}
	return ts
}
