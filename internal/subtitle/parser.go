// Package subtitle parses .srt transcript files into timestamped blocks and
// groups those blocks into overlapping chunks suitable for indexing.
package subtitle

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gerard-labs/subtranscript-rag/internal/apierr"
	"github.com/gerard-labs/subtranscript-rag/internal/model"
)

// blockPattern matches one SRT block: an ordinal line, a timestamp line, and
// one or more text lines, up to the next blank line or end of file.
var blockPattern = regexp.MustCompile(`(\d+)\r?\n(\d{2}:\d{2}:\d{2},\d{3}) --> (\d{2}:\d{2}:\d{2},\d{3})\r?\n([\s\S]*?)(?:\r?\n\r?\n|\z)`)

// Parser reads .srt files into SubtitleBlock slices.
type Parser struct{}

// NewParser returns a Parser. It holds no state; it exists as a value so
// callers inject it like the index and retrieval collaborators.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads filepath and extracts its subtitle blocks in order. UTF-8
// is assumed first; files that fail UTF-8 validation are re-read as Latin-1,
// matching corpora that mix encodings across files.
func (p *Parser) ParseFile(filepath string) ([]model.SubtitleBlock, error) {
	raw, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("subtitle.ParseFile: %w", err)
	}

	content := string(raw)
	if !utf8.ValidString(content) {
		content = latin1ToUTF8(raw)
	}

	blocks, err := p.Parse(content)
	if err != nil {
		return nil, apierr.NewMalformedCorpusEntry(filepath, err)
	}
	return blocks, nil
}

// ParsedFile pairs a corpus path with the blocks ParseFile extracted from it.
type ParsedFile struct {
	Path   string
	Blocks []model.SubtitleBlock
}

// FailedFile records a corpus entry that ParseDir could not parse.
type FailedFile struct {
	Path  string
	Cause error
}

// ParseDir walks dir and parses every .srt file found, in lexical order. A
// file that fails to parse is recorded in the returned failure list and
// skipped; it never aborts the walk, matching the corpus's tolerance for a
// handful of malformed entries in an otherwise large collection.
func (p *Parser) ParseDir(dir string) ([]ParsedFile, []FailedFile, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".srt") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subtitle.ParseDir: %w", err)
	}
	sort.Strings(paths)

	var parsed []ParsedFile
	var failed []FailedFile
	for _, path := range paths {
		blocks, err := p.ParseFile(path)
		if err != nil {
			failed = append(failed, FailedFile{Path: path, Cause: err})
			continue
		}
		parsed = append(parsed, ParsedFile{Path: path, Blocks: blocks})
	}
	return parsed, failed, nil
}

// Parse extracts subtitle blocks from already-decoded content.
func (p *Parser) Parse(content string) ([]model.SubtitleBlock, error) {
	matches := blockPattern.FindAllStringSubmatch(content, -1)
	blocks := make([]model.SubtitleBlock, 0, len(matches))
	for _, m := range matches {
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		start, end := m[2], m[3]
		text := strings.TrimSpace(m[4])
		if text == "" {
			continue
		}

		startSec, err := timestampToSeconds(start)
		if err != nil {
			return nil, fmt.Errorf("subtitle.Parse: block %d: %w", index, err)
		}
		endSec, err := timestampToSeconds(end)
		if err != nil {
			return nil, fmt.Errorf("subtitle.Parse: block %d: %w", index, err)
		}

		blocks = append(blocks, model.SubtitleBlock{
			Index:        index,
			StartTime:    start,
			EndTime:      end,
			Text:         text,
			StartSeconds: startSec,
			EndSeconds:   endSec,
		})
	}

	return blocks, nil
}

// timestampToSeconds converts "HH:MM:SS,mmm" to total seconds.
func timestampToSeconds(ts string) (float64, error) {
	timePart, msPart, ok := strings.Cut(ts, ",")
	if !ok {
		return 0, fmt.Errorf("timestamp %q missing milliseconds", ts)
	}
	parts := strings.Split(timePart, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("timestamp %q malformed", ts)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	s, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, err
	}
	ms, err := strconv.Atoi(msPart)
	if err != nil {
		return 0, err
	}
	return float64(h*3600+m*60+s) + float64(ms)/1000, nil
}

// stripMilliseconds drops the ",mmm" suffix from a "HH:MM:SS,mmm" timestamp.
func stripMilliseconds(ts string) string {
	if idx := strings.IndexByte(ts, ','); idx >= 0 {
		return ts[:idx]
	}
	return ts
}

// latin1ToUTF8 reinterprets each byte of raw as a Latin-1 code point and
// re-encodes it as UTF-8, the fallback path for files that aren't valid UTF-8.
func latin1ToUTF8(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw) * 2)
	for _, c := range raw {
		b.WriteRune(rune(c))
	}
	return b.String()
}
