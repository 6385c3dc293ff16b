package subtitle

import (
	"fmt"
	"strings"

	"github.com/gerard-labs/subtranscript-rag/internal/model"
)

// Chunker groups parsed subtitle blocks into overlapping chunks sized in
// characters, never splitting a block across two chunks.
type Chunker struct {
	chunkSize int // target characters per chunk
	overlap   int // tail-overlap budget in characters
}

// NewChunker builds a Chunker. Non-positive arguments fall back to the
// defaults the classifier and retriever are tuned against.
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap <= 0 {
		overlap = 150
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Chunk streams blocks into a growing buffer, emitting a chunk whenever the
// next block would push the buffer past chunkSize, then seeds the next
// buffer with a tail suffix of the chunk just emitted (youngest blocks
// first, up to overlap characters). Any trailing buffer is always emitted.
func (c *Chunker) Chunk(blocks []model.SubtitleBlock, source string) ([]model.Chunk, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("subtitle.Chunk: no blocks for %s", source)
	}

	var chunks []model.Chunk
	var buffer []model.SubtitleBlock
	bufferLen := 0

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		chunks = append(chunks, buildChunk(buffer, source))
	}

	for _, block := range blocks {
		if bufferLen+len(block.Text) > c.chunkSize && len(buffer) > 0 {
			flush()

			// Seed the next buffer with a tail suffix: take blocks from the
			// end, youngest first, while their cumulative text length
			// stays within the overlap budget.
			var overlapBlocks []model.SubtitleBlock
			overlapLen := 0
			for i := len(buffer) - 1; i >= 0; i-- {
				b := buffer[i]
				if overlapLen+len(b.Text) > c.overlap {
					break
				}
				overlapBlocks = append([]model.SubtitleBlock{b}, overlapBlocks...)
				overlapLen += len(b.Text)
			}
			buffer = overlapBlocks
			bufferLen = overlapLen
		}

		buffer = append(buffer, block)
		bufferLen += len(block.Text)
	}

	flush()

	return chunks, nil
}

// buildChunk renders a block run into a Chunk: each line carries a
// ms-stripped "[HH:MM:SS --> HH:MM:SS] " prefix, and metadata records the
// provenance of the first and last contained block.
func buildChunk(blocks []model.SubtitleBlock, source string) model.Chunk {
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		lines = append(lines, fmt.Sprintf("[%s --> %s] %s",
			stripMilliseconds(b.StartTime), stripMilliseconds(b.EndTime), b.Text))
	}
	content := strings.Join(lines, "\n")

	first, last := blocks[0], blocks[len(blocks)-1]
	meta := model.ChunkMetadata{
		Source:          source,
		StartTime:       first.StartTime,
		EndTime:         last.EndTime,
		StartSeconds:    first.StartSeconds,
		EndSeconds:      last.EndSeconds,
		StartIndex:      first.Index,
		EndIndex:        last.Index,
		NumBlocks:       len(blocks),
		DurationSeconds: last.EndSeconds - first.StartSeconds,
		TimestampRange:  fmt.Sprintf("%s → %s", first.StartTime, last.EndTime),
	}

	return model.Chunk{
		ID:       fmt.Sprintf("%s:%d-%d", source, first.Index, last.Index),
		Content:  content,
		Metadata: meta,
	}
}
