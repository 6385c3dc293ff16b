package subtitle

import (
	"fmt"
	"testing"

	"github.com/gerard-labs/subtranscript-rag/internal/model"
)

func makeBlocks(n int, textLen int) []model.SubtitleBlock {
	blocks := make([]model.SubtitleBlock, n)
	text := ""
	for i := 0; i < textLen; i++ {
		text += "x"
	}
	for i := 0; i < n; i++ {
		blocks[i] = model.SubtitleBlock{
			Index:        i + 1,
			StartTime:    fmt.Sprintf("00:00:%02d,000", i),
			EndTime:      fmt.Sprintf("00:00:%02d,000", i+1),
			Text:         text,
			StartSeconds: float64(i),
			EndSeconds:   float64(i + 1),
		}
	}
	return blocks
}

func TestChunker_NeverSplitsABlock(t *testing.T) {
	blocks := makeBlocks(10, 50)
	c := NewChunker(120, 20)
	chunks, err := c.Chunk(blocks, "s.srt")
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, ch := range chunks {
		if ch.Metadata.NumBlocks < 1 {
			t.Errorf("chunk has NumBlocks = %d", ch.Metadata.NumBlocks)
		}
		if ch.Metadata.EndSeconds < ch.Metadata.StartSeconds {
			t.Errorf("chunk end_seconds < start_seconds")
		}
	}
}

func TestChunker_OverlapSeedsTailBlocks(t *testing.T) {
	blocks := makeBlocks(20, 30)
	c := NewChunker(150, 60)
	chunks, err := c.Chunk(blocks, "s.srt")
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks to observe overlap, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Metadata.StartIndex > chunks[i-1].Metadata.EndIndex {
			continue // no overlap possible if previous chunk had only one block
		}
		if chunks[i].Metadata.StartIndex > chunks[i-1].Metadata.EndIndex+1 {
			t.Errorf("chunk %d starts past a gap from the previous chunk", i)
		}
	}
}

func TestChunker_TrailingBufferAlwaysEmitted(t *testing.T) {
	blocks := makeBlocks(3, 10)
	c := NewChunker(1000, 150)
	chunks, err := c.Chunk(blocks, "s.srt")
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected single trailing chunk, got %d", len(chunks))
	}
	if chunks[0].Metadata.NumBlocks != 3 {
		t.Errorf("expected all 3 blocks in trailing chunk, got %d", chunks[0].Metadata.NumBlocks)
	}
}

func TestChunker_EmptyBlocksErrors(t *testing.T) {
	c := NewChunker(800, 150)
	if _, err := c.Chunk(nil, "s.srt"); err == nil {
		t.Error("expected error for empty block list")
	}
}
