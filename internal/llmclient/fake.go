package llmclient

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// FakeEmbedder deterministically maps text to a fixed-dimension vector by
// hashing it, so pipeline tests exercise real fusion/ranking logic without
// a network dependency. Never use outside tests.
type FakeEmbedder struct {
	Dimensions int
}

// Embed returns a deterministic pseudo-embedding derived from text's SHA-256
// hash: identical input always yields an identical vector.
func (f *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dims := f.Dimensions
	if dims <= 0 {
		dims = 16
	}
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dims)
	for i := 0; i < dims; i++ {
		b := sum[i%len(sum):]
		v := binary.BigEndian.Uint32(pad4(b))
		vec[i] = float32(v%1000) / 1000.0
	}
	return vec, nil
}

func pad4(b []byte) []byte {
	out := make([]byte, 4)
	copy(out, b)
	return out
}

// FakeGenerator returns a fixed, well-formed answer regardless of prompt,
// for coordinator tests that need generate() to succeed without a network
// dependency.
type FakeGenerator struct {
	Response string
}

func (f *FakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	if f.Response != "" {
		return f.Response, nil
	}
	return `[Documento: ep1.srt | Timestamp: 00:00:01 --> 00:00:02] "respuesta de prueba"`, nil
}
