package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

type rampSource struct{ next float32 }

func (s *rampSource) Process(dst []float32) {
	for i := range dst {
		dst[i] = s.next
		s.next++
	}
}

func TestStreamReaderEncodesFloat32LE(t *testing.T) {
	r := NewStreamReader(&rampSource{})
	p := make([]byte, 4*8) // 4 stereo frames
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(p) {
		t.Fatalf("short read: %d of %d", n, len(p))
	}
	for i := 0; i < 8; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != float32(i) {
			t.Fatalf("sample %d: got %v", i, got)
		}
	}
	if r.Frames() != 4 {
		t.Fatalf("expected 4 frames pulled, got %d", r.Frames())
	}
}

func TestStreamReaderIgnoresTinyReads(t *testing.T) {
	r := NewStreamReader(&rampSource{})
	n, err := r.Read(make([]byte, 7))
	if err != nil || n != 0 {
		t.Fatalf("expected 0, nil for sub-frame read, got %d, %v", n, err)
	}
}
