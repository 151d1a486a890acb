package airloop

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
	"testing"
)

func TestRenderSamplesIsDeterministicWithSeed(t *testing.T) {
	const rate = 8000
	opts := []PlayerOption{WithVoices(testVoices), WithSeed(21)}
	a, err := RenderSamples(rate, 3, opts...)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	b, err := RenderSamples(rate, 3, opts...)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if len(a) != rate*3*2 {
		t.Fatalf("expected %d samples, got %d", rate*3*2, len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("renders diverge at sample %d: %v vs %v", i, a[i], b[i])
		}
	}
}

// Before the earliest loop crossing nothing has been triggered, so the
// output must be exactly silent.
func TestRenderSamplesSilentBeforeFirstTrigger(t *testing.T) {
	const (
		rate = 8000
		seed = 13
	)
	rng := rand.New(rand.NewSource(seed))
	earliest := math.Inf(1)
	for _, v := range testVoices {
		offset := rng.Float64() * v.Period
		if first := v.Period - offset; first < earliest {
			earliest = first
		}
	}
	seconds := earliest + 2
	out, err := RenderSamples(rate, seconds, WithVoices(testVoices), WithSeed(seed))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	quietFrames := int(earliest*rate) - 1
	for i := 0; i < quietFrames*2; i++ {
		if out[i] != 0 {
			t.Fatalf("sample %d nonzero (%v) before first trigger at %vs", i, out[i], earliest)
		}
	}
	var energy float64
	for _, s := range out[quietFrames*2:] {
		energy += float64(s) * float64(s)
	}
	if energy == 0 {
		t.Fatalf("no audio after the first trigger instant")
	}
}

func TestRenderSamplesRejectsBadVoices(t *testing.T) {
	if _, err := RenderSamples(8000, 1, WithVoices([]VoiceDef{{Name: "bad", Pitch: -1, Period: 2}})); err == nil {
		t.Fatalf("expected error for invalid voice")
	}
}

func TestEncodeWAVFloat32LE(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1}
	var buf bytes.Buffer
	if err := EncodeWAVFloat32LE(&buf, samples, 48000, 2); err != nil {
		t.Fatalf("encode: %v", err)
	}
	b := buf.Bytes()
	if len(b) != 44+len(samples)*4 {
		t.Fatalf("unexpected size %d", len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" || string(b[12:16]) != "fmt " {
		t.Fatalf("bad header magic: %q", b[:16])
	}
	if tag := binary.LittleEndian.Uint16(b[20:]); tag != 3 {
		t.Fatalf("expected IEEE-float format tag 3, got %d", tag)
	}
	if ch := binary.LittleEndian.Uint16(b[22:]); ch != 2 {
		t.Fatalf("expected 2 channels, got %d", ch)
	}
	if rate := binary.LittleEndian.Uint32(b[24:]); rate != 48000 {
		t.Fatalf("expected 48000 Hz, got %d", rate)
	}
	if size := binary.LittleEndian.Uint32(b[40:]); int(size) != len(samples)*4 {
		t.Fatalf("data size %d, expected %d", size, len(samples)*4)
	}
	got := math.Float32frombits(binary.LittleEndian.Uint32(b[48:]))
	if got != 0.5 {
		t.Fatalf("second sample: got %v", got)
	}
}
