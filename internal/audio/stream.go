package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource fills dst with interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// Backend is a playback device pulling from one SampleSource. Two
// implementations exist: the ebiten audio context for windowed builds and
// a direct oto context for headless ones.
type Backend interface {
	Play()
	Pause()
	IsPlaying() bool
	Position() time.Duration
	Stop() error
}

// StreamReader adapts a SampleSource to the io.Reader both backends
// consume: float32 little-endian interleaved stereo.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
	frames int64
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.buf[i]))
	}
	r.frames += int64(frames)
	return frames * 8, nil
}

// Frames reports how many stereo frames have been pulled so far.
func (r *StreamReader) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *StreamReader) Close() error { return nil }

var (
	ebitenContextOnce sync.Once
	ebitenContext     *ebitaudio.Context
	ebitenSampleRate  int
)

func sharedEbitenContext(sampleRate int) (*ebitaudio.Context, error) {
	ebitenContextOnce.Do(func() {
		ebitenSampleRate = sampleRate
		ebitenContext = ebitaudio.NewContext(sampleRate)
	})
	if ebitenSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", ebitenSampleRate, sampleRate)
	}
	return ebitenContext, nil
}

// EbitenBackend plays through the ebiten audio context; use it from
// binaries that also run an ebiten game loop.
type EbitenBackend struct {
	player *ebitaudio.Player
	reader *StreamReader
}

func NewEbitenBackend(sampleRate int, source SampleSource) (*EbitenBackend, error) {
	ctx, err := sharedEbitenContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &EbitenBackend{player: pl, reader: reader}, nil
}

func (b *EbitenBackend) Play()           { b.player.Play() }
func (b *EbitenBackend) Pause()          { b.player.Pause() }
func (b *EbitenBackend) IsPlaying() bool { return b.player.IsPlaying() }

// Position reports what the listener actually hears right now.
func (b *EbitenBackend) Position() time.Duration { return b.player.Position() }

func (b *EbitenBackend) Stop() error {
	b.player.Pause()
	b.player.Close()
	return b.reader.Close()
}
