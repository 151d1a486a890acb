package airloop

import (
	"encoding/binary"
	"io"
	"math"
	"math/rand"
	"time"

	intfx "github.com/cbegin/airloop-go/internal/effects"
	intlog "github.com/cbegin/airloop-go/internal/log"
	intloop "github.com/cbegin/airloop-go/internal/loop"
	intsched "github.com/cbegin/airloop-go/internal/sched"
	intsynth "github.com/cbegin/airloop-go/internal/synth"
)

// RenderSamples renders seconds of the arrangement to interleaved stereo
// float32 frames without touching an audio device. The scheduler is
// driven explicitly between chunks rather than by a wall-clock ticker, so
// a seeded render is byte-for-byte reproducible.
func RenderSamples(sampleRate int, seconds float64, opts ...PlayerOption) ([]float32, error) {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	seed := cfg.seed
	if !cfg.seeded {
		seed = time.Now().UnixNano()
	}
	defs := make([]intloop.Def, len(cfg.voices))
	for i, v := range cfg.voices {
		defs[i] = intloop.Def{Name: v.Name, Pitch: v.Pitch, Period: v.Period}
	}
	set, err := intloop.NewSet(defs, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	engine, err := intsynth.New(sampleRate, cfg.synthParams)
	if err != nil {
		return nil, err
	}
	var fx *intfx.Chain
	if cfg.reverb {
		fx = intfx.NewChain(intfx.NewReverb(sampleRate, 0.7, 0.84, 0.35))
	}
	source := &busSource{engine: engine, fx: fx, tap: cfg.sampleTap}

	sched, err := intsched.New(set, engine, engine, intsched.Options{
		Lookahead:    cfg.lookahead,
		TickInterval: cfg.tick,
		Logger:       intlog.New(io.Discard, intlog.LevelNone),
		Manual:       true,
	})
	if err != nil {
		return nil, err
	}

	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames*2)
	// Chunks shorter than the lookahead keep the window ahead of the
	// render position.
	chunk := sampleRate / 10 * 2
	if chunk < 2 {
		chunk = 2
	}
	sched.Start()
	defer sched.Stop()
	for off := 0; off < len(out); off += chunk {
		sched.Tick()
		end := off + chunk
		if end > len(out) {
			end = len(out)
		}
		source.Process(out[off:end])
	}
	return out, nil
}

// EncodeWAVFloat32LE writes samples as a WAV file with IEEE-float
// encoding (format tag 3).
func EncodeWAVFloat32LE(w io.Writer, samples []float32, sampleRate int, channels int) error {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	header := make([]byte, 44)
	copy(header[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:], uint32(36+dataSize))
	copy(header[8:], []byte("WAVE"))
	copy(header[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 3)
	binary.LittleEndian.PutUint16(header[22:], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:], 32)
	copy(header[36:], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:], uint32(dataSize))
	if _, err := w.Write(header); err != nil {
		return err
	}
	payload := make([]byte, dataSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(s))
	}
	_, err := w.Write(payload)
	return err
}
