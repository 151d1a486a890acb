package synth

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

const twoPi = math.Pi * 2

type Params struct {
	Polyphony  int
	AttackSec  float64
	SustainSec float64
	ReleaseSec float64
	MasterGain float64
	Partial2   float64 // blend of the second partial, 0..1
	PanSpread  float64 // stereo spread, 0..1
}

func DefaultParams() Params {
	return Params{
		Polyphony:  24,
		AttackSec:  1.2,
		SustainSec: 2.4,
		ReleaseSec: 3.6,
		MasterGain: 0.30,
		Partial2:   0.25,
		PanSpread:  0.6,
	}
}

type trigger struct {
	freq       float64
	startFrame int64
	pan        float64
}

type voice struct {
	freq     float64
	pan      float64
	phase    float64
	start    int64 // absolute frame the envelope began
	released int64 // absolute frame of a forced release, -1 if none
	active   bool
}

// Engine renders swelled sine voices and doubles as the audio clock: Now
// is the number of frames handed to the output stream divided by the
// sample rate, so trigger instants land sample-accurately in the signal
// regardless of wall-clock jitter.
type Engine struct {
	mu         sync.Mutex
	sampleRate float64
	params     Params
	frames     atomic.Int64
	masterGain atomic.Uint64
	pending    []trigger // sorted by startFrame
	voices     []voice
	panStep    int
}

func New(sampleRate int, params Params) (*Engine, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sampleRate must be positive")
	}
	if params.Polyphony <= 0 {
		return nil, fmt.Errorf("polyphony must be positive, got %d", params.Polyphony)
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Polyphony),
	}
	e.masterGain.Store(math.Float64bits(params.MasterGain))
	return e, nil
}

// Now reports the audio clock in seconds. It only advances while the
// output stream is pulling frames, so it freezes across a pause.
func (e *Engine) Now() float64 {
	return float64(e.frames.Load()) / e.sampleRate
}

// SetMasterGain is safe to call from any goroutine, including while the
// audio thread is inside Process.
func (e *Engine) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	e.masterGain.Store(math.Float64bits(gain))
}

// TriggerNote schedules a note to begin at the absolute clock time at,
// in seconds. Instants already in the past start immediately. The call
// fails when the polyphony budget is exhausted; the caller is expected to
// drop the note and carry on.
func (e *Engine) TriggerNote(pitch float64, at float64) error {
	if pitch <= 0 {
		return fmt.Errorf("pitch must be positive, got %v", pitch)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	inUse := len(e.pending)
	for i := range e.voices {
		if e.voices[i].active {
			inUse++
		}
	}
	if inUse >= e.params.Polyphony {
		return fmt.Errorf("polyphony exhausted (%d voices)", e.params.Polyphony)
	}

	start := int64(math.Round(at * e.sampleRate))
	if now := e.frames.Load(); start < now {
		start = now
	}
	tr := trigger{freq: pitch, startFrame: start, pan: e.nextPanLocked()}
	idx := len(e.pending)
	for i, p := range e.pending {
		if p.startFrame > start {
			idx = i
			break
		}
	}
	e.pending = append(e.pending, trigger{})
	copy(e.pending[idx+1:], e.pending[idx:])
	e.pending[idx] = tr
	return nil
}

// nextPanLocked spreads successive notes across the stereo field.
var panPositions = [...]float64{0, -0.7, 0.7, -0.35, 0.35, -1, 1}

func (e *Engine) nextPanLocked() float64 {
	p := panPositions[e.panStep%len(panPositions)] * e.params.PanSpread
	e.panStep++
	return p
}

// StopAll drops triggers that have not started sounding and pushes every
// active voice into its release stage. Audio already handed to the output
// buffer cannot be recalled; that inconsistency is bounded by the buffer
// size.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = e.pending[:0]
	now := e.frames.Load()
	for i := range e.voices {
		if e.voices[i].active && e.voices[i].released < 0 {
			e.voices[i].released = now
		}
	}
}

// ActiveVoiceCount reports voices still sounding, release tails included.
func (e *Engine) ActiveVoiceCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}

// Process renders interleaved stereo float32 frames. It runs on the
// audio thread; everything it shares with other goroutines is behind the
// engine mutex or atomics.
func (e *Engine) Process(dst []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	gain := math.Float64frombits(e.masterGain.Load())
	frames := len(dst) / 2
	pos := e.frames.Load()
	for f := 0; f < frames; f++ {
		for len(e.pending) > 0 && e.pending[0].startFrame <= pos {
			e.activateLocked(e.pending[0])
			e.pending = e.pending[1:]
		}
		var l, r float64
		for i := range e.voices {
			v := &e.voices[i]
			if !v.active {
				continue
			}
			amp, done := e.envelopeLocked(v, pos)
			if done {
				v.active = false
				continue
			}
			s := math.Sin(v.phase) + e.params.Partial2*math.Sin(2*v.phase)
			s *= amp / (1 + e.params.Partial2)
			l += s * (1 - v.pan) / 2
			r += s * (1 + v.pan) / 2
			v.phase += twoPi * v.freq / e.sampleRate
			if v.phase > twoPi {
				v.phase -= twoPi
			}
		}
		dst[f*2] = float32(l * gain)
		dst[f*2+1] = float32(r * gain)
		pos++
	}
	e.frames.Store(pos)
}

func (e *Engine) activateLocked(tr trigger) {
	for i := range e.voices {
		if !e.voices[i].active {
			e.voices[i] = voice{
				freq:     tr.freq,
				pan:      tr.pan,
				start:    tr.startFrame,
				released: -1,
				active:   true,
			}
			return
		}
	}
	// No free slot: the trigger is dropped. TriggerNote's budget check
	// makes this unreachable unless StopAll raced a pending activation.
}

// envelopeLocked returns the current amplitude and whether the voice has
// finished its release tail.
func (e *Engine) envelopeLocked(v *voice, pos int64) (float64, bool) {
	ts := float64(pos-v.start) / e.sampleRate
	if ts < 0 {
		return 0, false
	}
	relStart := e.params.AttackSec + e.params.SustainSec
	if v.released >= 0 {
		if rs := float64(v.released-v.start) / e.sampleRate; rs < relStart {
			relStart = rs
		}
	}
	up := 1.0
	if e.params.AttackSec > 0 && ts < e.params.AttackSec {
		up = ts / e.params.AttackSec
	}
	down := 1.0
	if ts > relStart {
		if e.params.ReleaseSec <= 0 {
			return 0, true
		}
		down = 1 - (ts-relStart)/e.params.ReleaseSec
		if down <= 0 {
			return 0, true
		}
	}
	return up * down, false
}
