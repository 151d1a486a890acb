package synth

import (
	"math"
	"testing"
)

func testParams() Params {
	p := DefaultParams()
	p.AttackSec = 0.01
	p.SustainSec = 0.05
	p.ReleaseSec = 0.05
	return p
}

func rms(buf []float32) float64 {
	var sum float64
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(buf)))
}

func TestNewValidates(t *testing.T) {
	if _, err := New(0, DefaultParams()); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
	p := DefaultParams()
	p.Polyphony = 0
	if _, err := New(48000, p); err == nil {
		t.Fatalf("expected error for zero polyphony")
	}
}

func TestTriggerStartsAtScheduledInstant(t *testing.T) {
	const rate = 48000
	e, err := New(rate, testParams())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.TriggerNote(440, 0.5); err != nil {
		t.Fatalf("TriggerNote: %v", err)
	}

	before := make([]float32, int(0.4*rate)*2)
	e.Process(before)
	if got := rms(before); got != 0 {
		t.Fatalf("audio before the trigger instant: rms %v", got)
	}

	after := make([]float32, int(0.2*rate)*2)
	e.Process(after)
	if got := rms(after); got == 0 {
		t.Fatalf("no audio after the trigger instant")
	}
}

func TestNowTracksRenderedFrames(t *testing.T) {
	const rate = 48000
	e, err := New(rate, testParams())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Now() != 0 {
		t.Fatalf("fresh engine clock at %v", e.Now())
	}
	buf := make([]float32, rate) // rate/2 stereo frames
	e.Process(buf)
	if got, want := e.Now(), 0.5; math.Abs(got-want) > 1e-9 {
		t.Fatalf("clock after half a second: got %v, want %v", got, want)
	}
}

func TestLateTriggerStartsImmediately(t *testing.T) {
	const rate = 48000
	e, err := New(rate, testParams())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	buf := make([]float32, rate*2)
	e.Process(buf) // clock now at 1.0s
	if err := e.TriggerNote(440, 0.2); err != nil {
		t.Fatalf("TriggerNote: %v", err)
	}
	out := make([]float32, int(0.05*rate)*2)
	e.Process(out)
	if rms(out) == 0 {
		t.Fatalf("late trigger produced no audio")
	}
}

func TestPolyphonyExhaustionIsAnError(t *testing.T) {
	p := testParams()
	p.Polyphony = 2
	e, err := New(48000, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.TriggerNote(440, 0); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if err := e.TriggerNote(550, 0); err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if err := e.TriggerNote(660, 0); err == nil {
		t.Fatalf("expected polyphony exhaustion error")
	}
}

func TestStopAllDropsPendingAndReleasesActive(t *testing.T) {
	const rate = 48000
	e, err := New(rate, testParams())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.TriggerNote(440, 0); err != nil {
		t.Fatalf("TriggerNote: %v", err)
	}
	if err := e.TriggerNote(550, 0.5); err != nil {
		t.Fatalf("TriggerNote: %v", err)
	}
	buf := make([]float32, int(0.02*rate)*2)
	e.Process(buf) // first note sounding
	if e.ActiveVoiceCount() != 1 {
		t.Fatalf("expected one active voice, got %d", e.ActiveVoiceCount())
	}

	e.StopAll()
	// Render past the release tail; the far-future trigger must not fire.
	tail := make([]float32, rate*2*2)
	e.Process(tail)
	if e.ActiveVoiceCount() != 0 {
		t.Fatalf("voices still active after StopAll + release tail")
	}
	quiet := make([]float32, int(0.1*rate)*2)
	e.Process(quiet)
	if rms(quiet) != 0 {
		t.Fatalf("dropped trigger still produced audio")
	}
}
