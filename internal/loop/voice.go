package loop

import (
	"fmt"
	"math/rand"
	"sync"
)

// Voice is one fixed loop generator: immutable identity (ID, Name, Pitch,
// Period) plus the mutable phase offset assigned by the set.
type Voice struct {
	ID     int
	Name   string
	Pitch  float64 // Hz, passed through to the synth
	Period float64 // loop period in seconds
	Offset float64 // seconds into the loop at the origin, in [0, Period)
}

// Def describes a voice before registration. IDs are assigned in
// definition order, which is also the display order.
type Def struct {
	Name   string
	Pitch  float64
	Period float64
}

// Set owns the voice table and its offsets. Reads go through Snapshot so
// a regeneration is atomic to every observer: the scheduler and the
// renderer always see either all-old or all-new offsets.
type Set struct {
	mu       sync.Mutex
	rng      *rand.Rand
	voices   []Voice
	assigned bool
}

// NewSet validates the definitions and builds the registry. Offsets are
// not drawn yet; call AssignOffsets before sampling or scheduling.
func NewSet(defs []Def, rng *rand.Rand) (*Set, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("voice set must not be empty")
	}
	if rng == nil {
		return nil, fmt.Errorf("random source must not be nil")
	}
	voices := make([]Voice, len(defs))
	for i, d := range defs {
		if d.Period <= 0 {
			return nil, fmt.Errorf("voice %d (%q): period must be positive, got %v", i, d.Name, d.Period)
		}
		if d.Pitch <= 0 {
			return nil, fmt.Errorf("voice %d (%q): pitch must be positive, got %v", i, d.Name, d.Pitch)
		}
		voices[i] = Voice{ID: i, Name: d.Name, Pitch: d.Pitch, Period: d.Period}
	}
	return &Set{rng: rng, voices: voices}, nil
}

// AssignOffsets draws a uniform offset in [0, Period) for every voice,
// each from an independent draw. When force is false and offsets already
// exist, the call is a no-op, so offsets drawn at load time are reused
// verbatim when playback starts.
func (s *Set) AssignOffsets(force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assigned && !force {
		return
	}
	for i := range s.voices {
		s.voices[i].Offset = s.rng.Float64() * s.voices[i].Period
	}
	s.assigned = true
}

// Snapshot returns a copy of the voice table taken under the set lock.
func (s *Set) Snapshot() []Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Voice, len(s.voices))
	copy(out, s.voices)
	return out
}

// Len reports the number of voices.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.voices)
}
