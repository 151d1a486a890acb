// Package airloop plays a slowly shifting pattern of looping voices:
// each voice repeats at its own period from a random starting position,
// and because the periods share no common multiple the combined pattern
// effectively never recurs. One phase model drives both the audio
// scheduler and the visual sampler, so what is heard and what is drawn
// can never drift apart.
package airloop

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync"
	"time"

	intaudio "github.com/cbegin/airloop-go/internal/audio"
	intconfig "github.com/cbegin/airloop-go/internal/config"
	intfx "github.com/cbegin/airloop-go/internal/effects"
	intlog "github.com/cbegin/airloop-go/internal/log"
	intloop "github.com/cbegin/airloop-go/internal/loop"
	intsched "github.com/cbegin/airloop-go/internal/sched"
	intsynth "github.com/cbegin/airloop-go/internal/synth"
)

// Event carries playback notifications from Watch().
type Event struct {
	Kind    int
	VoiceID int     // EventNoteStart: which voice fired
	At      float64 // EventNoteStart: trigger instant on the audio clock
	Playing bool    // EventPlayState: new transport state
}

const (
	EventNoteStart int = iota
	EventPlayState
)

// VoiceDef declares a voice; see DefaultVoices for the reference set.
type VoiceDef struct {
	Name   string
	Pitch  float64 // Hz
	Period float64 // seconds
}

// VoiceInfo is the immutable identity of a registered voice, in display
// order.
type VoiceInfo struct {
	ID     int
	Name   string
	Pitch  float64
	Period float64
}

// Output selects the playback backend.
type Output int

const (
	// OutputEbiten routes audio through the ebiten audio context; use it
	// from binaries that run an ebiten game loop.
	OutputEbiten Output = iota
	// OutputOto plays through a plain oto context for headless binaries.
	OutputOto
)

// DefaultVoices returns the compiled-in seven-voice reference set.
func DefaultVoices() []VoiceDef {
	var out []VoiceDef
	for _, v := range intconfig.Default().Voices {
		out = append(out, VoiceDef{Name: v.Name, Pitch: v.Pitch, Period: v.Period})
	}
	return out
}

type PlayerOption func(*playerConfig)

type playerConfig struct {
	voices      []VoiceDef
	lookahead   float64
	tick        time.Duration
	seed        int64
	seeded      bool
	output      Output
	sampleTap   func([]float32)
	reverb      bool
	synthParams intsynth.Params
	logWriter   io.Writer
	logLevel    string
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		voices:      DefaultVoices(),
		lookahead:   intsched.DefaultLookahead,
		tick:        intsched.DefaultTickInterval,
		output:      OutputEbiten,
		reverb:      true,
		synthParams: intsynth.DefaultParams(),
		logWriter:   os.Stderr,
		logLevel:    "error",
	}
}

// WithVoices replaces the default voice set.
func WithVoices(voices []VoiceDef) PlayerOption {
	return func(cfg *playerConfig) { cfg.voices = voices }
}

// WithLookahead sets how far ahead, in seconds, triggers are committed.
func WithLookahead(seconds float64) PlayerOption {
	return func(cfg *playerConfig) { cfg.lookahead = seconds }
}

// WithTickInterval sets the wall-clock cadence of scheduling passes. It
// must be shorter than the lookahead.
func WithTickInterval(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) { cfg.tick = d }
}

// WithSeed fixes the phase-offset random source for reproducible
// arrangements; without it each run starts somewhere new.
func WithSeed(seed int64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.seed = seed
		cfg.seeded = true
	}
}

// WithOutput selects the playback backend.
func WithOutput(output Output) PlayerOption {
	return func(cfg *playerConfig) { cfg.output = output }
}

// WithSampleTap installs a callback invoked with each generated stereo
// buffer. The callback runs on the audio thread; keep work brief and
// non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) { cfg.sampleTap = tap }
}

// WithReverb toggles the master-bus reverb.
func WithReverb(enabled bool) PlayerOption {
	return func(cfg *playerConfig) { cfg.reverb = enabled }
}

// WithSynthParams overrides the synthesis envelope and polyphony.
func WithSynthParams(params intsynth.Params) PlayerOption {
	return func(cfg *playerConfig) { cfg.synthParams = params }
}

// WithLogging routes internal logging. Level is one of debug, info,
// error, none.
func WithLogging(w io.Writer, level string) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.logWriter = w
		cfg.logLevel = level
	}
}

// busSource is the audio-thread pipeline: synth, then reverb, then the
// optional tap.
type busSource struct {
	engine *intsynth.Engine
	fx     *intfx.Chain
	tap    func([]float32)
}

func (b *busSource) Process(dst []float32) {
	b.engine.Process(dst)
	if b.fx != nil {
		for i := 0; i+1 < len(dst); i += 2 {
			dst[i], dst[i+1] = b.fx.Process(dst[i], dst[i+1])
		}
	}
	if b.tap != nil {
		b.tap(dst)
	}
}

// Player owns the voice set, the synth, the scheduler and the playback
// backend, and exposes the transport and sampling surface the UI and CLI
// build on.
type Player struct {
	mu         sync.Mutex
	sampleRate int
	output     Output
	set        *intloop.Set
	engine     *intsynth.Engine
	sched      *intsched.Scheduler
	source     *busSource
	backend    intaudio.Backend
	infos      []VoiceInfo
	baseGain   float64
	volume     float64
	eventCh    chan Event
	eventChMu  sync.Mutex
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.voices) == 0 {
		return nil, errors.New("at least one voice is required")
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
	// Draw offsets up front so the renderer has an arrangement to show
	// before the first Start; the scheduler reuses these verbatim.
	set.AssignOffsets(false)

	engine, err := intsynth.New(sampleRate, cfg.synthParams)
	if err != nil {
		return nil, err
	}

	p := &Player{
		sampleRate: sampleRate,
		output:     cfg.output,
		set:        set,
		engine:     engine,
		baseGain:   cfg.synthParams.MasterGain,
		volume:     1,
	}
	for i, v := range cfg.voices {
		p.infos = append(p.infos, VoiceInfo{ID: i, Name: v.Name, Pitch: v.Pitch, Period: v.Period})
	}

	var fx *intfx.Chain
	if cfg.reverb {
		fx = intfx.NewChain(intfx.NewReverb(sampleRate, 0.7, 0.84, 0.35))
	}
	p.source = &busSource{engine: engine, fx: fx, tap: cfg.sampleTap}

	logger := intlog.New(cfg.logWriter, intlog.LevelFromString(cfg.logLevel))
	p.sched, err = intsched.New(set, engine, engine, intsched.Options{
		Lookahead:    cfg.lookahead,
		TickInterval: cfg.tick,
		Logger:       logger,
		OnNote: func(voiceID int, at float64) {
			p.sendEvent(Event{Kind: EventNoteStart, VoiceID: voiceID, At: at})
		},
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Start moves the transport Idle -> Running with a fresh origin. It is a
// no-op while already Running. The playback backend is created on first
// use; a backend failure (no audio device, suspended context) surfaces
// here and nothing is scheduled.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched.IsRunning() {
		return nil
	}
	if err := p.ensureBackendLocked(); err != nil {
		return err
	}
	p.backend.Play()
	p.sched.Start()
	p.sendEvent(Event{Kind: EventPlayState, Playing: true})
	return nil
}

func (p *Player) ensureBackendLocked() error {
	if p.backend != nil {
		return nil
	}
	var (
		backend intaudio.Backend
		err     error
	)
	switch p.output {
	case OutputOto:
		backend, err = intaudio.NewOtoBackend(p.sampleRate, p.source)
	default:
		backend, err = intaudio.NewEbitenBackend(p.sampleRate, p.source)
	}
	if err != nil {
		return fmt.Errorf("audio backend: %w", err)
	}
	p.backend = backend
	return nil
}

// Pause moves Running -> Idle: cancels pending scheduling, drops
// in-flight notes and stops pulling audio. No-op while Idle. Phase
// offsets are left untouched; a later Start records a fresh origin.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.sched.IsRunning() {
		return
	}
	p.sched.Stop()
	if p.backend != nil {
		p.backend.Pause()
	}
	p.sendEvent(Event{Kind: EventPlayState, Playing: false})
}

// Toggle flips between Running and Idle.
func (p *Player) Toggle() error {
	if p.IsPlaying() {
		p.Pause()
		return nil
	}
	return p.Start()
}

// Stop is Pause plus releasing the playback backend.
func (p *Player) Stop() error {
	p.Pause()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backend == nil {
		return nil
	}
	err := p.backend.Stop()
	p.backend = nil
	return err
}

// Regenerate re-rolls every voice's phase offset into a fresh, unrelated
// arrangement. If the transport was running it resumes immediately with a
// new origin. The swap is atomic: no sampler call and no scheduling pass
// can observe a mix of old and new offsets.
func (p *Player) Regenerate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	wasRunning := p.sched.IsRunning()
	if wasRunning {
		p.sched.Stop()
	}
	p.set.AssignOffsets(true)
	if wasRunning {
		p.sched.Start()
	}
}

// IsPlaying reports whether the transport is Running.
func (p *Player) IsPlaying() bool {
	return p.sched.IsRunning()
}

// Now reports the audio clock in seconds; feed it back into PhaseOf for
// the current on-screen position.
func (p *Player) Now() float64 {
	return p.engine.Now()
}

// PhaseOf reports the voice's phase in [0,1) at the given audio-clock
// time. At exactly the instants the scheduler commits triggers for the
// voice, the phase is 0. While the transport is Idle the rest
// arrangement is reported regardless of t, so the renderer shows a
// meaningful layout before playback and after a pause.
func (p *Player) PhaseOf(voiceID int, t float64) (float64, error) {
	voices := p.set.Snapshot()
	if voiceID < 0 || voiceID >= len(voices) {
		return 0, fmt.Errorf("unknown voice %d", voiceID)
	}
	v := voices[voiceID]
	if !p.sched.IsRunning() {
		return intloop.RestPhase(v), nil
	}
	origin, ok := p.sched.Origin()
	if !ok {
		return intloop.RestPhase(v), nil
	}
	return intloop.PhaseAt(v, origin, t), nil
}

// Voices returns voice identities in display order.
func (p *Player) Voices() []VoiceInfo {
	out := make([]VoiceInfo, len(p.infos))
	copy(out, p.infos)
	return out
}

// Watch returns a buffered channel of playback events: EventNoteStart
// for every committed trigger and EventPlayState on transport changes.
// Receive promptly; events overflowing the buffer are dropped. Only the
// most recent Watch channel receives events.
func (p *Player) Watch() <-chan Event {
	ch := make(chan Event, 16)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

func (p *Player) sendEvent(ev Event) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Listener is behind; drop rather than stall the scheduler.
		}
	}
}

// SetMasterVolume sets the runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	p.engine.SetMasterGain(p.baseGain * volume)
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// PlaybackPosition returns the playback backend's output position, or 0
// before the backend exists.
func (p *Player) PlaybackPosition() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backend == nil {
		return 0
	}
	return p.backend.Position()
}
