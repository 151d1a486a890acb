package sched

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cbegin/airloop-go/internal/log"
	"github.com/cbegin/airloop-go/internal/loop"
)

// Clock supplies monotonic time in seconds. The live player uses the
// synth engine's rendered-frame counter so triggers line up with what the
// audio thread will actually play.
type Clock interface {
	Now() float64
}

// NoteSink is the synthesis collaborator: it accepts future-dated note
// triggers and can drop everything on transport stop.
type NoteSink interface {
	TriggerNote(pitch float64, at float64) error
	StopAll()
}

// VoiceSource provides atomic snapshots of the voice table. *loop.Set
// satisfies it; the scheduler and the phase sampler must be fed the same
// source or audio and visuals disagree about where each voice starts.
type VoiceSource interface {
	Snapshot() []loop.Voice
	Len() int
	AssignOffsets(force bool)
}

const (
	DefaultLookahead    = 0.5
	DefaultTickInterval = 100 * time.Millisecond
)

type Options struct {
	Lookahead    float64       // how far ahead triggers may be committed, seconds
	TickInterval time.Duration // wall-clock cadence between scheduling passes
	OnNote       func(voiceID int, at float64)
	Logger       *log.Logger
	// Manual disables the tick goroutine; the owner drives passes with
	// Tick. Offline rendering uses this so commit order does not depend
	// on wall-clock timing.
	Manual bool
}

// Scheduler owns the transport state (origin, running) and runs the
// look-ahead loop: once per tick it computes, for every voice, the next
// absolute time its phase crosses the reference point and commits it to
// the sink if it falls strictly inside the window.
//
// A single goroutine drives the passes, so ticks cannot overlap; the
// per-voice committed-loop counter makes each loop iteration commit
// exactly once even though every pass recomputes from the origin.
type Scheduler struct {
	mu        sync.Mutex
	set       VoiceSource
	clock     Clock
	sink      NoteSink
	lookahead float64
	tick      time.Duration
	onNote    func(int, float64)
	logger    *log.Logger
	manual    bool

	running   bool
	origin    float64
	started   bool
	committed []int64
	cancel    context.CancelFunc
}

func New(set VoiceSource, clock Clock, sink NoteSink, opts Options) (*Scheduler, error) {
	if set == nil || clock == nil || sink == nil {
		return nil, fmt.Errorf("set, clock and sink are all required")
	}
	if opts.Lookahead == 0 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.TickInterval == 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Lookahead < 0 {
		return nil, fmt.Errorf("lookahead must be positive, got %v", opts.Lookahead)
	}
	if opts.TickInterval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %v", opts.TickInterval)
	}
	// The cadence must undercut the window or trigger instants could slip
	// between two passes.
	if opts.TickInterval.Seconds() >= opts.Lookahead {
		return nil, fmt.Errorf("tick interval %v must be shorter than lookahead %vs", opts.TickInterval, opts.Lookahead)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, log.LevelError)
	}
	return &Scheduler{
		set:       set,
		clock:     clock,
		sink:      sink,
		lookahead: opts.Lookahead,
		tick:      opts.TickInterval,
		onNote:    opts.OnNote,
		logger:    logger,
		manual:    opts.Manual,
		committed: make([]int64, set.Len()),
	}, nil
}

// Start moves Idle -> Running: records a fresh origin, runs an immediate
// scheduling pass, and arms the tick loop. Calling Start while already
// Running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.set.AssignOffsets(false)
	s.origin = s.clock.Now()
	s.started = true
	for i := range s.committed {
		s.committed[i] = 0
	}
	s.running = true
	s.passLocked()
	if s.manual {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.pass()
		case <-ctx.Done():
			return
		}
	}
}

// Stop moves Running -> Idle: cancels the pending re-arm and tells the
// sink to drop in-flight notes. Offsets are left untouched. Calling Stop
// while Idle is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.sink.StopAll()
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Origin returns the transport origin and whether one has been recorded.
func (s *Scheduler) Origin() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.origin, s.started
}

// Tick runs one scheduling pass immediately. The live path never needs
// it (the tick loop re-arms itself); offline rendering drives the
// scheduler with it between audio chunks so output is deterministic.
func (s *Scheduler) Tick() {
	s.pass()
}

func (s *Scheduler) pass() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.passLocked()
}

func (s *Scheduler) passLocked() {
	now := s.clock.Now()
	windowEnd := now + s.lookahead
	for i, v := range s.set.Snapshot() {
		k := loop.CompletedLoops(v, s.origin, now) + 1
		if k <= s.committed[i] {
			k = s.committed[i] + 1
		}
		for {
			at := loop.TriggerInstant(v, s.origin, k)
			if at >= windowEnd {
				break
			}
			if err := s.sink.TriggerNote(v.Pitch, at); err != nil {
				// Drop this iteration and move on; one starved voice must
				// not stall or desynchronize the others.
				s.logger.Errorf("voice %s: trigger at %.3fs rejected: %v", v.Name, at, err)
			} else if s.onNote != nil {
				s.onNote(v.ID, at)
			}
			s.committed[i] = k
			k++
		}
	}
}
