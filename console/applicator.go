package console

import (
	"context"
	"fmt"
	"time"

	"github.com/chainplays/chainplays/log"
	"github.com/chainplays/chainplays/types"
	"github.com/chainplays/chainplays/vote"
)

// State of the applicator loop.
type State int

const (
	StateWarmup State = iota
	StateRunning
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateWarmup:
		return "warmup"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Config tunes the applicator timing. Zero values fall back to the democracy
// defaults; tests inject minimal delays for determinism.
type Config struct {
	// WarmupSteps is the number of emulator steps executed before accepting
	// input, to pass boot and intro sequences.
	WarmupSteps int
	// HoldSteps is how many steps a button stays pressed so it registers.
	HoldSteps int
	// ReleaseSteps is how many steps run after releasing the button.
	ReleaseSteps int
	// StepDelay is an optional sleep after every loop iteration to pace the
	// emulation. Zero means run at full speed.
	StepDelay time.Duration
	// LogInterval rate-limits the applied-action diagnostic.
	LogInterval time.Duration
	// Scale is the display scale hint passed to the console before warmup.
	Scale int
}

// DefaultConfig returns the applicator timing for the given aggregation
// strategy: democracy holds buttons longer so they register between windows,
// chaos taps as fast as possible.
func DefaultConfig(strategy vote.Strategy) Config {
	cfg := Config{
		WarmupSteps:  240,
		HoldSteps:    6,
		ReleaseSteps: 2,
		StepDelay:    5 * time.Millisecond,
		LogInterval:  50 * time.Millisecond,
		Scale:        3,
	}
	if strategy == vote.StrategyChaos {
		cfg.HoldSteps = 1
		cfg.ReleaseSteps = 1
		cfg.StepDelay = 2 * time.Millisecond
	}
	return cfg
}

// ActionRecorder journals applied actions. Implemented by storage.Storage;
// may be nil to disable journaling.
type ActionRecorder interface {
	RecordAction(b types.Button) error
}

// Applicator is the single consumer of the action queue. It must run on
// whichever goroutine owns the console resource, since the emulator's
// display resource is not safe for cross-thread access.
type Applicator struct {
	console  Console
	queue    *vote.ActionQueue
	cfg      Config
	recorder ActionRecorder

	state   State
	lastLog time.Time
	applied uint64
}

// NewApplicator creates an applicator that drains queue into console.
// recorder may be nil.
func NewApplicator(console Console, queue *vote.ActionQueue, cfg Config, recorder ActionRecorder) (*Applicator, error) {
	if console == nil {
		return nil, fmt.Errorf("console cannot be nil")
	}
	if queue == nil {
		return nil, fmt.Errorf("action queue cannot be nil")
	}
	if cfg.HoldSteps <= 0 {
		cfg.HoldSteps = 6
	}
	if cfg.ReleaseSteps < 0 {
		cfg.ReleaseSteps = 0
	}
	if cfg.LogInterval <= 0 {
		cfg.LogInterval = 50 * time.Millisecond
	}
	return &Applicator{
		console:  console,
		queue:    queue,
		cfg:      cfg,
		recorder: recorder,
		state:    StateWarmup,
	}, nil
}

// State returns the current loop state.
func (a *Applicator) State() State { return a.state }

// Applied returns the number of actions applied so far.
func (a *Applicator) Applied() uint64 { return a.applied }

// Run executes the applicator loop on the calling goroutine. It returns nil
// both when the console signals termination and when the context is
// canceled; the termination state is absorbing either way.
func (a *Applicator) Run(ctx context.Context) error {
	if a.state == StateTerminated {
		return fmt.Errorf("applicator already terminated")
	}
	if a.cfg.Scale > 0 {
		a.console.SetScale(a.cfg.Scale)
	}

	// warm-up: let the game boot before accepting external input
	log.Infow("applicator warming up", "steps", a.cfg.WarmupSteps)
	for i := 0; i < a.cfg.WarmupSteps; i++ {
		if ctx.Err() != nil || !a.console.Tick() {
			a.terminate()
			return nil
		}
	}
	a.state = StateRunning
	log.Infow("applicator running")

	for {
		select {
		case <-ctx.Done():
			a.terminate()
			return nil
		default:
		}

		btn, ok := a.queue.TryPop()
		if !ok {
			// no action pending, a single idle tick keeps real-time pacing
			if !a.console.Tick() {
				a.terminate()
				return nil
			}
		} else if !a.apply(btn) {
			a.terminate()
			return nil
		}

		if a.cfg.StepDelay > 0 {
			time.Sleep(a.cfg.StepDelay)
		}
	}
}

// apply holds the button for HoldSteps, releases it and runs ReleaseSteps
// more. It returns false when the console signals termination mid-action.
func (a *Applicator) apply(btn types.Button) bool {
	a.console.Button(btn, true)
	for i := 0; i < a.cfg.HoldSteps; i++ {
		if !a.console.Tick() {
			a.console.Button(btn, false)
			return false
		}
	}
	a.console.Button(btn, false)
	for i := 0; i < a.cfg.ReleaseSteps; i++ {
		if !a.console.Tick() {
			return false
		}
	}

	a.applied++
	if a.recorder != nil {
		if err := a.recorder.RecordAction(btn); err != nil {
			log.Warnw("failed to journal applied action", "button", string(btn), "error", err.Error())
		}
	}
	// throttle stdout a bit
	if now := time.Now(); now.Sub(a.lastLog) > a.cfg.LogInterval {
		log.Infow("applied action", "button", string(btn), "queued", a.queue.Len())
		a.lastLog = now
	}
	return true
}

func (a *Applicator) terminate() {
	a.state = StateTerminated
	log.Infow("applicator terminated", "applied", a.applied)
}
