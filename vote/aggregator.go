// Package vote implements the vote aggregation stage of the pipeline: an
// unbounded action queue, a per-window tally and an aggregator worker that
// reduces incoming vote events to console buttons using one of two
// strategies (windowed majority or chaos pass-through).
package vote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chainplays/chainplays/log"
	"github.com/chainplays/chainplays/types"
)

// Strategy selects how incoming votes are reduced to actions.
type Strategy int

const (
	// StrategyWindowed tallies votes and emits at most one action (the
	// majority winner) per aggregation window.
	StrategyWindowed Strategy = iota
	// StrategyChaos forwards every vote as an individual action with no
	// aggregation.
	StrategyChaos
)

// String returns the mode name used in configuration and diagnostics.
func (s Strategy) String() string {
	switch s {
	case StrategyWindowed:
		return "democracy"
	case StrategyChaos:
		return "chaos"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// ParseStrategy converts a mode name into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "democracy", "windowed":
		return StrategyWindowed, nil
	case "chaos":
		return StrategyChaos, nil
	}
	return 0, fmt.Errorf("unknown aggregation mode %q", s)
}

// Aggregator is a worker that consumes decoded vote events and feeds the
// action queue. It owns the tally exclusively: the poller never touches it,
// votes arrive over a channel, so no lock is contended on the hot path.
type Aggregator struct {
	strategy Strategy
	window   time.Duration
	votes    <-chan *types.VoteEvent
	queue    *ActionQueue
	tally    *Tally

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewAggregator creates an aggregator for the given strategy. The window
// duration is only meaningful for StrategyWindowed and must be positive.
func NewAggregator(strategy Strategy, window time.Duration, votes <-chan *types.VoteEvent, queue *ActionQueue) (*Aggregator, error) {
	if queue == nil {
		return nil, fmt.Errorf("action queue cannot be nil")
	}
	if votes == nil {
		return nil, fmt.Errorf("vote channel cannot be nil")
	}
	if strategy == StrategyWindowed && window <= 0 {
		return nil, fmt.Errorf("aggregation window must be positive")
	}
	return &Aggregator{
		strategy: strategy,
		window:   window,
		votes:    votes,
		queue:    queue,
		tally:    NewTally(),
	}, nil
}

// Strategy returns the configured aggregation strategy.
func (a *Aggregator) Strategy() Strategy { return a.strategy }

// Tally returns the tally of the current window. In chaos mode it is always
// empty.
func (a *Aggregator) Tally() *Tally { return a.tally }

// Start launches the aggregation goroutine. It returns an error if the
// aggregator is already running.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return fmt.Errorf("aggregator already running")
	}
	ctx, a.cancel = context.WithCancel(ctx)
	switch a.strategy {
	case StrategyWindowed:
		go a.runWindowed(ctx)
	case StrategyChaos:
		go a.runChaos(ctx)
	default:
		a.cancel = nil
		return fmt.Errorf("unknown aggregation strategy %d", a.strategy)
	}
	log.Infow("vote aggregator started", "mode", a.strategy.String(), "window", a.window.String())
	return nil
}

// Stop halts the aggregation goroutine. Safe to call multiple times.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

// runWindowed tallies every incoming vote and, once per window, drains the
// tally and enqueues the winning button. An empty tally makes the tick a
// no-op.
func (a *Aggregator) runWindowed(ctx context.Context) {
	ticker := time.NewTicker(a.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Infow("vote aggregator stopped")
			return
		case v, ok := <-a.votes:
			if !ok {
				log.Infow("vote channel closed, aggregator exiting")
				return
			}
			a.tally.Add(v.Command)
			log.Debugw("vote tallied", "vote", v.String(), "block", v.BlockNumber)
		case <-ticker.C:
			a.drainWindow()
		}
	}
}

// drainWindow emits the majority winner of the closing window, if any.
func (a *Aggregator) drainWindow() {
	cmd, count, ok := a.tally.Drain()
	if !ok {
		return
	}
	btn, ok := cmd.Button()
	if !ok {
		// valid-but-unmapped index, dropped at the mapping boundary
		log.Debugw("winning command has no button, dropping", "command", uint8(cmd), "count", count)
		return
	}
	a.queue.Push(btn)
	log.Infow("window winner", "button", string(btn), "count", count)
}

// runChaos forwards every mapped vote straight to the action queue.
func (a *Aggregator) runChaos(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Infow("vote aggregator stopped")
			return
		case v, ok := <-a.votes:
			if !ok {
				log.Infow("vote channel closed, aggregator exiting")
				return
			}
			btn, ok := v.Command.Button()
			if !ok {
				log.Debugw("unmapped command, dropping", "command", uint8(v.Command))
				continue
			}
			a.queue.Push(btn)
			log.Debugw("chaos vote", "vote", v.String(), "block", v.BlockNumber)
		}
	}
}
